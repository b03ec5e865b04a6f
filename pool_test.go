// Tideland Go Library - Redis Client - Unit Tests
//
// Copyright (C) 2017-2026 Frank Mueller / Tideland / Oldenburg / Germany
//
// All rights reserved. Use of this source code is governed
// by the new BSD license.

package redis_test

//--------------------
// IMPORTS
//--------------------

import (
	"context"
	"testing"
	"time"

	"tideland.dev/go/audit/asserts"
	"tideland.dev/go/redis"
)

//--------------------
// TESTS
//--------------------

func TestPoolFillOpensMinConnections(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 2, Max: 4, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	assert.Equal(pool.Size(), 0)
	assert.Nil(pool.Fill(false))
	assert.Equal(pool.Size(), 2)
	assert.Equal(pool.Available(), 2)
}

func TestPoolFillPrunesDeadConnectionsFromFree(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 1, Max: 2, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	conn, err := pool.Acquire(context.Background())
	assert.Nil(err)
	pool.Release(conn)
	assert.Equal(pool.Available(), 1)

	// Simulate a server-side disconnect of an otherwise-idle pooled
	// connection: its background read loop notices the hangup and
	// poisons it while it is still sitting in the free list.
	fs.dropAll()
	deadline := time.Now().Add(time.Second)
	for conn.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(conn.IsConnected())

	assert.Nil(pool.Fill(false))
	assert.Equal(pool.Size(), 1)
	assert.Equal(pool.Available(), 1)

	conn2, err := pool.Acquire(context.Background())
	assert.Nil(err)
	assert.True(conn2 != conn) // the dead entry was pruned and replaced
	pool.Release(conn2)
}

func TestPoolAcquireReleaseReusesConnection(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 0, Max: 2, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	assert.Nil(err)
	assert.Equal(pool.Size(), 1)
	assert.Equal(pool.Available(), 0)

	pool.Release(conn)
	assert.Equal(pool.Available(), 1)

	conn2, err := pool.Acquire(ctx)
	assert.Nil(err)
	assert.True(conn2 == conn) // the freed connection gets reused, not re-dialed
	pool.Release(conn2)
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 0, Max: 1, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	assert.Nil(err)

	acquired := make(chan *redis.Connection, 1)
	go func() {
		c, aerr := pool.Acquire(ctx)
		if aerr == nil {
			acquired <- c
		}
	}()

	// Give the goroutine a chance to block on the condition variable
	// before releasing the only connection back.
	time.Sleep(20 * time.Millisecond)
	pool.Release(conn)

	select {
	case c := <-acquired:
		assert.True(c == conn)
		pool.Release(c)
	case <-time.After(time.Second):
		t.Fatal("blocked Acquire never woke after Release")
	}
}

func TestPoolAcquireFailsFastWhenNonBlocking(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 0, Max: 1, Block: false}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	ctx := context.Background()
	_, err = pool.Acquire(ctx)
	assert.Nil(err)

	_, err = pool.Acquire(ctx)
	assert.True(err != nil)
}

func TestPoolDisconnectFailsFutureAcquire(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 1, Max: 1, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	assert.Nil(pool.Fill(false))

	assert.Nil(pool.Disconnect(true))
	assert.Equal(pool.Size(), 0)

	_, err = pool.Acquire(context.Background())
	assert.True(err != nil)
}

func TestPoolExecuteCommandNormalizesReply(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Pool = redis.PoolInfo{Min: 0, Max: 1, Block: true}
	pool, err := redis.NewPool(cfg)
	assert.Nil(err)
	defer pool.Disconnect(true)

	op := redis.NewOperator("utf-8", true)
	resp, err := pool.ExecuteCommand(context.Background(), op, redis.NewCommand("GET", "hello"))
	assert.Nil(err)
	v, ok := resp.Reply.(redis.Value)
	assert.True(ok)
	assert.Equal(v.String(), "world")
}

// EOF
