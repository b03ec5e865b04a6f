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
// HELPERS
//--------------------

// testConfig builds a minimal Config pointed at addr, pre-seeded with a
// server version so Connect skips the INFO-server probe, which the fake
// server answers only with a generic +OK.
func testConfig(addr string) *redis.Config {
	return &redis.Config{
		Address: redis.AddressInfo{Network: "tcp", Address: addr},
		Client: redis.ClientInfo{
			Encoding:       "utf-8",
			EncodingErrors: "strict",
			RESPVersion:    2,
			ServerVersion:  redis.ServerVersion{Major: 7, Minor: 0, Patch: 0},
		},
		Socket: redis.SocketInfo{
			Timeout:        time.Second,
			ConnectTimeout: time.Second,
			ReadSize:       4096,
		},
	}
}

//--------------------
// TESTS
//--------------------

func TestConnectionConnectAndDispatch(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	conn := redis.NewConnection(testConfig(fs.Addr()))
	assert.False(conn.IsConnected())
	assert.Nil(conn.Connect())
	assert.True(conn.IsConnected())

	op := redis.NewOperator("utf-8", true)
	packed, err := op.Pack(redis.NewCommand("PING"))
	assert.Nil(err)

	values, errs, err := conn.Dispatch(context.Background(), packed, 1)
	assert.Nil(err)
	assert.Length(values, 1)
	assert.Nil(errs[0])

	v, err := values[0].ValueAt(0)
	assert.Nil(err)
	assert.Equal(v.String(), "PONG")

	assert.Nil(conn.Disconnect())
	assert.False(conn.IsConnected())
}

func TestConnectionDispatchAfterDisconnectFails(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(defaultHandler)
	assert.Nil(err)
	defer fs.Close()

	conn := redis.NewConnection(testConfig(fs.Addr()))
	assert.Nil(conn.Connect())
	assert.Nil(conn.Disconnect())

	op := redis.NewOperator("utf-8", true)
	packed, err := op.Pack(redis.NewCommand("PING"))
	assert.Nil(err)

	_, _, err = conn.Dispatch(context.Background(), packed, 1)
	assert.True(err != nil)
}

func TestConnectionPoisonsOnServerHangup(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	fs, err := newFakeServer(func(verb string, args []string) []byte {
		if verb == "QUIT" {
			return nil // tells the fake server to hang up unanswered
		}
		return defaultHandler(verb, args)
	})
	assert.Nil(err)
	defer fs.Close()

	conn := redis.NewConnection(testConfig(fs.Addr()))
	assert.Nil(conn.Connect())

	op := redis.NewOperator("utf-8", true)
	packed, err := op.Pack(redis.NewCommand("QUIT"))
	assert.Nil(err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err = conn.Dispatch(ctx, packed, 1)
	assert.True(err != nil)
}

func TestConnectionCheckHealthSendsPing(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	pinged := make(chan struct{}, 1)
	fs, err := newFakeServer(func(verb string, args []string) []byte {
		if verb == "PING" {
			select {
			case pinged <- struct{}{}:
			default:
			}
		}
		return defaultHandler(verb, args)
	})
	assert.Nil(err)
	defer fs.Close()

	cfg := testConfig(fs.Addr())
	cfg.Client.HealthCheckInterval = time.Millisecond
	conn := redis.NewConnection(cfg)
	assert.Nil(conn.Connect())

	assert.Nil(conn.CheckHealth(context.Background(), time.Now().Add(time.Hour)))

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("expected CheckHealth to send a PING")
	}
}

// EOF
