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
	"testing"

	"tideland.dev/go/audit/asserts"
	"tideland.dev/go/redis"
)

//--------------------
// TESTS
//--------------------

func TestReaderScalarFrames(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	r := redis.NewReader()
	r.Feed([]byte("+OK\r\n:42\r\n$5\r\nhello\r\n$-1\r\n_\r\n"), 0, -1)

	f, err := r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "OK")

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "42")

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "hello")

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.True(f.Value.IsNil())

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.True(f.Value == nil)
}

func TestReaderNeedsMore(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	r := redis.NewReader()
	r.Feed([]byte("$5\r\nhel"), 0, -1)

	_, err := r.GetsFrame()
	assert.Equal(err, redis.ErrNeedMore)

	r.Feed([]byte("lo\r\n"), 0, -1)
	f, err := r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "hello")
}

func TestReaderArrayHeader(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	r := redis.NewReader()
	r.Feed([]byte("*2\r\n$1\r\na\r\n$1\r\nb\r\n"), 0, -1)

	f, err := r.GetsFrame()
	assert.Nil(err)
	assert.True(f.IsAggregate)
	assert.Equal(f.Length, 2)

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "a")

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "b")
}

func TestReaderServerError(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	r := redis.NewReader()
	r.Feed([]byte("-ERR wrong number of arguments\r\n"), 0, -1)

	f, err := r.GetsFrame()
	assert.Nil(err)
	assert.True(f.ServerError != nil)
	assert.Equal(f.ServerError.Code, "ERR")
}

func TestReaderRESP3Boolean(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	r := redis.NewReader()
	r.Feed([]byte("#t\r\n#f\r\n"), 0, -1)

	f, err := r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "1")

	f, err = r.GetsFrame()
	assert.Nil(err)
	assert.Equal(f.Value.String(), "0")
}

// EOF
