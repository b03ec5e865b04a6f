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

func TestResultSetHash(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	raw := "*4\r\n$5\r\nfield\r\n$4\r\nval1\r\n$6\r\nfield2\r\n$4\r\nval2\r\n"
	op.Feed([]byte(raw), len(raw))

	rs, respErr, err := op.ReadOneResultSet()
	assert.Nil(err)
	assert.Nil(respErr)

	h, err := rs.Hash()
	assert.Nil(err)
	assert.Length(h, 2)
	assert.Equal(h["field"].String(), "val1")
	assert.Equal(h["field2"].String(), "val2")
}

func TestResultSetScoredValuesWithScores(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	raw := "*4\r\n$1\r\na\r\n$1\r\n1\r\n$1\r\nb\r\n$1\r\n2\r\n"
	op.Feed([]byte(raw), len(raw))

	rs, _, err := op.ReadOneResultSet()
	assert.Nil(err)

	svs, err := rs.ScoredValues(true)
	assert.Nil(err)
	assert.Length(svs, 2)
	assert.Equal(svs[0].Value.String(), "a")
	assert.Equal(svs[0].Score, float64(1))
}

func TestResultSetScanned(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	raw := "*2\r\n$1\r\n0\r\n*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	op.Feed([]byte(raw), len(raw))

	rs, _, err := op.ReadOneResultSet()
	assert.Nil(err)

	cursor, items, err := rs.Scanned()
	assert.Nil(err)
	assert.Equal(cursor, 0)
	assert.Equal(items.Len(), 2)
}

func TestResultSetTopLevelRESP3Map(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", false)
	raw := "%2\r\n$1\r\na\r\n$1\r\n1\r\n$1\r\nb\r\n$1\r\n2\r\n"
	op.Feed([]byte(raw), len(raw))

	rs, respErr, err := op.ReadOneResultSet()
	assert.Nil(err)
	assert.Nil(respErr)

	// The map header declares 2 pairs, i.e. 4 wire tokens; a reply set
	// that only counted pairs would report itself complete, and thus
	// fully received, after just 2 tokens.
	h, err := rs.Hash()
	assert.Nil(err)
	assert.Length(h, 2)
	assert.Equal(h["a"].String(), "1")
	assert.Equal(h["b"].String(), "2")
}

func TestResultSetNestedArray(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	raw := "*2\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n"
	op.Feed([]byte(raw), len(raw))

	rs, _, err := op.ReadOneResultSet()
	assert.Nil(err)
	assert.Equal(rs.Len(), 2)

	_, err = rs.ValueAt(0)
	assert.True(err != nil) // nested array, not a scalar
}

// EOF
