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
	"strings"
	"testing"

	"tideland.dev/go/audit/asserts"
	"tideland.dev/go/redis"
)

//--------------------
// HELPERS
//--------------------

// readAll feeds raw into a fresh Operator and reads back every
// top-level ResultSet the wire bytes contain, in order.
func readAll(assert *asserts.Asserts, raw string) ([]*redis.ResultSet, []*redis.ResponseError) {
	op := redis.NewOperator("utf-8", true)
	op.Feed([]byte(raw), len(raw))

	var replies []*redis.ResultSet
	var errs []*redis.ResponseError
	for op.HasData() {
		rs, respErr, err := op.ReadOneResultSet()
		if err == redis.ErrNeedMore {
			break
		}
		assert.Nil(err)
		replies = append(replies, rs)
		errs = append(errs, respErr)
	}
	return replies, errs
}

//--------------------
// TESTS
//--------------------

func TestOperatorPackPipelineWrapsTransaction(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(true, true)
	ppl.Append(redis.NewCommand("SET", "a", "1"))
	ppl.Append(redis.NewCommand("GET", "a"))

	packed, err := op.PackPipeline(ppl)
	assert.Nil(err)
	payload := string(packed.Payload)
	assert.True(strings.Contains(payload, "MULTI"))
	assert.True(strings.Contains(payload, "EXEC"))
	assert.True(strings.Index(payload, "MULTI") < strings.Index(payload, "SET"))
	assert.True(strings.Index(payload, "GET") < strings.Index(payload, "EXEC"))
}

func TestOperatorPackPipelineVanillaHasNoBrackets(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(false, true)
	ppl.Append(redis.NewCommand("PING"))

	packed, err := op.PackPipeline(ppl)
	assert.Nil(err)
	assert.False(strings.Contains(string(packed.Payload), "MULTI"))
}

func TestOperatorNormalizeVanillaPipeline(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(false, true)
	ppl.Append(redis.NewCommand("SET", "a", "1"))
	ppl.Append(redis.NewCommand("GET", "a"))

	replies, errs := readAll(assert, "+OK\r\n$1\r\n1\r\n")
	assert.Length(replies, 2)

	out, err := op.NormalizePipeline(ppl, replies, errs)
	assert.Nil(err)
	assert.Length(out.Replies, 2)

	v, ok := out.Replies[1].(redis.Value)
	assert.True(ok)
	assert.Equal(v.String(), "1")
}

func TestOperatorNormalizeVanillaPipelineRaisesCompositeError(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(false, true)
	ppl.Append(redis.NewCommand("SET", "a", "1"))
	ppl.Append(redis.NewCommand("GET", "b"))
	ppl.Append(redis.NewCommand("DEL", "c"))

	// First and third commands fail; the second succeeds. A
	// RaiseOnError vanilla pipeline must not bail out on the first
	// failure — it has to walk the whole pipeline and raise one
	// composite error naming every failing command.
	replies, errs := readAll(assert, "-ERR first boom\r\n$1\r\n1\r\n-ERR third boom\r\n")
	assert.Length(replies, 3)

	_, err := op.NormalizePipeline(ppl, replies, errs)
	assert.True(err != nil)
	perr, ok := err.(*redis.PipelineResponseError)
	assert.True(ok)
	assert.Length(perr.Errors, 2)
	assert.Equal(perr.Errors[0].Index, 0)
	assert.Equal(perr.Errors[0].Verb, "SET")
	assert.Equal(perr.Errors[1].Index, 2)
	assert.Equal(perr.Errors[1].Verb, "DEL")
	assert.True(strings.Contains(err.Error(), "first boom"))
	assert.True(strings.Contains(err.Error(), "third boom"))
}

func TestOperatorNormalizeTransactionSplicesWatchAck(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(true, true)
	ppl.Append(redis.NewCommand("INCR", "counter"))

	// Simulates [watchAck, cmdAck, execBody] with the watchAck
	// already spliced in by the Txn layer over MULTI's own ack.
	replies, errs := readAll(assert, "+OK\r\n+OK\r\n*1\r\n:2\r\n")
	assert.Length(replies, 3)

	out, err := op.NormalizePipeline(ppl, replies, errs)
	assert.Nil(err)
	assert.Length(out.Replies, 1)
	v, ok := out.Replies[0].(redis.Value)
	assert.True(ok)
	assert.Equal(v.String(), "2")
}

func TestOperatorNormalizeTransactionWatchFailureAborts(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(true, true)
	ppl.Append(redis.NewCommand("INCR", "counter"))

	replies, errs := readAll(assert, "-ERR watch failed\r\n+OK\r\n*1\r\n:2\r\n")
	assert.Length(replies, 3)

	_, err := op.NormalizePipeline(ppl, replies, errs)
	assert.True(err != nil)
	assert.True(strings.Contains(err.Error(), "watch failed"))
}

func TestOperatorNormalizeTransactionNilExecIsWatchError(t *testing.T) {
	assert := asserts.NewTesting(t, asserts.FailStop)
	op := redis.NewOperator("utf-8", true)
	ppl := redis.NewPipeline(true, true)
	ppl.Append(redis.NewCommand("INCR", "counter"))

	replies, errs := readAll(assert, "+OK\r\n+OK\r\n*-1\r\n")
	assert.Length(replies, 3)

	_, err := op.NormalizePipeline(ppl, replies, errs)
	assert.True(err != nil)
	_, ok := err.(*redis.WatchError)
	assert.True(ok)
}

// EOF
