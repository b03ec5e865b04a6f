// Tideland Go Library - Redis Client
//
// Copyright (C) 2017-2026 Frank Mueller / Tideland / Oldenburg / Germany
//
// All rights reserved. Use of this source code is governed
// by the new BSD license.

package redis // import "tideland.dev/go/redis"

//--------------------
// IMPORTS
//--------------------

import (
	"context"

	"tideland.dev/go/trace/logger"
)

//--------------------
// TXN
//--------------------

// Txn is the client-facade batching/transaction builder of spec.md
// §4.F: commands are appended instead of sent, then Exec dispatches
// the whole batch in one write. Calling Watch pins a connection for
// the Txn's remaining lifetime, matching the teacher's Pipeline
// (command buffer + exclusive connection) generalized with the
// WATCH/MULTI/EXEC rules the teacher's ancestor never had to model.
type Txn struct {
	client *Client
	op     *Operator
	ppl    *Pipeline

	conn     *Connection // non-nil once Watch pins a connection
	watched  bool
	watchAck *ResultSet
	watchErr *ResponseError
}

// newTxn creates an empty, unpinned Txn. raiseOnError mirrors
// Pipeline.RaiseOnError; transaction requests the MULTI/EXEC wrapping
// — callers normally set it via Watch or Multi rather than directly.
func newTxn(client *Client, transaction, raiseOnError bool) *Txn {
	return &Txn{
		client: client,
		op:     client.op,
		ppl:    NewPipeline(transaction, raiseOnError),
	}
}

// Watch issues a standalone WATCH on a freshly acquired connection,
// pins it for the remainder of the Txn, and marks the batch as a
// MULTI/EXEC transaction. WATCH may not be pipelined
// (spec.md §4.F); it is always sent immediately, never appended to the
// command buffer.
func (t *Txn) Watch(ctx context.Context, keys ...string) error {
	if t.conn != nil {
		return NewPubSubError("WATCH must be the first call on a transaction")
	}
	conn, err := t.client.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	args := make([]Encodable, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	packed, err := t.op.Pack(NewCommand("WATCH", args...))
	if err != nil {
		t.client.pool.Release(conn)
		return err
	}
	values, errs, err := conn.Dispatch(ctx, packed, 1)
	if err != nil {
		t.client.pool.Release(conn)
		return err
	}
	t.conn = conn
	t.watched = true
	t.ppl.Transaction = true
	t.watchAck = values[0]
	t.watchErr = errs[0]
	return nil
}

// Multi marks the Txn as an explicit transaction. Calling it with
// queued commands already appended but no prior Watch is an error,
// matching spec.md §4.F's "issuing MULTI with non-empty stack that
// lacked an initial WATCH".
func (t *Txn) Multi() error {
	if !t.watched && t.ppl.Len() > 0 {
		return NewDataError("MULTI requires a preceding WATCH when commands are already queued")
	}
	t.ppl.Transaction = true
	return nil
}

// Do appends a command to the batch. It is never sent until Exec.
func (t *Txn) Do(cmd *Command) {
	t.ppl.Append(cmd)
}

// Discard abandons the Txn, releasing any pinned connection with a
// best-effort UNWATCH (any error it returns is ignored).
func (t *Txn) Discard() {
	if t.conn == nil {
		return
	}
	t.unwatch()
	t.client.pool.Release(t.conn)
	t.conn = nil
}

// Exec packs and dispatches the buffered commands in one write. If
// Watch pinned a connection, that connection is reused and the
// externally-obtained watch acknowledgement is spliced into position
// zero of the wire replies NormalizePipeline inspects; otherwise a
// connection is acquired from the pool for the duration of this one
// call. The Txn's buffer is reset and any pinned connection released
// (with a best-effort UNWATCH) once Exec returns.
func (t *Txn) Exec(ctx context.Context) (*PipelinedResponses, error) {
	defer t.reset()

	if t.ppl.Len() == 0 {
		return &PipelinedResponses{Origin: Origin{Pipeline: t.ppl}}, nil
	}

	conn := t.conn
	owned := false
	if conn == nil {
		var err error
		conn, err = t.client.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		owned = true
		defer func() {
			if owned {
				t.client.pool.Release(conn)
			}
		}()
	}

	packed, err := t.op.PackPipeline(t.ppl)
	if err != nil {
		return nil, err
	}
	expect := t.ppl.Len()
	if t.ppl.Transaction {
		expect += 2
	}
	values, errs, err := conn.Dispatch(ctx, packed, expect)
	if t.client.cfg.Logging || err != nil {
		logger.Infof("redis: pipeline of %d commands (transaction=%v) err=%v", t.ppl.Len(), t.ppl.Transaction, err)
	}
	if err != nil {
		return nil, err
	}
	if t.watched {
		values[0] = t.watchAck
		errs[0] = t.watchErr
	}
	return t.op.NormalizePipeline(t.ppl, values, errs)
}

// unwatch best-effort releases any WATCHed keys on the pinned
// connection before it goes back to the pool. A ConnectionError here
// is ignored: the connection is already being discarded by Release.
func (t *Txn) unwatch() {
	if t.conn == nil || !t.watched {
		return
	}
	packed, err := t.op.Pack(NewCommand("UNWATCH"))
	if err != nil {
		return
	}
	_, _, _ = t.conn.Dispatch(context.Background(), packed, 1)
}

// reset prepares the Txn for reuse after Exec, releasing any pinned
// connection with a best-effort UNWATCH first.
func (t *Txn) reset() {
	if t.conn != nil {
		t.unwatch()
		t.client.pool.Release(t.conn)
		t.conn = nil
	}
	t.watched = false
	t.watchAck = nil
	t.watchErr = nil
	t.ppl = NewPipeline(false, t.ppl.RaiseOnError)
}

// EOF
