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
	"strings"
)

//--------------------
// OPERATOR
//--------------------

// Operator glues the Writer and Reader together: it packs Commands
// and Pipelines, and normalizes whatever the Reader hands back into a
// Response or PipelinedResponses, applying per-command callbacks and
// disambiguating plain pipelines from MULTI/EXEC transactions.
type Operator struct {
	writer      *Writer
	reader      *Reader
	resp2       bool
	resp2Lookup map[string]Callback
}

// NewOperator creates an operator over a fresh Writer/Reader pair.
// resp2 forces RESP2-shaped default callbacks for commands whose
// reply needs client-side normalization under that dialect (spec.md
// §4.B); Connect flips it to false before the handshake when RESP3 is
// configured and the server is 6.0.0 or later.
func NewOperator(encoding string, resp2 bool) *Operator {
	return &Operator{
		writer:      NewWriter(encoding),
		reader:      NewReader(),
		resp2:       resp2,
		resp2Lookup: resp2Callbacks,
	}
}

// SetRESP2 updates the dialect after a handshake negotiates RESP2 vs
// RESP3 (servers below 6.0.0 are forced to RESP2 per spec.md §4.C).
func (op *Operator) SetRESP2(resp2 bool) {
	op.resp2 = resp2
}

// Feed appends freshly-read bytes to the underlying Reader.
func (op *Operator) Feed(p []byte, n int) {
	op.reader.Feed(p, 0, n)
}

// HasData reports whether the reader holds unconsumed bytes.
func (op *Operator) HasData() bool {
	return op.reader.HasData()
}

//--------------------
// PACK
//--------------------

// Pack encodes a Command, attaching the RESP2 default callback table
// entry for its verb when the operator is speaking RESP2 and the
// command has none of its own.
func (op *Operator) Pack(cmd *Command) (*PackedCommand, error) {
	if op.resp2 && cmd.Callback == nil {
		if cb, ok := op.resp2Lookup[strings.ToUpper(cmd.Verb)]; ok {
			cmd.Callback = cb
		}
	}
	return op.writer.Pack(cmd)
}

// PackPipeline encodes a Pipeline, applying the same RESP2 default
// callback attachment to each of its commands. A transaction pipeline
// is wrapped MULTI ... EXEC on the wire; ppl.Commands itself never
// holds those two bracketing commands (WATCH is issued by the caller;
// MULTI and EXEC are added here, not by the pipeline builder), keeping
// NormalizePipeline's "length of exec_body must equal length of
// commands" invariant exact.
func (op *Operator) PackPipeline(ppl *Pipeline) (*PackedCommand, error) {
	if op.resp2 {
		for _, cmd := range ppl.Commands {
			if cmd.Callback == nil {
				if cb, ok := op.resp2Lookup[strings.ToUpper(cmd.Verb)]; ok {
					cmd.Callback = cb
				}
			}
		}
	}
	if !ppl.Transaction {
		return op.writer.PackPipeline(ppl)
	}
	wire := &Pipeline{Commands: make([]*Command, 0, len(ppl.Commands)+2)}
	wire.Commands = append(wire.Commands, NewCommand("MULTI"))
	wire.Commands = append(wire.Commands, ppl.Commands...)
	wire.Commands = append(wire.Commands, NewCommand("EXEC"))
	return op.writer.PackPipeline(wire)
}

//--------------------
// READ ONE RAW VALUE
//--------------------

// ReadOneResultSet collects one complete top-level reply (scalar or
// nested array/map/set) from the reader into a ResultSet, returning
// ErrNeedMore if the frame isn't fully buffered yet.
func (op *Operator) ReadOneResultSet() (*ResultSet, *ResponseError, error) {
	root := newResultSet()
	current := root
	for {
		f, err := op.reader.GetsFrame()
		if err != nil {
			return nil, nil, err
		}
		if f.IsAggregate {
			switch {
			case current == root && current.Len() == 0 && current.length < 0:
				rootLen := f.Length
				if kindDoublesElements(f.Kind) {
					rootLen *= 2
				}
				current.length = rootLen
				if rootLen <= 0 {
					return root, nil, nil
				}
			default:
				nestLen := f.Length
				if kindDoublesElements(f.Kind) {
					nestLen *= 2
				}
				nested := current.appendNested(nestLen)
				if nestLen > 0 {
					current = nested
				}
			}
		} else {
			current.append(f.Value)
		}
		if f.ServerError != nil && current == root && root.Len() == 1 {
			return root, f.ServerError, nil
		}
		next := current.nextResultSet()
		if next == nil {
			return root, nil, nil
		}
		current = next
	}
}

// kindDoublesElements reports whether the aggregate's declared length
// counts pairs rather than tokens (RESP3 maps and, by Redis convention
// when WITHSCORES is requested, the server already flattens to an
// array — so only genuine RESP3 '%' maps double here).
func kindDoublesElements(kind byte) bool {
	return kind == typeMap
}

//--------------------
// NORMALIZE — SINGLE COMMAND
//--------------------

// Normalize turns one raw ResultSet (and its possible server error)
// into a Response, applying the command's callback if any, or
// re-classifying a server error through the taxonomy.
func (op *Operator) Normalize(cmd *Command, raw *ResultSet, respErr *ResponseError) (*Response, error) {
	if respErr != nil {
		return nil, classifyError(respErr)
	}
	if cmd.Callback != nil {
		parsed, err := cmd.Callback(raw, cmd.CallbackArgs)
		if err != nil {
			return nil, err
		}
		return &Response{Origin: Origin{Command: cmd}, Reply: parsed}, nil
	}
	v, err := raw.ValueAt(0)
	if err != nil {
		// Not a scalar reply (array/map/set); return the raw set.
		return &Response{Origin: Origin{Command: cmd}, Reply: raw}, nil
	}
	return &Response{Origin: Origin{Command: cmd}, Reply: v}, nil
}

//--------------------
// NORMALIZE — PIPELINE
//--------------------

// NormalizePipeline implements the four-case MULTI/EXEC disambiguation
// of spec.md §4.B. wireReplies holds one entry per value the server
// actually sent: for a transaction that is
// [watchAck, cmdAck..., execBody]; for a vanilla pipeline it is one
// reply per command.
func (op *Operator) NormalizePipeline(ppl *Pipeline, wireReplies []*ResultSet, wireErrors []*ResponseError) (*PipelinedResponses, error) {
	if ppl.Transaction {
		return op.normalizeTransaction(ppl, wireReplies, wireErrors)
	}
	return op.normalizeVanilla(ppl, wireReplies, wireErrors)
}

// normalizeVanilla handles the (false, *) cases: zip commands 1:1 with
// replies. Every failing command is collected, never just the first —
// RaiseOnError raises one composite PipelineResponseError covering all
// of them after the full loop, matching normalizeTransaction below.
func (op *Operator) normalizeVanilla(ppl *Pipeline, wireReplies []*ResultSet, wireErrors []*ResponseError) (*PipelinedResponses, error) {
	out := &PipelinedResponses{Origin: Origin{Pipeline: ppl}}
	var pipelineErrs []PipelineError
	for i, cmd := range ppl.Commands {
		var reply interface{}
		if wireErrors[i] != nil {
			classified := classifyError(wireErrors[i])
			pipelineErrs = append(pipelineErrs, PipelineError{Index: i, Verb: cmd.Verb, Cause: classified})
			reply = classified
		} else {
			resp, err := op.Normalize(cmd, wireReplies[i], nil)
			if err != nil {
				pipelineErrs = append(pipelineErrs, PipelineError{Index: i, Verb: cmd.Verb, Cause: err})
				reply = err
			} else {
				reply = resp.Reply
			}
		}
		out.Replies = append(out.Replies, reply)
	}
	if len(pipelineErrs) > 0 && ppl.RaiseOnError {
		return nil, NewPipelineResponseError(pipelineErrs)
	}
	return out, nil
}

// normalizeTransaction handles the (true, *) cases: wireReplies is
// [watchAck, cmdAck(s)..., execBody]. watchAck/cmdAcks are consumed
// only for error detection (QUEUED is not surfaced to the caller);
// execBody (the last entry) carries the actual per-command replies.
func (op *Operator) normalizeTransaction(ppl *Pipeline, wireReplies []*ResultSet, wireErrors []*ResponseError) (*PipelinedResponses, error) {
	if len(wireReplies) < 2 {
		return nil, NewProtocolError("transaction pipeline expected at least 2 replies, got %d", len(wireReplies))
	}
	watchErr := wireErrors[0]
	if watchErr != nil {
		return nil, classifyError(watchErr)
	}
	execIdx := len(wireReplies) - 1
	if wireErrors[execIdx] != nil {
		return nil, classifyError(wireErrors[execIdx])
	}
	execBody := wireReplies[execIdx]
	if execBody == nil || execBody.IsNil() {
		return nil, NewWatchError()
	}
	if execBody.Len() != len(ppl.Commands) {
		return nil, NewProtocolError("EXEC reply length %d does not match %d queued commands", execBody.Len(), len(ppl.Commands))
	}
	out := &PipelinedResponses{Origin: Origin{Pipeline: ppl}}
	var pipelineErrs []PipelineError
	for i, cmd := range ppl.Commands {
		// Splice in any per-command error surfaced while queuing
		// (positions 1..execIdx-1 correspond 1:1 to commands).
		if i+1 < execIdx && wireErrors[i+1] != nil {
			classified := classifyError(wireErrors[i+1])
			pipelineErrs = append(pipelineErrs, PipelineError{Index: i, Verb: cmd.Verb, Cause: classified})
			out.Replies = append(out.Replies, classified)
			continue
		}
		v, err := execBody.ValueAt(i)
		if err != nil {
			// Nested array/map reply for this command; hand back the
			// raw element instead of a scalar.
			out.Replies = append(out.Replies, execBody.items[i].nest)
			continue
		}
		resp, nerr := op.Normalize(cmd, singleValueResultSet(v), nil)
		if nerr != nil {
			pipelineErrs = append(pipelineErrs, PipelineError{Index: i, Verb: cmd.Verb, Cause: nerr})
			out.Replies = append(out.Replies, nerr)
			continue
		}
		out.Replies = append(out.Replies, resp.Reply)
	}
	if len(pipelineErrs) > 0 {
		if ppl.RaiseOnError {
			return nil, NewPipelineResponseError(pipelineErrs)
		}
	}
	return out, nil
}

// singleValueResultSet wraps a lone Value in a ResultSet so Normalize
// (which expects a ResultSet) can be reused for EXEC's per-command
// elements.
func singleValueResultSet(v Value) *ResultSet {
	rs := newResultSet()
	rs.append(v)
	return rs
}

// EOF
