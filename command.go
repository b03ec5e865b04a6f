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
// CALLBACK
//--------------------

// CallbackArgs carries the keyword-ish arguments a Callback needs to
// shape its parsed result (e.g. whether a ZRANGE call asked for
// WITHSCORES). It replaces the original implementation's open-ended
// **kwargs with a small closed map, per spec.md §9.
type CallbackArgs map[string]interface{}

// Callback normalizes a raw reply into an application-shaped result.
// It is the plug-in surface spec.md §1 and §6 keep external to the
// core: response-specific parsers for INFO, CLIENT LIST, XPENDING and
// friends are registered per verb (see callbacks.go) rather than
// built into the operator.
type Callback func(raw *ResultSet, args CallbackArgs) (interface{}, error)

//--------------------
// COMMAND
//--------------------

// Command is one Redis invocation: a verb, its modifier arguments, and
// an optional callback to reshape the raw reply. Commands are compared
// by identity, matching spec.md §3 ("Hash-opaque (identity equality)").
// They are not strictly immutable: Operator.Pack and PackPipeline store
// the RESP2 default callback into a Command that has none.
type Command struct {
	Verb         string
	Modifiers    []Encodable
	Callback     Callback
	CallbackArgs CallbackArgs
}

// NewCommand builds a Command from a verb and its arguments.
func NewCommand(verb string, modifiers ...Encodable) *Command {
	return &Command{Verb: verb, Modifiers: modifiers}
}

// WithCallback attaches a response callback and its arguments, returning
// the same Command for chaining at construction time.
func (c *Command) WithCallback(cb Callback, args CallbackArgs) *Command {
	c.Callback = cb
	c.CallbackArgs = args
	return c
}

// tokens splits the verb on whitespace (commands like "CLIENT SETNAME"
// are two wire tokens). The modifiers are not included: the writer
// encodes and flattens them itself (see Writer.expand).
func (c *Command) tokens() []string {
	return strings.Fields(c.Verb)
}

//--------------------
// PIPELINE
//--------------------

// Pipeline is an ordered, append-only (until packed) list of commands
// dispatched together in one write, plus the two flags the operator
// needs to disambiguate the four MULTI/EXEC normalization cases of
// spec.md §4.B.
type Pipeline struct {
	Commands     []*Command
	Transaction  bool
	RaiseOnError bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline(transaction, raiseOnError bool) *Pipeline {
	return &Pipeline{Transaction: transaction, RaiseOnError: raiseOnError}
}

// Append adds a command to the pipeline. This is deliberately a
// distinct method from a raw slice append — the teacher's Python
// ancestor calls list.extend(command) here, which iterates the
// command's fields instead of appending the command itself (see
// spec.md §9's "possibly buggy source behavior"); Append always does
// the correct thing.
func (p *Pipeline) Append(cmd *Command) {
	p.Commands = append(p.Commands, cmd)
}

// Len returns the number of queued commands.
func (p *Pipeline) Len() int {
	return len(p.Commands)
}

//--------------------
// PACKED COMMAND
//--------------------

// Origin is whatever a PackedCommand was built from: a single Command
// or a Pipeline. It exists purely so PackedCommand.Origin can refer to
// either without an interface{}.
type Origin struct {
	Command  *Command
	Pipeline *Pipeline
}

// PackedCommand is a Command or Pipeline plus its wire-ready bytes.
type PackedCommand struct {
	Origin  Origin
	Payload []byte
}

//--------------------
// RESPONSE / PIPELINED RESPONSES
//--------------------

// Response is the normalized delivery object for a single command:
// its origin and the (already callback-normalized) reply.
type Response struct {
	Origin Origin
	Reply  interface{}
}

// PipelinedResponses is the normalized delivery object for a pipeline:
// its origin and the ordered, per-command replies.
type PipelinedResponses struct {
	Origin  Origin
	Replies []interface{}
}

// EOF
