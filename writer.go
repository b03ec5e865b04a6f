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
	"strconv"
)

//--------------------
// WRITER
//--------------------

// Writer packs Commands and Pipelines into RESP multi-bulk frames.
// It holds no connection state; encoding config (the text codec used
// for string arguments) is its only field, matching the sans-I/O
// design of spec.md §4.A.
type Writer struct {
	encoding string
}

// NewWriter creates a Writer using the given string encoding (UTF-8 by
// default, matching ClientInfo).
func NewWriter(encoding string) *Writer {
	if encoding == "" {
		encoding = "utf-8"
	}
	return &Writer{encoding: encoding}
}

// Pack encodes a single Command as one RESP multi-bulk frame:
// "*<N>\r\n" followed by N "$<len>\r\n<bytes>\r\n" bulk strings. N is
// the whitespace-split token count of the verb plus the flattened
// token count of the modifiers.
func (w *Writer) Pack(cmd *Command) (*PackedCommand, error) {
	payload, err := w.packCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &PackedCommand{Origin: Origin{Command: cmd}, Payload: payload}, nil
}

// PackPipeline encodes every command in the pipeline and concatenates
// the resulting frames into one contiguous buffer. Concatenation (not
// overwrite-in-place) resolves the "possibly buggy source behavior"
// noted in spec.md §9.
func (w *Writer) PackPipeline(ppl *Pipeline) (*PackedCommand, error) {
	var payload []byte
	for _, cmd := range ppl.Commands {
		part, err := w.packCommand(cmd)
		if err != nil {
			return nil, err
		}
		payload = append(payload, part...)
	}
	return &PackedCommand{Origin: Origin{Pipeline: ppl}, Payload: payload}, nil
}

// packCommand does the actual two-pass encode: count tokens, then
// emit them, so the declared "*<N>" header always matches the bulk
// strings that follow it.
func (w *Writer) packCommand(cmd *Command) ([]byte, error) {
	verbTokens := cmd.tokens()
	parts := make([][]byte, 0, len(cmd.Modifiers)+len(verbTokens))
	for _, t := range verbTokens {
		parts = append(parts, []byte(t))
	}
	for _, mod := range cmd.Modifiers {
		encoded, err := w.expand(mod)
		if err != nil {
			return nil, err
		}
		parts = append(parts, encoded...)
	}
	buf := make([]byte, 0, 16*len(parts))
	buf = append(buf, '*')
	buf = appendInt(buf, len(parts))
	buf = append(buf, '\r', '\n')
	for _, p := range parts {
		buf = append(buf, '$')
		buf = appendInt(buf, len(p))
		buf = append(buf, '\r', '\n')
		buf = append(buf, p...)
		buf = append(buf, '\r', '\n')
	}
	return buf, nil
}

// expand turns one command argument into its flattened wire tokens: a
// plain Encodable becomes one token; a valuer (slice-like argument)
// or Hash/Hashable becomes one token per flattened member.
func (w *Writer) expand(arg Encodable) ([][]byte, error) {
	switch typed := arg.(type) {
	case valuer:
		out := make([][]byte, 0, typed.Len())
		for _, v := range typed.Values() {
			out = append(out, []byte(v))
		}
		return out, nil
	case Hash:
		out := make([][]byte, 0, typed.Len()*2)
		for k, v := range typed {
			out = append(out, []byte(k), []byte(v))
		}
		return out, nil
	case Hashable:
		return w.expand(typed.GetHash())
	default:
		encoded, err := encodeValue(arg, w.encoding)
		if err != nil {
			return nil, err
		}
		return [][]byte{encoded}, nil
	}
}

// appendInt appends the decimal text of n to buf without an
// intermediate allocation for the common small-command case.
func appendInt(buf []byte, n int) []byte {
	return append(buf, []byte(strconv.Itoa(n))...)
}

// EOF
