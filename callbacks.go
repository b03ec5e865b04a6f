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
// RESP2 CALLBACK REGISTRY
//--------------------

// resp2Callbacks is a process-wide, immutable table of response
// callbacks applied by default when the operator speaks RESP2 and the
// caller attached none of its own — the "global module registry"
// design note of spec.md §9. It is populated once below and never
// mutated afterwards; it holds only the four entries listed, and being
// unexported it offers no way for other packages to add entries.
var resp2Callbacks = map[string]Callback{
	"PING":        callbackPing,
	"HGETALL":     callbackHash,
	"CONFIG GET":  callbackKeyValues,
	"CLIENT LIST": callbackClientList,
}

// callbackPing normalizes PING's RESP2 status reply ("+PONG") to a
// plain bool, matching the RESP3 boolean reply shape some clients
// expect uniformly across dialects.
func callbackPing(raw *ResultSet, _ CallbackArgs) (interface{}, error) {
	v, err := raw.ValueAt(0)
	if err != nil {
		return nil, err
	}
	return strings.EqualFold(v.String(), "PONG") || v.IsOK(), nil
}

// callbackHash normalizes a flat field/value array into a Hash, used
// by HGETALL under RESP2 (RESP3 returns a native map and needs no
// callback).
func callbackHash(raw *ResultSet, _ CallbackArgs) (interface{}, error) {
	return raw.Hash()
}

// callbackKeyValues normalizes a flat key/value array, used by
// CONFIG GET under RESP2.
func callbackKeyValues(raw *ResultSet, _ CallbackArgs) (interface{}, error) {
	return raw.KeyValues()
}

// callbackClientList splits CLIENT LIST's newline-delimited
// "key=value ..." record format into one map per client, matching the
// external callback-plug-in surface spec.md §6 names explicitly.
func callbackClientList(raw *ResultSet, _ CallbackArgs) (interface{}, error) {
	v, err := raw.ValueAt(0)
	if err != nil {
		return nil, err
	}
	return parseClientList(v.String()), nil
}

// parseClientList parses the "key=value key=value\n..." record format
// shared by CLIENT LIST, CLIENT INFO and similar introspection
// commands into one map per line.
func parseClientList(s string) []map[string]string {
	var out []map[string]string
	line := []byte{}
	flush := func() {
		if len(line) == 0 {
			return
		}
		out = append(out, parseKVLine(string(line)))
		line = line[:0]
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			flush()
			continue
		}
		line = append(line, s[i])
	}
	flush()
	return out
}

// parseKVLine parses one "key=value key=value" record.
func parseKVLine(line string) map[string]string {
	fields := strings.Fields(line)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if i := strings.IndexByte(f, '='); i >= 0 {
			out[f[:i]] = f[i+1:]
		}
	}
	return out
}

// EOF
