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
	"strings"

	"tideland.dev/go/trace/failure"
)

//--------------------
// ENCODABLE
//--------------------

// Encodable is the sum of types the writer knows how to turn into a
// RESP bulk string: raw bytes, strings, integers, floats and booleans.
// Anything else reaching encodeValue is a DataError.
type Encodable interface{}

// encodeValue turns an Encodable into its wire bytes using the given
// encoding. Strings pass through the codec; integers use their decimal
// text; floats use the shortest round-trippable text; byte slices and
// Values pass through untouched.
func encodeValue(v Encodable, encoding string) ([]byte, error) {
	switch typed := v.(type) {
	case Value:
		return []byte(typed), nil
	case []byte:
		return typed, nil
	case string:
		return encodeString(typed, encoding)
	case int:
		return []byte(strconv.Itoa(typed)), nil
	case int64:
		return []byte(strconv.FormatInt(typed, 10)), nil
	case int32:
		return []byte(strconv.FormatInt(int64(typed), 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(typed, 10)), nil
	case float32:
		return []byte(strconv.FormatFloat(float64(typed), 'g', -1, 32)), nil
	case float64:
		return []byte(strconv.FormatFloat(typed, 'g', -1, 64)), nil
	case bool:
		if typed {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	default:
		return nil, NewDataError("invalid type %T; convert to one of string, []byte, int, int64, float64, bool", v)
	}
}

// encodeString re-encodes s if encoding asks for anything other than
// plain UTF-8 passthrough.
func encodeString(s, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return []byte(s), nil
	default:
		return nil, failure.New("unsupported encoding %q", encoding)
	}
}

//--------------------
// VALUE
//--------------------

// Value is one scalar reply as received from Redis: a bulk string, a
// simple string, or the decimal text of an integer reply. Array and
// map replies are represented by ResultSet.
type Value []byte

// IsOK checks if the value contains the Redis status reply "OK".
func (v Value) IsOK() bool {
	return strings.EqualFold(string(v), "OK")
}

// IsNil checks if the value is the nil/null bulk reply.
func (v Value) IsNil() bool {
	return v == nil
}

// String returns the value as a string.
func (v Value) String() string {
	return string(v)
}

// Bytes returns the value as a raw byte slice.
func (v Value) Bytes() []byte {
	return []byte(v)
}

// Bool returns the value interpreted as a boolean. "1", "true" and "OK"
// are true; "0", "false" and the empty/nil value are false.
func (v Value) Bool() (bool, error) {
	if v.IsNil() || len(v) == 0 {
		return false, nil
	}
	switch strings.ToLower(string(v)) {
	case "1", "true", "ok":
		return true, nil
	case "0", "false":
		return false, nil
	}
	i, err := v.Int()
	if err != nil {
		return false, failure.Annotate(err, "cannot convert %q to bool", string(v))
	}
	return i != 0, nil
}

// Int returns the value interpreted as an integer.
func (v Value) Int() (int, error) {
	if v.IsNil() {
		return 0, nil
	}
	i, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, failure.Annotate(err, "cannot convert %q to int", string(v))
	}
	return i, nil
}

// Float returns the value interpreted as a float64.
func (v Value) Float() (float64, error) {
	if v.IsNil() {
		return 0, nil
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, failure.Annotate(err, "cannot convert %q to float", string(v))
	}
	return f, nil
}

//--------------------
// HASH / KEYVALUES / SCOREDVALUES
//--------------------

// Hash is a mapping of field names to values, as returned by HGETALL
// and accepted by HSET-style commands.
type Hash map[string]Value

// Len returns the number of fields.
func (h Hash) Len() int {
	return len(h)
}

// Hashable is implemented by types able to render themselves as a Hash
// for the purpose of building command arguments (e.g. HMSET payloads).
type Hashable interface {
	GetHash() Hash
}

// KeyValue pairs a key with its value, as returned by commands like
// MGET combined with their keys, or BLPOP.
type KeyValue struct {
	Key   string
	Value Value
}

// KeyValues is an ordered list of KeyValue pairs.
type KeyValues []KeyValue

// ScoredValue pairs a value with its sorted-set score.
type ScoredValue struct {
	Value Value
	Score float64
}

// ScoredValues is an ordered list of ScoredValue pairs.
type ScoredValues []ScoredValue

// Values is the list of Values in a ScoredValues, dropping the scores;
// it exists so ScoredValues can satisfy the writer's valuer interface
// when fed back into a command (e.g. ZADD).
func (svs ScoredValues) Values() []Value {
	out := make([]Value, len(svs))
	for i, sv := range svs {
		out[i] = sv.Value
	}
	return out
}

// Len implements valuer.
func (svs ScoredValues) Len() int {
	return len(svs)
}

//--------------------
// MULTI-VALUE ARGUMENT
//--------------------

// valuer describes any type able to return a flat list of values, used
// when packing a command argument that expands to several wire tokens
// (e.g. a slice of keys).
type valuer interface {
	Len() int
	Values() []Value
}

// Values is a plain multi-value argument, e.g. for MSET/DEL with a
// caller-built key list.
type Values []Value

// Len implements valuer.
func (vs Values) Len() int {
	return len(vs)
}

// Values implements valuer.
func (vs Values) Values() []Value {
	return vs
}

// EOF
