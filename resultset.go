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

	"tideland.dev/go/trace/failure"
)

//--------------------
// RESULT SET
//--------------------

// item is one element of a ResultSet: either a scalar Value or a
// nested *ResultSet (for arrays/maps/sets within arrays).
type item struct {
	value Value
	nest  *ResultSet
}

// ResultSet collects the replies of one command. A command returning
// a scalar produces a ResultSet of length one; a command returning an
// array/map/set produces a ResultSet whose items may themselves be
// ResultSets (nested arrays).
type ResultSet struct {
	parent *ResultSet
	length int
	items  []item
}

// newResultSet creates an empty result set.
func newResultSet() *ResultSet {
	return &ResultSet{length: -1}
}

// Len returns the number of top-level items collected so far.
func (rs *ResultSet) Len() int {
	return len(rs.items)
}

// IsNil reports whether this result set came from a nil reply (RESP2
// "*-1" or "$-1", RESP3 "_") rather than a genuinely empty array or a
// non-nil scalar — the distinction EXEC's aborted-transaction reply
// depends on.
func (rs *ResultSet) IsNil() bool {
	if rs.length >= 0 {
		return false
	}
	return len(rs.items) == 0 || (len(rs.items) == 1 && rs.items[0].nest == nil && rs.items[0].value == nil)
}

// append adds a scalar value to the result set.
func (rs *ResultSet) append(v Value) {
	rs.items = append(rs.items, item{value: v})
}

// appendNested adds a nested result set (from an array-within-array
// reply) and returns it so the caller can continue filling it.
func (rs *ResultSet) appendNested(length int) *ResultSet {
	nested := &ResultSet{parent: rs, length: length}
	rs.items = append(rs.items, item{nest: nested})
	return nested
}

// allReceived reports whether this result set has collected as many
// items as its declared length promised. A length of -1 (not yet an
// array, or a nil array) counts as fully received once at least one
// item exists, matching the single-scalar-reply case.
func (rs *ResultSet) allReceived() bool {
	if rs.length < 0 {
		return len(rs.items) > 0
	}
	return len(rs.items) >= rs.length
}

// nextResultSet walks up the parent chain while the current result
// set is fully received, returning the next result set still awaiting
// items, or nil once the root is complete.
func (rs *ResultSet) nextResultSet() *ResultSet {
	current := rs
	for current != nil && current.allReceived() {
		if current.parent == nil {
			return nil
		}
		current = current.parent
	}
	return current
}

//--------------------
// ACCESSORS
//--------------------

// ValueAt returns the scalar value at the given top-level index.
func (rs *ResultSet) ValueAt(index int) (Value, error) {
	if index < 0 || index >= len(rs.items) {
		return nil, failure.New("index %d out of range (0..%d)", index, len(rs.items)-1)
	}
	it := rs.items[index]
	if it.nest != nil {
		return nil, failure.New("item at index %d is an array, not a scalar", index)
	}
	return it.value, nil
}

// BoolAt returns the value at index interpreted as a bool.
func (rs *ResultSet) BoolAt(index int) (bool, error) {
	v, err := rs.ValueAt(index)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// IntAt returns the value at index interpreted as an int.
func (rs *ResultSet) IntAt(index int) (int, error) {
	v, err := rs.ValueAt(index)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// StringAt returns the value at index interpreted as a string.
func (rs *ResultSet) StringAt(index int) (string, error) {
	v, err := rs.ValueAt(index)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Strings returns all top-level scalar items as strings, skipping
// nested arrays.
func (rs *ResultSet) Strings() []string {
	out := make([]string, 0, len(rs.items))
	for _, it := range rs.items {
		if it.nest != nil {
			continue
		}
		out = append(out, it.value.String())
	}
	return out
}

// Values returns all top-level scalar items, skipping nested arrays.
func (rs *ResultSet) Values() []Value {
	out := make([]Value, 0, len(rs.items))
	for _, it := range rs.items {
		if it.nest != nil {
			continue
		}
		out = append(out, it.value)
	}
	return out
}

// KeyValues interprets the result set as an alternating key/value
// array, as returned by commands like CONFIG GET.
func (rs *ResultSet) KeyValues() (KeyValues, error) {
	if len(rs.items)%2 != 0 {
		return nil, failure.New("result set has an odd number of items, cannot pair as key/values")
	}
	out := make(KeyValues, 0, len(rs.items)/2)
	for i := 0; i < len(rs.items); i += 2 {
		key, err := rs.ValueAt(i)
		if err != nil {
			return nil, err
		}
		value, err := rs.ValueAt(i + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, KeyValue{Key: key.String(), Value: value})
	}
	return out, nil
}

// Hash interprets the result set as an alternating field/value array,
// as returned by HGETALL.
func (rs *ResultSet) Hash() (Hash, error) {
	kvs, err := rs.KeyValues()
	if err != nil {
		return nil, err
	}
	h := make(Hash, len(kvs))
	for _, kv := range kvs {
		h[kv.Key] = kv.Value
	}
	return h, nil
}

// ScoredValues interprets the result set as a sorted-set reply. When
// withScores is true the array alternates member/score; otherwise
// every item is a member with a zero score.
func (rs *ResultSet) ScoredValues(withScores bool) (ScoredValues, error) {
	if !withScores {
		out := make(ScoredValues, len(rs.items))
		for i, it := range rs.items {
			out[i] = ScoredValue{Value: it.value}
		}
		return out, nil
	}
	if len(rs.items)%2 != 0 {
		return nil, failure.New("result set has an odd number of items, cannot pair as member/score")
	}
	out := make(ScoredValues, 0, len(rs.items)/2)
	for i := 0; i < len(rs.items); i += 2 {
		member, err := rs.ValueAt(i)
		if err != nil {
			return nil, err
		}
		scoreValue, err := rs.ValueAt(i + 1)
		if err != nil {
			return nil, err
		}
		score, err := scoreValue.Float()
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredValue{Value: member, Score: score})
	}
	return out, nil
}

// Scanned interprets the result set as the two-element reply of a SCAN
// family command: a cursor and a nested result set of the scanned
// items.
func (rs *ResultSet) Scanned() (int, *ResultSet, error) {
	if len(rs.items) != 2 {
		return 0, nil, failure.New("scan reply must have exactly 2 items, got %d", len(rs.items))
	}
	cursorValue, err := rs.ValueAt(0)
	if err != nil {
		return 0, nil, err
	}
	cursor, err := cursorValue.Int()
	if err != nil {
		return 0, nil, failure.Annotate(err, "cannot parse scan cursor")
	}
	nested := rs.items[1].nest
	if nested == nil {
		nested = newResultSet()
		if v, verr := rs.ValueAt(1); verr == nil {
			nested.append(v)
		}
	}
	return cursor, nested, nil
}

// String returns a human-readable representation for logging.
func (rs *ResultSet) String() string {
	parts := make([]string, len(rs.items))
	for i, it := range rs.items {
		if it.nest != nil {
			parts[i] = it.nest.String()
		} else {
			parts[i] = it.value.String()
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// EOF
