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
	"fmt"
	"strings"
)

//--------------------
// CLIENT
//--------------------

// Client is the top-level facade over a pooled set of connections to
// one Redis server. A single command always goes through the pool;
// Txn additionally supports the pinned-connection WATCH/MULTI/EXEC
// path of spec.md §4.F.
type Client struct {
	cfg  *Config
	pool *Pool
	op   *Operator
}

// Open applies options over the documented defaults, builds the pool,
// and optionally pre-fills it (PreFill option), mirroring the
// teacher's Open.
func Open(options ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		pool: pool,
		op:   NewOperator(cfg.Client.Encoding, cfg.Client.RESPVersion == 2),
	}, nil
}

// Options returns a copy of the client's resolved configuration.
func (c *Client) Options() Config {
	return *c.cfg
}

// Close shuts down every connection in the pool.
func (c *Client) Close() error {
	return c.pool.Disconnect(true)
}

// String implements fmt.Stringer, returning address plus database
// index.
func (c *Client) String() string {
	return fmt.Sprintf("%s:%d", c.cfg.Address.Address, c.cfg.Address.Index)
}

//--------------------
// DO / DOVALUE / ...
//--------------------

// Do executes one Redis command through the pool and returns the raw
// result set.
func (c *Client) Do(ctx context.Context, verb string, args ...Encodable) (*ResultSet, error) {
	if strings.Contains(strings.ToLower(verb), "subscribe") {
		return nil, NewPubSubError("use Subscribe for subscriptions")
	}
	cmd := NewCommand(verb, args...)
	return c.pool.ExecuteRaw(ctx, c.op, cmd)
}

// DoValue executes one Redis command and returns a single scalar value.
func (c *Client) DoValue(ctx context.Context, verb string, args ...Encodable) (Value, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return nil, err
	}
	return rs.ValueAt(0)
}

// DoOK executes one Redis command and checks for the "OK" status reply.
func (c *Client) DoOK(ctx context.Context, verb string, args ...Encodable) (bool, error) {
	v, err := c.DoValue(ctx, verb, args...)
	if err != nil {
		return false, err
	}
	return v.IsOK(), nil
}

// DoBool executes one Redis command and interprets the reply as a bool.
func (c *Client) DoBool(ctx context.Context, verb string, args ...Encodable) (bool, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return false, err
	}
	return rs.BoolAt(0)
}

// DoInt executes one Redis command and interprets the reply as an int.
func (c *Client) DoInt(ctx context.Context, verb string, args ...Encodable) (int, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return 0, err
	}
	return rs.IntAt(0)
}

// DoString executes one Redis command and interprets the reply as a
// string.
func (c *Client) DoString(ctx context.Context, verb string, args ...Encodable) (string, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return "", err
	}
	return rs.StringAt(0)
}

// DoStrings executes one Redis command and returns its top-level
// scalar items as strings.
func (c *Client) DoStrings(ctx context.Context, verb string, args ...Encodable) ([]string, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return nil, err
	}
	return rs.Strings(), nil
}

// DoKeyValues executes one Redis command and interprets the reply as
// an alternating key/value array.
func (c *Client) DoKeyValues(ctx context.Context, verb string, args ...Encodable) (KeyValues, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return nil, err
	}
	return rs.KeyValues()
}

// DoHash executes one Redis command and interprets the reply as a
// field/value hash.
func (c *Client) DoHash(ctx context.Context, verb string, args ...Encodable) (Hash, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return nil, err
	}
	return rs.Hash()
}

// DoScoredValues executes one Redis command and interprets the reply
// as a sorted-set result, detecting a WITHSCORES modifier among args.
func (c *Client) DoScoredValues(ctx context.Context, verb string, args ...Encodable) (ScoredValues, error) {
	withScores := false
	for _, arg := range args {
		if s, ok := arg.(string); ok && strings.EqualFold(s, "withscores") {
			withScores = true
			break
		}
	}
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return nil, err
	}
	return rs.ScoredValues(withScores)
}

// DoScan executes one of the SCAN-family commands and returns its
// cursor plus the nested result set of scanned items.
func (c *Client) DoScan(ctx context.Context, verb string, args ...Encodable) (int, *ResultSet, error) {
	rs, err := c.Do(ctx, verb, args...)
	if err != nil {
		return 0, nil, err
	}
	return rs.Scanned()
}

//--------------------
// TXN / SUBSCRIPTION
//--------------------

// Txn starts a new pipeline/transaction builder. raiseOnError sets
// RaiseOnError on the underlying Pipeline (see Pipeline normalization,
// spec.md §4.B); the transaction flag itself is established lazily by
// Watch or Multi.
func (c *Client) Txn(raiseOnError bool) *Txn {
	return newTxn(c, false, raiseOnError)
}

// Subscribe opens a dedicated pinned connection and issues SUBSCRIBE
// to the given channels, per the minimal supplemented pub/sub surface
// (see SPEC_FULL.md).
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	return newSubscription(ctx, c, channels)
}

// EOF
