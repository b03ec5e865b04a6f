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
)

//--------------------
// SUBSCRIPTION
//--------------------

// Message is one published value delivered on a Subscription's
// channel: a RESP3 push reply (or, under RESP2, the three/four-element
// "message"/"pmessage" array the server sends instead).
type Message struct {
	Kind    string // "message", "pmessage", "subscribe", "unsubscribe", ...
	Channel string
	Pattern string
	Payload Value
}

// Subscription is a minimal supplemented feature (see SPEC_FULL.md):
// a pinned connection dedicated to SUBSCRIBE/PSUBSCRIBE traffic, with
// incoming pushes collected through the connection's waiter FIFO (see
// deliver) and handed out on a channel. Full fan-out/re-subscription bookkeeping
// is out of scope; this is the minimal surface the pool needs to keep
// a subscriber connection out of the regular rotation.
type Subscription struct {
	client  *Client
	conn    *Connection
	pattern bool

	Messages <-chan Message
	messages chan Message
}

// newSubscription acquires a dedicated connection, pins it (it never
// returns to the pool while the Subscription is open), issues
// SUBSCRIBE for the given channels (PSUBSCRIBE for any that look like
// a glob pattern, per containsPattern), and starts the delivery loop.
func newSubscription(ctx context.Context, client *Client, channels []string) (*Subscription, error) {
	conn, err := client.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		client:   client,
		conn:     conn,
		messages: make(chan Message, 64),
	}
	sub.Messages = sub.messages

	var plain, patterns []string
	for _, ch := range channels {
		if containsPattern(ch) {
			patterns = append(patterns, ch)
		} else {
			plain = append(plain, ch)
		}
	}
	if len(plain) > 0 {
		if err := sub.subscribeVerb(ctx, "SUBSCRIBE", plain); err != nil {
			client.pool.Release(conn)
			return nil, err
		}
	}
	if len(patterns) > 0 {
		sub.pattern = true
		if err := sub.subscribeVerb(ctx, "PSUBSCRIBE", patterns); err != nil {
			client.pool.Release(conn)
			return nil, err
		}
	}
	go sub.deliver()
	return sub, nil
}

// PSubscribe adds one or more glob patterns to this subscription.
func (s *Subscription) PSubscribe(ctx context.Context, patterns ...string) error {
	s.pattern = true
	return s.subscribeVerb(ctx, "PSUBSCRIBE", patterns)
}

// Unsubscribe removes one or more channels from this subscription. No
// arguments unsubscribes from all channels.
func (s *Subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.subscribeVerb(ctx, "UNSUBSCRIBE", channels)
}

func (s *Subscription) subscribeVerb(ctx context.Context, verb string, items []string) error {
	args := make([]Encodable, len(items))
	for i, it := range items {
		args[i] = it
	}
	packed, err := s.client.op.Pack(NewCommand(verb, args...))
	if err != nil {
		return err
	}
	expect := len(items)
	if expect == 0 {
		expect = 1
	}
	_, _, err = s.conn.Dispatch(ctx, packed, expect)
	return err
}

// deliver runs for the lifetime of the subscription, translating raw
// pushed ResultSets arriving on the pinned connection's waiter FIFO
// into Messages. It relies on the connection driver treating every
// subscribe-mode reply as a one-reply waiter, since the server itself
// decides how many pushes to send and when.
func (s *Subscription) deliver() {
	defer close(s.messages)
	for {
		w, err := s.conn.EnqueuePush(1)
		if err != nil {
			return
		}
		<-w.done
		if w.fatal != nil {
			return
		}
		rs := w.values[0]
		msg := messageFromResultSet(rs)
		select {
		case s.messages <- msg:
		default:
			// Slow consumer: drop rather than block the read loop.
		}
	}
}

// messageFromResultSet interprets a push/message array reply:
// [kind, channel, payload] or [kind, pattern, channel, payload] for
// pattern subscriptions.
func messageFromResultSet(rs *ResultSet) Message {
	if rs == nil || rs.Len() == 0 {
		return Message{}
	}
	kind, _ := rs.StringAt(0)
	if rs.Len() == 4 {
		pattern, _ := rs.StringAt(1)
		channel, _ := rs.StringAt(2)
		payload, _ := rs.ValueAt(3)
		return Message{Kind: kind, Pattern: pattern, Channel: channel, Payload: payload}
	}
	channel, _ := rs.StringAt(1)
	var payload Value
	if rs.Len() > 2 {
		payload, _ = rs.ValueAt(2)
	}
	return Message{Kind: kind, Channel: channel, Payload: payload}
}

// Close unsubscribes from everything and releases the pinned
// connection back to the pool.
func (s *Subscription) Close() error {
	packed, err := s.client.op.Pack(NewCommand("UNSUBSCRIBE"))
	if err == nil {
		_, _, _ = s.conn.Dispatch(context.Background(), packed, 1)
	}
	s.client.pool.Release(s.conn)
	return nil
}

// EOF
