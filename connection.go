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
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"tideland.dev/go/together/wait"
	"tideland.dev/go/trace/failure"
	"tideland.dev/go/trace/logger"
)

//--------------------
// CONNECTION STATE
//--------------------

type connState int32

const (
	stateNotConnected connState = iota
	stateConnected
	stateError
)

//--------------------
// CONNECTION CLOSED EVENT
//--------------------

// ConnectionClosed is the synthetic event SendCommand returns when
// invoked on a connection that is in the middle of disconnecting —
// spec.md §4.D deliberately surfaces this as its own condition rather
// than a generic ConnectionError, so the caller (pool/client) can
// retry against a different connection instead of treating it as
// fatal.
type ConnectionClosed struct{}

func (ConnectionClosed) Error() string { return "connection is closing" }

//--------------------
// WAITER
//--------------------

// waiter is one entry in a connection's FIFO. It collects `expect` raw
// ResultSets (1 for a single Command; len(commands)+2 for a
// transaction Pipeline; len(commands) for a vanilla Pipeline) before
// resolving. The n-th parsed reply from the stream always pairs with
// the n-th enqueued waiter's next expected slot — this is the
// invariant spec.md §3 and §8 both call out.
type waiter struct {
	expect int
	values []*ResultSet
	errs   []*ResponseError
	done   chan struct{}
	fatal  error // set if the connection died before this waiter completed
}

func newWaiter(expect int) *waiter {
	return &waiter{expect: expect, done: make(chan struct{})}
}

// deliver feeds one parsed reply into the waiter; it reports whether
// the waiter is now fully satisfied.
func (w *waiter) deliver(rs *ResultSet, respErr *ResponseError) bool {
	w.values = append(w.values, rs)
	w.errs = append(w.errs, respErr)
	if len(w.values) >= w.expect {
		close(w.done)
		return true
	}
	return false
}

// fail resolves the waiter with a connection-level error (lost
// connection, poisoned stream) regardless of how many replies it was
// still awaiting.
func (w *waiter) fail(err error) {
	select {
	case <-w.done:
		// already resolved normally; nothing to do
	default:
		w.fatal = err
		close(w.done)
	}
}

//--------------------
// CONNECTION
//--------------------

// Connection owns one socket to a Redis server: it writes packed
// commands, maintains the waiter FIFO, and runs a dedicated read-loop
// goroutine that dispatches parsed replies back to waiters. This is
// the "connection driver" of spec.md §4.D; the same Operator/Reader it
// wraps would equally drive a cooperative scheduler, since Go's own
// goroutine scheduler already gives every blocking call here
// (connect, Read, Write, queue wait) the suspend/resume behavior
// spec.md §9 asks two separate drivers for for — see DESIGN.md.
type Connection struct {
	cfg *Config

	mu        sync.Mutex // guards state/cause/conn/operator/waiters together
	state     connState
	cause     error
	conn      net.Conn
	operator  *Operator
	waiters   []*waiter
	closing   bool
	connectMu sync.Mutex // makes connect() mutually exclusive with itself
	writeMu   sync.Mutex // serializes "enqueue waiter, then write" so waiter order always matches write order
}

// NewConnection creates an unconnected Connection for the given
// config. Call Connect before sending commands.
func NewConnection(cfg *Config) *Connection {
	return &Connection{
		cfg:      cfg,
		state:    stateNotConnected,
		operator: NewOperator(cfg.Client.Encoding, cfg.Client.RESPVersion == 2),
	}
}

// IsConnected reports whether the connection is in the Connected
// state.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

//--------------------
// CONNECT
//--------------------

// Connect dials the configured address, tunes the socket, and runs the
// on-connect handshake. It is idempotent: a second call while already
// Connected is a no-op, and concurrent calls serialize on connectMu so
// only one dial/handshake is ever in flight.
func (c *Connection) Connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return NewConnectionError(err, "cannot establish new connection")
	}
	c.configureSocket(conn)

	c.mu.Lock()
	c.conn = conn
	c.state = stateConnected
	c.cause = nil
	c.closing = false
	c.mu.Unlock()

	go c.readLoop()

	if c.cfg.Client.ServerVersion.IsZero() {
		if v, verr := c.fetchServerVersion(); verr == nil {
			c.cfg.Client.ServerVersion = v
		}
	}
	if !c.cfg.Client.ServerVersion.AtLeast(6, 0, 0) {
		c.operator.SetRESP2(true)
	} else if c.cfg.Client.RESPVersion == 3 {
		c.operator.SetRESP2(false)
	}

	routine := buildOnConnectRoutine(c.cfg)
	if err := c.runHandshake(routine); err != nil {
		c.disconnectLocked(err)
		if _, ok := err.(*AuthenticationError); ok {
			return err
		}
		if re, ok := err.(*ResponseError); ok {
			return NewConnectionError(re, "on-connect handshake failed")
		}
		return err
	}
	return nil
}

// dial opens the transport: TCP or Unix, optionally wrapped in TLS.
func (c *Connection) dial() (net.Conn, error) {
	network := c.cfg.Address.Network
	if network == "" {
		network = defaultNetwork
	}
	conn, err := net.DialTimeout(network, c.cfg.Address.Address, c.cfg.Socket.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	if c.cfg.SSL.Enabled {
		tlsCfg := c.cfg.SSL.Config
		if tlsCfg == nil {
			tlsCfg = &tls.Config{InsecureSkipVerify: !c.cfg.SSL.CheckHostname}
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
	return conn, nil
}

// configureSocket applies TCP_NODELAY (always) and SO_KEEPALIVE (when
// requested) to a freshly dialed TCP connection; Unix sockets have no
// equivalent options.
func (c *Connection) configureSocket(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tcpConn.SetNoDelay(true)
	if c.cfg.Socket.Keepalive {
		tcpConn.SetKeepAlive(true)
		if c.cfg.Socket.KeepalivePeriod > 0 {
			tcpConn.SetKeepAlivePeriod(c.cfg.Socket.KeepalivePeriod)
		}
	}
}

// fetchServerVersion sends INFO server and parses the redis_version
// field, used when the caller hasn't pre-seeded ServerVersionHint. The
// "parse a greeting for a semver triple before proceeding" shape
// mirrors the teacher's sibling couchdb.Manager.fetchVersion.
func (c *Connection) fetchServerVersion() (ServerVersion, error) {
	rs, respErr, err := c.doRaw(NewCommand("INFO", "server"))
	if err != nil {
		return ServerVersion{}, err
	}
	if respErr != nil {
		return ServerVersion{}, classifyError(respErr)
	}
	v, err := rs.ValueAt(0)
	if err != nil {
		return ServerVersion{}, err
	}
	return parseServerVersion(v.String()), nil
}

// parseServerVersion extracts "redis_version:X.Y.Z" from an INFO
// server payload.
func parseServerVersion(info string) ServerVersion {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "redis_version:") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(line, "redis_version:"), ".", 3)
		var out [3]int
		for i := 0; i < len(parts) && i < 3; i++ {
			n, _ := strconv.Atoi(strings.TrimSpace(parts[i]))
			out[i] = n
		}
		return ServerVersion{out[0], out[1], out[2]}
	}
	return ServerVersion{}
}

// runHandshake sends the compiled init command and stack, raising on
// the first error exactly as spec.md §4.C describes (the stack is
// packed as a raise_on_error pipeline when it holds more than one
// command).
func (c *Connection) runHandshake(routine *onConnectRoutine) error {
	if routine.init != nil {
		rs, respErr, err := c.doRaw(routine.init)
		if err != nil {
			return err
		}
		if respErr != nil {
			return classifyError(respErr)
		}
		_ = rs
	}
	if len(routine.stack) == 0 {
		return nil
	}
	if len(routine.stack) == 1 {
		rs, respErr, err := c.doRaw(routine.stack[0])
		if err != nil {
			return err
		}
		if respErr != nil {
			return classifyError(respErr)
		}
		_ = rs
		return nil
	}
	ppl := NewPipeline(false, true)
	ppl.Commands = routine.stack
	packed, err := c.operator.PackPipeline(ppl)
	if err != nil {
		return err
	}
	wireReplies, wireErrors, err := c.writeAndCollect(packed, len(routine.stack))
	if err != nil {
		return err
	}
	_, err = c.operator.normalizeVanilla(ppl, wireReplies, wireErrors)
	return err
}

// doRaw packs and sends a single ad-hoc command used during the
// handshake, before normal SendCommand bookkeeping (callbacks, pool
// accounting) is relevant.
func (c *Connection) doRaw(cmd *Command) (*ResultSet, *ResponseError, error) {
	packed, err := c.operator.Pack(cmd)
	if err != nil {
		return nil, nil, err
	}
	wireReplies, wireErrors, err := c.writeAndCollect(packed, 1)
	if err != nil {
		return nil, nil, err
	}
	return wireReplies[0], wireErrors[0], nil
}

// writeAndCollect writes a packed frame and blocks for `expect` raw
// replies, used only during the handshake where the connection is not
// yet shared with concurrent callers.
func (c *Connection) writeAndCollect(packed *PackedCommand, expect int) ([]*ResultSet, []*ResponseError, error) {
	w := c.enqueueAndWrite(packed, expect)
	<-w.done
	if w.fatal != nil {
		return nil, nil, w.fatal
	}
	return w.values, w.errs, nil
}

//--------------------
// SEND COMMAND
//--------------------

// SendCommand writes a packed command or pipeline and returns a
// completion channel that the read loop resolves once all of its
// expected replies have arrived. expect is 1 for a single Command,
// len(Pipeline.Commands)+2 for a transaction, or len(Pipeline.Commands)
// for a vanilla pipeline.
func (c *Connection) SendCommand(packed *PackedCommand, expect int) (<-chan struct{}, *waiter, error) {
	c.mu.Lock()
	state := c.state
	closing := c.closing
	cause := c.cause
	c.mu.Unlock()

	if closing {
		return nil, nil, ConnectionClosed{}
	}
	switch state {
	case stateNotConnected:
		return nil, nil, NewConnectionError(nil, "not connected")
	case stateError:
		return nil, nil, cause
	}

	w := c.enqueueAndWrite(packed, expect)
	return w.done, w, nil
}

// Dispatch writes a packed command or pipeline and blocks for its
// `expect` replies, honoring ctx cancellation while waiting. It is the
// shared send/await path used by both the pool's fast path and a
// Txn's pinned-connection path.
func (c *Connection) Dispatch(ctx context.Context, packed *PackedCommand, expect int) ([]*ResultSet, []*ResponseError, error) {
	_, w, err := c.SendCommand(packed, expect)
	if err != nil {
		return nil, nil, err
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if w.fatal != nil {
		return nil, nil, w.fatal
	}
	return w.values, w.errs, nil
}

// EnqueuePush appends a waiter to the FIFO without writing anything,
// for the subscribe-mode case where the server sends replies the
// client never explicitly asked for (spec.md's supplemented RESP3
// push pass-through). It shares writeMu with enqueueAndWrite so a
// push waiter can never be inserted between a command's enqueue and
// its write.
func (c *Connection) EnqueuePush(expect int) (*waiter, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return nil, ConnectionClosed{}
	}
	if c.state != stateConnected {
		return nil, c.cause
	}
	w := newWaiter(expect)
	c.waiters = append(c.waiters, w)
	return w, nil
}

// enqueueAndWrite appends a fresh waiter to the FIFO and writes the
// payload under the same lock, so waiter order always matches write
// order (spec.md §5: "writes are serialized ... replies arrive in the
// order of writes").
func (c *Connection) enqueueAndWrite(packed *PackedCommand, expect int) *waiter {
	w := newWaiter(expect)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	if conn == nil {
		w.fail(NewConnectionError(nil, "not connected"))
		return w
	}
	if _, err := conn.Write(packed.Payload); err != nil {
		c.poison(NewConnectionError(err, "connection write failed"))
	}
	return w
}

//--------------------
// READ LOOP
//--------------------

// readLoop owns the socket's read side for the connection's lifetime.
// It is the one dedicated worker spec.md §5's "parallel multi-threaded
// blocking" variant describes; it exits when the socket errors or
// Disconnect closes it.
func (c *Connection) readLoop() {
	buf := make([]byte, c.readSize())
	for {
		c.mu.Lock()
		conn := c.conn
		pending := len(c.waiters) > 0
		c.mu.Unlock()
		if conn == nil {
			return
		}
		// Only arm a deadline while a reply is actually owed: an idle
		// connection sitting in the pool's free list has no waiter and
		// must be able to block on Read indefinitely without being
		// poisoned for simply not being used.
		if pending && c.cfg.Socket.Timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.cfg.Socket.Timeout))
		} else {
			conn.SetReadDeadline(time.Time{})
		}
		n, err := conn.Read(buf)
		if n > 0 {
			c.operator.Feed(buf[:n], n)
			c.drainParsed()
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.poison(NewRedisTimeoutError("timed out waiting for reply"))
				return
			}
			c.poison(NewConnectionError(err, "Lost connection to server."))
			return
		}
	}
}

// drainParsed pulls every complete ResultSet currently buffered and
// dispatches each to the waiter at the head of the FIFO.
func (c *Connection) drainParsed() {
	for {
		if !c.operator.HasData() {
			return
		}
		rs, respErr, err := c.operator.ReadOneResultSet()
		if err == ErrNeedMore {
			return
		}
		if err != nil {
			c.poison(err)
			return
		}
		c.dispatch(rs, respErr)
	}
}

// dispatch hands one parsed reply to the FIFO's head waiter. A reply
// with no waiter waiting for it is a protocol violation: the
// connection is poisoned per spec.md §4.D.
func (c *Connection) dispatch(rs *ResultSet, respErr *ResponseError) {
	c.mu.Lock()
	if len(c.waiters) == 0 {
		c.mu.Unlock()
		c.poison(NewInvalidResponse("Got additional data on the stream. Are you connected to a supported Redis instance?"))
		return
	}
	head := c.waiters[0]
	c.mu.Unlock()

	done := head.deliver(rs, respErr)
	if done {
		c.mu.Lock()
		if len(c.waiters) > 0 && c.waiters[0] == head {
			c.waiters = c.waiters[1:]
		}
		c.mu.Unlock()
	}
}

// readSize returns the configured read buffer size, defaulting to
// 4096 bytes per spec.md §4.C.
func (c *Connection) readSize() int {
	if c.cfg.Socket.ReadSize > 0 {
		return c.cfg.Socket.ReadSize
	}
	return defaultReadSize
}

//--------------------
// POISON / DISCONNECT
//--------------------

// poison transitions the connection to the Error state, fails every
// pending waiter with cause, and tears down the socket. Subsequent
// sends re-raise cause until the connection is reconnected.
func (c *Connection) poison(cause error) {
	c.mu.Lock()
	if c.state == stateError {
		c.mu.Unlock()
		return
	}
	c.state = stateError
	c.cause = cause
	pending := c.waiters
	c.waiters = nil
	conn := c.conn
	c.mu.Unlock()

	for _, w := range pending {
		w.fail(cause)
	}
	if conn != nil {
		conn.Close()
	}
	logger.Errorf("redis: connection poisoned: %v", cause)
}

// Disconnect shuts down the socket (best-effort SHUT_RDWR via Close),
// drains the reader, and resolves every pending waiter with
// ConnectionError("Lost connection to server.") unless another cause
// was already recorded.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.state == stateNotConnected {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	cause := c.cause
	conn := c.conn
	pending := c.waiters
	c.waiters = nil
	c.state = stateNotConnected
	c.conn = nil
	c.mu.Unlock()

	if cause == nil {
		cause = NewConnectionError(nil, "Lost connection to server.")
	}
	for _, w := range pending {
		w.fail(cause)
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.mu.Lock()
	c.closing = false
	c.mu.Unlock()
	return err
}

// disconnectLocked is used internally (handshake failure) where the
// caller already holds no lock but wants poison+disconnect semantics
// in one step.
func (c *Connection) disconnectLocked(cause error) {
	c.mu.Lock()
	c.cause = cause
	c.mu.Unlock()
	c.Disconnect()
}

//--------------------
// HEALTH CHECK
//--------------------

// CheckHealth sends PING if the clock is past NextHealthCheck and
// validates the PONG reply. A failed PING gets one reconnect-and-retry
// cycle, polled with wait.WithTimeout the same way the teacher's pool
// bounds its own retry loops, before the failure is surfaced to the
// caller (who should then discard the connection). Per spec.md §4.D.
func (c *Connection) CheckHealth(ctx context.Context, now time.Time) error {
	if c.cfg.Client.HealthCheckInterval <= 0 {
		return nil
	}
	if now.Before(c.cfg.Client.NextHealthCheck) {
		return nil
	}
	ping := func() error {
		rs, respErr, err := c.doRaw(NewCommand("PING"))
		if err != nil {
			return err
		}
		if respErr != nil {
			return classifyError(respErr)
		}
		v, err := rs.ValueAt(0)
		if err != nil {
			return err
		}
		if !strings.EqualFold(v.String(), "PONG") {
			return failure.New("unexpected PING reply %q", v.String())
		}
		return nil
	}
	err := ping()
	if err != nil {
		c.Disconnect()
		retried := false
		werr := wait.WithTimeout(ctx, 5*time.Millisecond, c.cfg.Socket.ConnectTimeout, func() (bool, error) {
			if retried {
				return true, nil
			}
			retried = true
			if rerr := c.Connect(); rerr != nil {
				return false, nil
			}
			err = ping()
			return true, nil
		})
		if werr != nil {
			return werr
		}
	}
	c.cfg.Client.NextHealthCheck = now.Add(c.cfg.Client.HealthCheckInterval)
	return err
}

// EOF
