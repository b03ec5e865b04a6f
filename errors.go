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
	"fmt"
	"strings"

	"tideland.dev/go/trace/failure"
)

//--------------------
// ERROR KINDS
//--------------------

// RedisError is the root of every error this package raises that is
// not a plain I/O error. All typed errors below embed a RedisError so
// callers can use errors.Is(err, redis.ErrRedis)-style checks, or
// errors.As for the more specific types.
type RedisError struct {
	msg   string
	cause error
}

func newRedisError(msg string) *RedisError {
	return &RedisError{msg: msg}
}

func (e *RedisError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *RedisError) Unwrap() error {
	return e.cause
}

// Is makes every error embedding a RedisError match ErrRedis.
func (e *RedisError) Is(target error) bool {
	return target == ErrRedis
}

// ErrRedis is the sentinel all package errors wrap; use errors.Is(err,
// redis.ErrRedis) to detect any error originating in this package.
var ErrRedis = newRedisError("redis error")

// ProtocolError signals a malformed RESP frame that is not a recoverable
// application-level condition.
type ProtocolError struct{ *RedisError }

// NewProtocolError builds a ProtocolError with the given message.
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{newRedisError(fmt.Sprintf(format, args...))}
}

// InvalidResponse signals that the byte stream does not contain a
// value the reader recognizes, or that replies and waiters drifted out
// of alignment. It is always raised, never returned as a value.
type InvalidResponse struct{ *RedisError }

// NewInvalidResponse builds an InvalidResponse with the given message.
func NewInvalidResponse(format string, args ...interface{}) *InvalidResponse {
	return &InvalidResponse{newRedisError(fmt.Sprintf(format, args...))}
}

// ResponseError wraps a server-returned "-ERR ..." style reply. It is
// returned by the reader (not raised) so the operator can decide,
// based on context (single command vs pipeline, raise_on_error), what
// to do with it.
type ResponseError struct {
	*RedisError
	Code string // the leading error code word, e.g. "ERR", "NOAUTH"
}

// NewResponseError builds a ResponseError from a raw "-..." reply line
// (without the leading '-' and trailing CRLF).
func NewResponseError(line string) *ResponseError {
	code := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		code = line[:i]
	}
	return &ResponseError{newRedisError(line), code}
}

// NoScriptError corresponds to a server "-NOSCRIPT" reply.
type NoScriptError struct{ *ResponseError }

// ExecAbortError corresponds to a server "-EXECABORT" reply.
type ExecAbortError struct{ *ResponseError }

// ReadOnlyError corresponds to a server "-READONLY" reply.
type ReadOnlyError struct{ *ResponseError }

// NoPermissionError corresponds to a server "-NOPERM" reply.
type NoPermissionError struct{ *ResponseError }

// ModuleError corresponds to a module-specific "-ERR" reply recognized
// by its message text.
type ModuleError struct{ *ResponseError }

// PipelineError is one (index, verb, cause) triple contributing to a
// PipelineResponseError.
type PipelineError struct {
	Index int
	Verb  string
	Cause error
}

func (pe PipelineError) Error() string {
	return fmt.Sprintf("Command # %d (%s) of pipeline caused error: %v", pe.Index+1, pe.Verb, pe.Cause)
}

// PipelineResponseError aggregates every per-command error encountered
// while normalizing a Pipeline's replies.
type PipelineResponseError struct {
	*RedisError
	Errors []PipelineError
}

// NewPipelineResponseError builds a PipelineResponseError from its
// constituent per-command errors.
func NewPipelineResponseError(errs []PipelineError) *PipelineResponseError {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &PipelineResponseError{newRedisError(strings.Join(msgs, "; ")), errs}
}

// DataError signals a client-side input that cannot be encoded onto
// the wire (an unsupported argument type, or an invalid option value).
type DataError struct{ *RedisError }

// NewDataError builds a DataError with the given message.
func NewDataError(format string, args ...interface{}) *DataError {
	return &DataError{newRedisError(fmt.Sprintf(format, args...))}
}

// WatchError signals that EXEC returned nil because a WATCHed key
// changed.
type WatchError struct{ *RedisError }

// NewWatchError builds the canonical WatchError.
func NewWatchError() *WatchError {
	return &WatchError{newRedisError("Watched variable changed.")}
}

// PubSubError signals misuse of the publish/subscribe surface, e.g.
// issuing a data command on a connection pinned to a subscription, or
// a transaction call made out of order.
type PubSubError struct{ *RedisError }

// NewPubSubError builds a PubSubError with the given message.
func NewPubSubError(format string, args ...interface{}) *PubSubError {
	return &PubSubError{newRedisError(fmt.Sprintf(format, args...))}
}

// LockError signals a failure acquiring or releasing a distributed
// lock built atop this client.
type LockError struct{ *RedisError }

// NewLockError builds a LockError with the given message.
func NewLockError(format string, args ...interface{}) *LockError {
	return &LockError{newRedisError(fmt.Sprintf(format, args...))}
}

// LockNotOwnedError signals that a lock release was attempted by a
// client that does not hold the lock's token.
type LockNotOwnedError struct{ *LockError }

// ChildDeadlockedError signals that a forked worker process would
// deadlock re-entering the pool (ported for interface parity; a Go
// process has no analogous fork/child relationship, so this is never
// raised by this package — callers modeling a similar pattern with
// os.StartProcess may raise it themselves).
type ChildDeadlockedError struct{ *RedisError }

// ConnectionError signals a transport failure: the socket could not be
// opened, closed unexpectedly, or the handshake failed for a reason
// other than authentication.
type ConnectionError struct{ *RedisError }

// NewConnectionError builds a ConnectionError, optionally wrapping a
// lower-level cause.
func NewConnectionError(cause error, format string, args ...interface{}) *ConnectionError {
	e := &ConnectionError{newRedisError(fmt.Sprintf(format, args...))}
	e.cause = cause
	return e
}

// AuthenticationError signals that the on-connect AUTH/HELLO handshake
// was rejected by the server.
type AuthenticationError struct{ *ConnectionError }

// NewAuthenticationError builds an AuthenticationError.
func NewAuthenticationError(msg string) *AuthenticationError {
	return &AuthenticationError{&ConnectionError{newRedisError(msg)}}
}

// AuthenticationWrongNumberOfArgsError signals AUTH was called with a
// username but the server predates ACL-style AUTH.
type AuthenticationWrongNumberOfArgsError struct{ *AuthenticationError }

// BusyLoadingError signals the server responded "-LOADING" during the
// handshake or a command.
type BusyLoadingError struct{ *ConnectionError }

// RedisTimeoutError signals a socket read that exceeded the configured
// socket timeout while a reply was owed. The owning connection is poisoned
// (see Connection.poison) because waiter/reply FIFO alignment becomes
// uncertain once a read is abandoned mid-frame.
type RedisTimeoutError struct{ *RedisError }

// NewRedisTimeoutError builds a RedisTimeoutError.
func NewRedisTimeoutError(format string, args ...interface{}) *RedisTimeoutError {
	return &RedisTimeoutError{newRedisError(fmt.Sprintf(format, args...))}
}

//--------------------
// CLASSIFIER
//--------------------

// classifyError re-dispatches a raw "-ERR ..." server reply into the
// typed hierarchy above, by prefix, and for generic "ERR" replies, by
// well-known message text.
func classifyError(raw *ResponseError) error {
	msg := strings.TrimPrefix(raw.Error(), raw.Code+" ")
	switch raw.Code {
	case "NOSCRIPT":
		return &NoScriptError{raw}
	case "EXECABORT":
		return &ExecAbortError{raw}
	case "READONLY":
		return &ReadOnlyError{raw}
	case "NOAUTH":
		return NewAuthenticationError(msg)
	case "NOPERM":
		return &NoPermissionError{raw}
	case "LOADING":
		return &BusyLoadingError{&ConnectionError{raw.RedisError}}
	case "ERR":
		switch {
		case strings.Contains(msg, "max number of clients reached"):
			return NewConnectionError(raw, "%s", msg)
		case strings.Contains(msg, "invalid password"):
			return NewAuthenticationError(msg)
		case strings.Contains(msg, "wrong number of arguments for 'auth'"):
			return &AuthenticationWrongNumberOfArgsError{NewAuthenticationError(msg)}
		case strings.Contains(msg, "module"):
			return &ModuleError{raw}
		default:
			return raw
		}
	default:
		return raw
	}
}

// classifyErrorLine builds a ResponseError from a raw server reply
// line and immediately classifies it.
func classifyErrorLine(line string) error {
	return classifyError(NewResponseError(line))
}

// wrap is a small convenience matching the teacher's failure.Annotate
// idiom, used where a RedisError needs to carry a lower-level cause
// without changing its concrete type.
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return failure.Annotate(err, format, args...)
}

var _ error = (*RedisError)(nil)

// EOF
