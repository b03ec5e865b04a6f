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
	"crypto/tls"
	"time"

	"tideland.dev/go/trace/failure"
)

//--------------------
// DEFAULTS
//--------------------

const (
	defaultAddress     = "127.0.0.1:6379"
	defaultSocket      = "/tmp/redis.sock"
	defaultNetwork     = "tcp"
	defaultTimeout     = 30 * time.Second
	defaultConnTimeout = 10 * time.Second
	defaultIndex       = 0
	defaultPassword    = ""
	defaultUsername    = ""
	defaultMinConns    = 1
	defaultMaxConns    = 10
	defaultReadSize    = 4096
	defaultRESPVersion = 2
	defaultLogging     = false
)

//--------------------
// VALUE OBJECTS
//--------------------

// AddressInfo is the host/port/db/credentials half of the configuration.
type AddressInfo struct {
	Network  string
	Address  string
	Index    int
	Username string
	Password string
}

// ClientInfo is the client-identity half of the configuration.
type ClientInfo struct {
	Name                string
	Encoding            string
	EncodingErrors      string
	DecodeResponses     bool
	HealthCheckInterval time.Duration
	NextHealthCheck     time.Time
	RESPVersion         int
	ServerVersion       ServerVersion
}

// SocketInfo is the transport-tuning half of the configuration.
type SocketInfo struct {
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	RetryOnTimeout  bool
	Keepalive       bool
	KeepalivePeriod time.Duration
	ReadSize        int
	IsUnixSocket    bool
}

// PoolInfo is the pool-sizing half of the configuration.
type PoolInfo struct {
	Min     int
	Max     int
	PreFill bool
	Block   bool
}

// CertRequirement enumerates the TLS peer-verification modes.
type CertRequirement int

const (
	// CertNone disables peer certificate verification.
	CertNone CertRequirement = iota
	// CertOptional verifies the peer certificate when presented.
	CertOptional
	// CertRequired requires and verifies a peer certificate.
	CertRequired
)

// SSLInfo is the TLS half of the configuration. Context construction
// itself stays the host TLS library's job (spec.md §1); this struct
// only carries the inputs *tls.Config needs.
type SSLInfo struct {
	Enabled       bool
	KeyFile       string
	CertFile      string
	CAFile        string
	CheckHostname bool
	CertReqs      CertRequirement
	Config        *tls.Config // pre-built, takes precedence over the file fields
}

// ServerVersion is the negotiated (major, minor, patch) Redis server
// version; it gates the on-connect handshake dialect.
type ServerVersion struct {
	Major, Minor, Patch int
}

// IsZero reports whether the version has not yet been discovered.
func (v ServerVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0
}

// AtLeast reports whether v >= (major, minor, patch).
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

//--------------------
// CONFIG
//--------------------

// Config is the bundle of the five value objects above, compiled from
// functional Options by Open/NewPool. After that, connections still
// write ClientInfo's ServerVersion (when probed) and NextHealthCheck.
type Config struct {
	Address AddressInfo
	Client  ClientInfo
	Socket  SocketInfo
	Pool    PoolInfo
	SSL     SSLInfo
	Logging bool
}

// defaultConfig returns a Config with every documented default from
// spec.md §6 applied.
func defaultConfig() *Config {
	return &Config{
		Address: AddressInfo{
			Network: defaultNetwork,
			Address: defaultAddress,
			Index:   defaultIndex,
		},
		Client: ClientInfo{
			Encoding:        "utf-8",
			EncodingErrors:  "strict",
			DecodeResponses: false,
			RESPVersion:     defaultRESPVersion,
		},
		Socket: SocketInfo{
			Timeout:        defaultTimeout,
			ConnectTimeout: defaultConnTimeout,
			ReadSize:       defaultReadSize,
		},
		Pool: PoolInfo{
			Min:   defaultMinConns,
			Max:   defaultMaxConns,
			Block: true,
		},
		Logging: defaultLogging,
	}
}

// Option mutates a Config during Open/NewPool; an error aborts
// construction.
type Option func(*Config) error

// TCPConnection configures a TCP/IP address. The default is
// "127.0.0.1:6379".
func TCPConnection(address string) Option {
	return func(c *Config) error {
		if address == "" {
			address = defaultAddress
		}
		c.Address.Network = "tcp"
		c.Address.Address = address
		return nil
	}
}

// UnixConnection configures a Unix domain socket path. The default is
// "/tmp/redis.sock".
func UnixConnection(socket string) Option {
	return func(c *Config) error {
		if socket == "" {
			socket = defaultSocket
		}
		c.Address.Network = "unix"
		c.Address.Address = socket
		c.Socket.IsUnixSocket = true
		return nil
	}
}

// Database selects the logical database index (SELECT).
func Database(index int) Option {
	return func(c *Config) error {
		if index < 0 {
			return failure.New("invalid configuration value in field 'index': %v", index)
		}
		c.Address.Index = index
		return nil
	}
}

// Credentials sets the username/password used by the on-connect
// handshake (AUTH, or HELLO's AUTH clause).
func Credentials(username, password string) Option {
	return func(c *Config) error {
		c.Address.Username = username
		c.Address.Password = password
		return nil
	}
}

// ClientName sets the name reported to CLIENT SETNAME / HELLO's
// SETNAME clause.
func ClientName(name string) Option {
	return func(c *Config) error {
		c.Client.Name = name
		return nil
	}
}

// Encoding sets the text codec used for string arguments. The
// error-handling mode and decodeResponses are recorded in ClientInfo;
// replies are returned as raw bytes whatever decodeResponses says.
func Encoding(encoding, errMode string, decodeResponses bool) Option {
	return func(c *Config) error {
		if encoding == "" {
			encoding = "utf-8"
		}
		if errMode == "" {
			errMode = "strict"
		}
		c.Client.Encoding = encoding
		c.Client.EncodingErrors = errMode
		c.Client.DecodeResponses = decodeResponses
		return nil
	}
}

// RESPVersion pins the protocol dialect ("2" or "3"); servers below
// 6.0.0 are forced to RESP2 regardless of this setting.
func RESPVersion(version int) Option {
	return func(c *Config) error {
		if version != 2 && version != 3 {
			return failure.New("invalid configuration value in field 'resp_version': %v", version)
		}
		c.Client.RESPVersion = version
		return nil
	}
}

// ServerVersionHint pre-seeds the negotiated server version, skipping
// the INFO-server probe connect() would otherwise perform.
func ServerVersionHint(major, minor, patch int) Option {
	return func(c *Config) error {
		c.Client.ServerVersion = ServerVersion{major, minor, patch}
		return nil
	}
}

// Timeouts sets the socket read timeout (armed while a reply is owed;
// writes have no deadline) and the connect timeout. Zero leaves the
// corresponding default in place.
func Timeouts(socket, connect time.Duration) Option {
	return func(c *Config) error {
		if socket < 0 || connect < 0 {
			return failure.New("invalid configuration value in field 'timeout'")
		}
		if socket > 0 {
			c.Socket.Timeout = socket
		}
		if connect > 0 {
			c.Socket.ConnectTimeout = connect
		}
		return nil
	}
}

// RetryOnTimeout records the flag in SocketInfo. No retry is performed
// on its account: a read timeout always surfaces as RedisTimeoutError.
func RetryOnTimeout(retry bool) Option {
	return func(c *Config) error {
		c.Socket.RetryOnTimeout = retry
		return nil
	}
}

// Keepalive enables SO_KEEPALIVE with the given probe period.
func Keepalive(period time.Duration) Option {
	return func(c *Config) error {
		c.Socket.Keepalive = true
		c.Socket.KeepalivePeriod = period
		return nil
	}
}

// HealthCheckInterval sets how often a pooled connection is
// PING-verified before being reused, per spec.md §4.D's check_health.
func HealthCheckInterval(interval time.Duration) Option {
	return func(c *Config) error {
		c.Client.HealthCheckInterval = interval
		return nil
	}
}

// PoolLimits sets the minimum and maximum pool size. The default is
// min=1, max=10.
func PoolLimits(min, max int) Option {
	return func(c *Config) error {
		if min < 0 || max < 1 || min > max {
			return failure.New("invalid configuration value in field 'pool limits': min=%d max=%d", min, max)
		}
		c.Pool.Min = min
		c.Pool.Max = max
		return nil
	}
}

// PreFill requests the pool eagerly open its minimum connections at
// construction time rather than lazily on first acquire.
func PreFill(preFill bool) Option {
	return func(c *Config) error {
		c.Pool.PreFill = preFill
		return nil
	}
}

// Block controls whether Acquire waits for a connection to become
// available (the default) or fails fast when the pool is exhausted.
func Block(block bool) Option {
	return func(c *Config) error {
		c.Pool.Block = block
		return nil
	}
}

// TLS enables TLS using a pre-built *tls.Config, taking precedence
// over the file-based SSLInfo fields.
func TLS(cfg *tls.Config) Option {
	return func(c *Config) error {
		c.SSL.Enabled = true
		c.SSL.Config = cfg
		return nil
	}
}

// SSLFiles enables TLS and records the key/cert/CA file paths, the
// hostname-verification flag and the certificate requirement. The
// dialer builds its tls.Config from checkHostname alone: the files are
// not loaded and certReqs is not applied.
func SSLFiles(keyFile, certFile, caFile string, checkHostname bool, certReqs CertRequirement) Option {
	return func(c *Config) error {
		c.SSL.Enabled = true
		c.SSL.KeyFile = keyFile
		c.SSL.CertFile = certFile
		c.SSL.CAFile = caFile
		c.SSL.CheckHostname = checkHostname
		c.SSL.CertReqs = certReqs
		return nil
	}
}

// Logging enables informational command logging (errors log
// regardless). The default is false.
func Logging(logging bool) Option {
	return func(c *Config) error {
		c.Logging = logging
		return nil
	}
}

//--------------------
// ON-CONNECT ROUTINE
//--------------------

// onConnectRoutine is the compiled handshake: init is sent and its
// reply checked before the connection is usable; stack is sent
// immediately after (packed as a single pipeline when it holds more
// than one command) and its replies checked with raise_on_error=true.
type onConnectRoutine struct {
	init  *Command
	stack []*Command
}

// buildOnConnectRoutine compiles the handshake for the given config,
// per spec.md §4.C. When ServerVersion is the zero value, the caller
// (Connection.connect) is expected to have already probed it via
// INFO server before calling this.
func buildOnConnectRoutine(cfg *Config) *onConnectRoutine {
	routine := &onConnectRoutine{}
	if cfg.Client.ServerVersion.AtLeast(6, 0, 0) {
		hello := NewCommand("HELLO", cfg.Client.RESPVersion)
		if cfg.Address.Password != "" {
			if cfg.Address.Username != "" {
				hello.Modifiers = append(hello.Modifiers, "AUTH", cfg.Address.Username, cfg.Address.Password)
			} else {
				hello.Modifiers = append(hello.Modifiers, "AUTH", "default", cfg.Address.Password)
			}
		}
		if cfg.Client.Name != "" {
			hello.Modifiers = append(hello.Modifiers, "SETNAME", cfg.Client.Name)
		}
		routine.init = hello
		if cfg.Address.Index != 0 {
			routine.stack = append(routine.stack, NewCommand("SELECT", cfg.Address.Index))
		}
		return routine
	}
	// Pre-6.0: forced RESP2, AUTH/SETNAME/SELECT as separate commands.
	if cfg.Address.Password != "" {
		if cfg.Address.Username != "" {
			routine.init = NewCommand("AUTH", cfg.Address.Username, cfg.Address.Password)
		} else {
			routine.init = NewCommand("AUTH", cfg.Address.Password)
		}
	}
	if cfg.Client.Name != "" {
		routine.stack = append(routine.stack, NewCommand("CLIENT SETNAME", cfg.Client.Name))
	}
	if cfg.Address.Index != 0 {
		routine.stack = append(routine.stack, NewCommand("SELECT", cfg.Address.Index))
	}
	return routine
}

// EOF
