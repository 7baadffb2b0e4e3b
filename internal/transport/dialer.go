// Copyright 2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gsalomao/iotdemo/internal/logger"
)

var (
	// ErrInvalidParameter indicates that at least one parameter was invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidCredentials indicates that the provided credentials were
	// invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDNSFailure indicates that resolving the host name of the server
	// failed.
	ErrDNSFailure = errors.New("DNS failure")

	// ErrConnectFailure indicates that the TCP connection to the server
	// failed.
	ErrConnectFailure = errors.New("connect failure")

	// ErrHandshakeFailed indicates that the TLS handshake with the server
	// failed.
	ErrHandshakeFailed = errors.New("TLS handshake failed")
)

// ServerInfo identifies the server to connect to.
type ServerInfo struct {
	// Host name of the server.
	Host string

	// TCP port of the server.
	Port uint16
}

// Address returns the server address in the <host>:<port> form.
func (s ServerInfo) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Dialer establishes TLS connections.
type Dialer struct {
	// The maximum amount of time to wait for the TCP connection and the TLS
	// handshake.
	ConnectTimeout time.Duration

	// The maximum amount of time each write waits. Zero means no timeout.
	SendTimeout time.Duration

	// The maximum amount of time each read waits. Zero means no timeout.
	RecvTimeout time.Duration

	// Log is the logger used by the Dialer.
	Log *logger.Logger
}

// Dial connects to the server and performs the TLS handshake. The returned
// connection applies the send and receive timeouts on each I/O operation.
func (d *Dialer) Dial(ctx context.Context, s ServerInfo,
	conf *tls.Config) (net.Conn, error) {

	if s.Host == "" || s.Port == 0 || conf == nil {
		d.Log.Error().Msg("Transport Parameter check failed")
		return nil, ErrInvalidParameter
	}

	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	d.Log.Debug().
		Str("Address", s.Address()).
		Msg("Transport Establishing TCP connection")

	var nd net.Dialer
	raw, err := nd.DialContext(ctx, "tcp", s.Address())
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			d.Log.Error().Msg("Transport Failed to resolve host name: " +
				err.Error())
			return nil, fmt.Errorf("%w: %v", ErrDNSFailure, err)
		}

		d.Log.Error().Msg("Transport Failed to connect: " + err.Error())
		return nil, fmt.Errorf("%w: %v", ErrConnectFailure, err)
	}

	tlsConf := conf.Clone()
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = s.Host
	}

	tlsConn := tls.Client(raw, tlsConf)
	if err = tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		d.Log.Error().Msg("Transport Failed to perform TLS handshake: " +
			err.Error())
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	state := tlsConn.ConnectionState()
	d.Log.Debug().
		Str("Address", s.Address()).
		Str("Version", VersionName(state.Version)).
		Str("CipherSuite", tls.CipherSuiteName(state.CipherSuite)).
		Str("ALPN", state.NegotiatedProtocol).
		Msg("Transport Established a TLS connection")

	return &Conn{Conn: tlsConn, sendTimeout: d.SendTimeout,
		recvTimeout: d.RecvTimeout}, nil
}

// Conn is a TLS connection with per-operation timeouts.
type Conn struct {
	*tls.Conn
	sendTimeout time.Duration
	recvTimeout time.Duration

	mtx           sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

// SetDeadline sets the read and write deadlines of the connection. The send
// and receive timeouts never extend them.
func (c *Conn) SetDeadline(t time.Time) error {
	c.mtx.Lock()
	c.readDeadline = t
	c.writeDeadline = t
	c.mtx.Unlock()
	return c.Conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline of the connection. The receive
// timeout never extends it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mtx.Lock()
	c.readDeadline = t
	c.mtx.Unlock()
	return c.Conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline of the connection. The send
// timeout never extends it.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mtx.Lock()
	c.writeDeadline = t
	c.mtx.Unlock()
	return c.Conn.SetWriteDeadline(t)
}

// Read reads data from the connection, failing with os.ErrDeadlineExceeded
// when no data arrives before the receive timeout or the read deadline,
// whichever comes first.
func (c *Conn) Read(b []byte) (int, error) {
	if c.recvTimeout > 0 {
		c.mtx.Lock()
		d := earliest(time.Now().Add(c.recvTimeout), c.readDeadline)
		c.mtx.Unlock()

		if err := c.Conn.SetReadDeadline(d); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

// Write writes data to the connection, failing with os.ErrDeadlineExceeded
// when it cannot complete before the send timeout or the write deadline,
// whichever comes first.
func (c *Conn) Write(b []byte) (int, error) {
	if c.sendTimeout > 0 {
		c.mtx.Lock()
		d := earliest(time.Now().Add(c.sendTimeout), c.writeDeadline)
		c.mtx.Unlock()

		if err := c.Conn.SetWriteDeadline(d); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// earliest returns the earliest of the timeout and the deadline. A zero
// deadline means no deadline.
func earliest(timeout, deadline time.Time) time.Time {
	if !deadline.IsZero() && deadline.Before(timeout) {
		return deadline
	}
	return timeout
}

var versionNames = map[uint16]string{
	tls.VersionTLS10: "TLS 1.0",
	tls.VersionTLS11: "TLS 1.1",
	tls.VersionTLS12: "TLS 1.2",
	tls.VersionTLS13: "TLS 1.3",
}

// VersionName returns the name of the TLS version.
func VersionName(v uint16) string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", v)
}
