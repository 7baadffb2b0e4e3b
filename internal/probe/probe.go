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

// Package probe verifies the connectivity to the MQTT brokers described by
// the configuration surface.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/gsalomao/iotdemo/internal/mqtt/packet"
	"github.com/gsalomao/iotdemo/internal/transport"
	"github.com/spf13/afero"
)

var (
	// ErrUnknownTarget indicates that the target name is not recognized.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrPlaceholderEndpoint indicates that the endpoint of the target still
	// holds a placeholder and must be configured.
	ErrPlaceholderEndpoint = errors.New("endpoint is a placeholder")

	// ErrUnexpectedPacket indicates that the broker replied with a packet
	// other than the expected one.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

// Target identifies which broker of the configuration surface is probed.
type Target string

const (
	// TargetBroker is the generic test broker.
	TargetBroker Target = "broker"

	// TargetIoTCore is the managed IoT broker.
	TargetIoTCore Target = "iotcore"
)

// ParseTarget returns the Target with the given name.
func ParseTarget(name string) (Target, error) {
	switch t := Target(name); t {
	case TargetBroker, TargetIoTCore:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
}

// Dialer establishes TLS connections.
type Dialer interface {
	Dial(ctx context.Context, s transport.ServerInfo,
		conf *tls.Config) (net.Conn, error)
}

// Options contains the options used by the Prober.
type Options struct {
	// The maximum amount of time a probe waits for the CONNACK Packet after
	// the TLS connection was established.
	ConnectTimeout time.Duration

	// Keep alive, in seconds, sent in the CONNECT Packet.
	KeepAlive uint16

	// MQTT version of the CONNECT Packet.
	Version packet.MQTTVersion

	// HandshakeOnly stops the probe once the TLS handshake completes.
	HandshakeOnly bool
}

// Result is the outcome of a probe.
type Result struct {
	Target         Target        `json:"target"`
	Endpoint       string        `json:"endpoint"`
	Success        bool          `json:"success"`
	HandshakeOnly  bool          `json:"handshake_only"`
	TLSVersion     string        `json:"tls_version,omitempty"`
	ALPN           string        `json:"alpn,omitempty"`
	SessionPresent bool          `json:"session_present"`
	ReasonCode     string        `json:"reason_code,omitempty"`
	Error          string        `json:"error,omitempty"`
	Latency        time.Duration `json:"latency"`
	Timestamp      time.Time     `json:"timestamp"`
}

type connectionStater interface {
	ConnectionState() tls.ConnectionState
}

// Prober connects to the brokers of the configuration surface.
type Prober struct {
	surface *config.Surface
	fs      afero.Fs
	dialer  Dialer
	metrics *Metrics
	opts    Options
	log     *logger.Logger
}

// NewProber creates a Prober. The files referenced by the surface are read
// from fs.
func NewProber(s *config.Surface, fs afero.Fs, d Dialer, m *Metrics,
	o Options, log *logger.Logger) *Prober {

	if o.Version == 0 {
		o.Version = packet.MQTT311
	}

	return &Prober{surface: s, fs: fs, dialer: d, metrics: m, opts: o,
		log: log}
}

// Endpoint returns the endpoint of the given target.
func (p *Prober) Endpoint(t Target) (config.Endpoint, error) {
	switch t {
	case TargetBroker:
		return p.surface.BrokerEndpoint(), nil
	case TargetIoTCore:
		return p.surface.AWSIoTEndpoint(), nil
	default:
		return config.Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownTarget, t)
	}
}

// Probe connects to the target over TLS, performs the MQTT connection
// handshake, checks the connection with a PINGREQ, and disconnects. The returned Result describes the outcome even
// when an error is returned.
func (p *Prober) Probe(ctx context.Context, t Target) (Result, error) {
	start := time.Now()
	res := Result{Target: t, HandshakeOnly: p.opts.HandshakeOnly,
		Timestamp: start}

	err := p.probe(ctx, t, &res)
	res.Latency = time.Since(start)
	res.Success = err == nil
	if err != nil {
		res.Error = err.Error()
		p.log.Warn().
			Str("Target", string(t)).
			Str("Endpoint", res.Endpoint).
			Msg("Probe Failed: " + err.Error())
	} else {
		p.log.Info().
			Str("Target", string(t)).
			Str("Endpoint", res.Endpoint).
			Dur("Latency", res.Latency).
			Msg("Probe Succeeded")
	}

	if p.metrics != nil {
		p.metrics.recordResult(res)
	}
	return res, err
}

func (p *Prober) probe(ctx context.Context, t Target, res *Result) error {
	ep, err := p.Endpoint(t)
	if err != nil {
		return err
	}

	res.Endpoint = ep.Address()
	if ep.IsPlaceholder() {
		return fmt.Errorf("%w: %s", ErrPlaceholderEndpoint, ep.Host)
	}

	creds, err := credentialsFor(p.surface, t, ep)
	if err != nil {
		return err
	}

	tlsConf, err := transport.LoadTLSConfig(p.fs, creds, p.log)
	if err != nil {
		return err
	}

	p.log.Debug().
		Str("Target", string(t)).
		Str("Endpoint", res.Endpoint).
		Msg("Probe Connecting")

	dialStart := time.Now()
	conn, err := p.dialer.Dial(ctx,
		transport.ServerInfo{Host: ep.Host, Port: ep.Port}, tlsConf)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if p.metrics != nil {
		p.metrics.recordHandshake(t, time.Since(dialStart))
	}
	if cs, ok := conn.(connectionStater); ok {
		state := cs.ConnectionState()
		res.TLSVersion = transport.VersionName(state.Version)
		res.ALPN = state.NegotiatedProtocol
	}

	if p.opts.HandshakeOnly {
		return nil
	}

	return p.connect(conn, t, res)
}

func (p *Prober) connect(conn net.Conn, t Target, res *Result) error {
	if p.opts.ConnectTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(p.opts.ConnectTimeout))
	}

	bufSize := p.surface.NetworkBufferSize()
	w := packet.NewWriter(conn, bufSize)
	r := packet.NewReader(conn, packet.ReaderOptions{
		BufferSize:    bufSize,
		MaxPacketSize: bufSize,
		Version:       p.opts.Version,
	})

	err := w.WritePacket(p.connectPacket(t))
	if err != nil {
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}

	pkt, err := r.ReadPacket()
	if err != nil {
		return fmt.Errorf("failed to receive CONNACK: %w", err)
	}

	connAck, ok := pkt.(*packet.ConnAck)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPacket, pkt.Type())
	}

	res.SessionPresent = connAck.SessionPresent
	res.ReasonCode = connAck.ReasonCode.Describe(p.opts.Version)
	if !connAck.ReasonCode.IsSuccess() {
		return packet.NewError(p.opts.Version, connAck.ReasonCode)
	}

	p.log.Debug().
		Str("Target", string(t)).
		Bool("SessionPresent", connAck.SessionPresent).
		Msg("Probe Received CONNACK")

	err = p.ping(&w, &r)
	if err != nil {
		return err
	}

	err = w.WritePacket(&packet.Disconnect{})
	if err != nil {
		return fmt.Errorf("failed to send DISCONNECT: %w", err)
	}

	return nil
}

// ping checks the liveness of the MQTT connection with a PINGREQ, as a
// client does once the keep alive expires.
func (p *Prober) ping(w *packet.Writer, r *packet.Reader) error {
	start := time.Now()

	err := w.WritePacket(&packet.PingReq{})
	if err != nil {
		return fmt.Errorf("failed to send PINGREQ: %w", err)
	}

	pkt, err := r.ReadPacket()
	if err != nil {
		return fmt.Errorf("failed to receive PINGRESP: %w", err)
	}
	if _, ok := pkt.(*packet.PingResp); !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPacket, pkt.Type())
	}

	p.log.Debug().
		Dur("Latency", time.Since(start)).
		Msg("Probe Received PINGRESP")
	return nil
}

func (p *Prober) connectPacket(t Target) *packet.Connect {
	pkt := &packet.Connect{
		ClientID:     []byte(p.surface.ClientIdentifier()),
		KeepAlive:    p.opts.KeepAlive,
		Version:      p.opts.Version,
		CleanSession: true,
	}

	if t == TargetIoTCore {
		pkt.UserName = []byte(MetricsUserName(p.surface.Metadata()))
	}

	return pkt
}
