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

package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/mqtt/packet"
	"github.com/gsalomao/iotdemo/internal/platform"
	"github.com/gsalomao/iotdemo/internal/transport"
	"github.com/gsalomao/iotdemo/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var connAckAccepted = []byte{0x20, 0x02, 0x00, 0x00}

func defaultOptions() Options {
	return Options{
		ConnectTimeout: time.Second,
		KeepAlive:      60,
		Version:        packet.MQTT311,
	}
}

func TestProbeParseTarget(t *testing.T) {
	testCases := []struct {
		name   string
		target Target
	}{
		{name: "broker", target: TargetBroker},
		{name: "iotcore", target: TargetIoTCore},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			target, err := ParseTarget(test.name)
			require.Nil(t, err)
			assert.Equal(t, test.target, target)
		})
	}

	_, err := ParseTarget("mosquitto")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestProbeMetricsUserName(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)

	assert.Equal(t,
		"?SDK=Azure Sphere OS&Version=20.10&Platform=MT3620"+
			"&MQTTLib=core-mqtt@1.0.1",
		MetricsUserName(env.surface.Metadata()))
}

func TestProbeBrokerSuccess(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetBroker)
	require.Nil(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, TargetBroker, res.Target)
	assert.Equal(t, "test.mosquitto.org:8883", res.Endpoint)
	assert.Equal(t, "connection accepted", res.ReasonCode)
	assert.False(t, res.SessionPresent)
	assert.Empty(t, res.Error)

	connect := <-received
	expected := []byte{
		0x10, 22, // fixed header
		0, 4, 'M', 'Q', 'T', 'T', 4, // protocol name and version
		0x02,  // clean session
		0, 60, // keep alive
		0, 10, 't', 'e', 's', 't', 'c', 'l', 'i', 'e', 'n', 't',
	}
	assert.Equal(t, expected, connect)
	assert.Equal(t, []byte{0xC0, 0x00}, <-received)
	assert.Equal(t, []byte{0xE0, 0x00}, <-received)

	dials := dialer.dials()
	require.Len(t, dials, 1)
	assert.Equal(t, transport.ServerInfo{Host: "test.mosquitto.org",
		Port: 8883}, dials[0].server)
	assert.Equal(t, "test.mosquitto.org", dials[0].conf.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), dials[0].conf.MinVersion)
	assert.Nil(t, dials[0].conf.NextProtos)
	assert.Nil(t, dials[0].conf.RootCAs)
	assert.Empty(t, dials[0].conf.Certificates)
	assert.Contains(t, env.log.String(), "Probe Succeeded")
}

func TestProbeBrokerWithProvisionedDevice(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), true)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	require.Nil(t, err)

	dials := dialer.dials()
	require.Len(t, dials, 1)
	assert.Len(t, dials[0].conf.Certificates, 1)
}

func TestProbeIoTCoreSuccess(t *testing.T) {
	conf := systemRootsConfig()
	conf.AWSIoTEndpoint = "a1b2c3-ats.iot.us-east-1.amazonaws.com"
	conf.AWSMQTTPort = 443

	env := newTestEnv(t, conf, true)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetIoTCore)
	require.Nil(t, err)
	assert.True(t, res.Success)

	connect := <-received
	assert.Equal(t, byte(0x82), connect[9])
	assert.Contains(t, string(connect),
		MetricsUserName(env.surface.Metadata()))

	dials := dialer.dials()
	require.Len(t, dials, 1)
	assert.Equal(t, uint16(443), dials[0].server.Port)
	assert.Equal(t, []string{transport.ALPNAWSMQTT}, dials[0].conf.NextProtos)
	assert.Len(t, dials[0].conf.Certificates, 1)
}

func TestProbeIoTCoreRequiresClientCertificate(t *testing.T) {
	conf := systemRootsConfig()
	conf.AWSIoTEndpoint = "a1b2c3-ats.iot.us-east-1.amazonaws.com"

	env := newTestEnv(t, conf, false)
	dialer := &fakeDialer{}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetIoTCore)
	assert.ErrorIs(t, err, ErrClientCertRequired)
	assert.False(t, res.Success)
	assert.Empty(t, dialer.dials())
}

func TestProbePlaceholderEndpoint(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), true)
	dialer := &fakeDialer{}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetIoTCore)
	assert.ErrorIs(t, err, ErrPlaceholderEndpoint)
	assert.False(t, res.Success)
	assert.Equal(t, "<iotcore>-ats.iot.<region>.amazonaws.com:8883",
		res.Endpoint)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, dialer.dials())
	assert.Contains(t, env.log.String(), "Probe Failed")
}

func TestProbeUnknownTarget(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	p := NewProber(env.surface, env.fs, &fakeDialer{}, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), Target("invalid"))
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestProbeRootCANotFound(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig, false)
	env.storage.On("AbsolutePathInImagePackage", "certs/mosquitto.org.crt").
		Return("", platform.ErrAssetNotFound)
	dialer := &fakeDialer{}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	assert.ErrorIs(t, err, platform.ErrAssetNotFound)
	assert.Empty(t, dialer.dials())
	env.storage.AssertExpectations(t)
}

func TestProbeRootCAPerTarget(t *testing.T) {
	testCases := []struct {
		target Target
		caName string
	}{
		{target: TargetBroker, caName: "certs/mosquitto.org.crt"},
		{target: TargetIoTCore, caName: "certs/AmazonRootCA1.pem"},
	}

	for _, test := range testCases {
		t.Run(string(test.target), func(t *testing.T) {
			conf := config.DefaultConfig
			conf.AWSIoTEndpoint = "a1b2c3-ats.iot.us-east-1.amazonaws.com"

			env := newTestEnv(t, conf, true)
			env.storage.On("AbsolutePathInImagePackage", test.caName).
				Return("", platform.ErrAssetNotFound)
			dialer := &fakeDialer{}

			p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
				env.log.Logger())

			_, err := p.Probe(context.Background(), test.target)
			assert.ErrorIs(t, err, platform.ErrAssetNotFound)
			assert.Contains(t, err.Error(), test.caName)
			assert.Empty(t, dialer.dials())
			env.storage.AssertExpectations(t)
		})
	}
}

func TestProbeRootCAInvalid(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig, false)
	require.Nil(t, afero.WriteFile(env.fs, "/pkg/certs/mosquitto.org.crt",
		[]byte("invalid"), 0644))
	env.storage.On("AbsolutePathInImagePackage", "certs/mosquitto.org.crt").
		Return("/pkg/certs/mosquitto.org.crt", nil)

	p := NewProber(env.surface, env.fs, &fakeDialer{}, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	assert.ErrorIs(t, err, transport.ErrInvalidCredentials)
}

func TestProbeDialFailure(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	dialer := &fakeDialer{err: transport.ErrDNSFailure}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetBroker)
	assert.ErrorIs(t, err, transport.ErrDNSFailure)
	assert.False(t, res.Success)
}

func TestProbeConnectionRefused(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	received := make(chan []byte, 4)
	connAck := []byte{0x20, 0x02, 0x00, 0x05}
	dialer := &fakeDialer{broker: fakeBroker(connAck, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	res, err := p.Probe(context.Background(), TargetBroker)
	require.NotNil(t, err)

	var pktErr *packet.Error
	require.True(t, errors.As(err, &pktErr))
	assert.Equal(t, packet.ReasonCode(5), pktErr.Code)
	assert.Equal(t, "not authorized", res.ReasonCode)
	assert.False(t, res.Success)
}

func TestProbeConnectionClosedByBroker(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(nil, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "failed to receive CONNACK")
}

func TestProbeUnexpectedPacket(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker([]byte{0xD0, 0x00}, received)}

	p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	assert.ErrorIs(t, err, ErrUnexpectedPacket)
}

func TestProbePingFailure(t *testing.T) {
	testCases := []struct {
		name     string
		pingResp []byte
		err      error
		msg      string
	}{
		{name: "Closed", pingResp: nil, msg: "failed to receive PINGRESP"},
		{name: "UnexpectedPacket", pingResp: connAckAccepted,
			err: ErrUnexpectedPacket, msg: "CONNACK"},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t, systemRootsConfig(), false)
			received := make(chan []byte, 4)
			dialer := &fakeDialer{broker: fakeBrokerWithPingResp(
				connAckAccepted, test.pingResp, received)}

			p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
				env.log.Logger())

			res, err := p.Probe(context.Background(), TargetBroker)
			require.NotNil(t, err)
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
			}
			assert.Contains(t, err.Error(), test.msg)
			assert.False(t, res.Success)
			assert.Equal(t, "connection accepted", res.ReasonCode)

			<-received
			assert.Equal(t, []byte{0xC0, 0x00}, <-received)
		})
	}
}

func TestProbeConnectTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		delay   time.Duration
		timeout time.Duration
		success bool
	}{
		{name: "BrokerSlowerThanTimeout", delay: 1500 * time.Millisecond,
			timeout: 300 * time.Millisecond, success: false},
		{name: "BrokerFasterThanTimeout", delay: 100 * time.Millisecond,
			timeout: 3 * time.Second, success: true},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			port, caPEM := startSlowBroker(t, test.delay, connAckAccepted)

			conf := config.DefaultConfig
			conf.BrokerEndpoint = "127.0.0.1"
			conf.BrokerPort = int(port)
			conf.RootCACertName = "certs/broker.crt"

			env := newTestEnv(t, conf, false)
			require.Nil(t, afero.WriteFile(env.fs, "/pkg/certs/broker.crt",
				caPEM, 0644))
			env.storage.On("AbsolutePathInImagePackage", "certs/broker.crt").
				Return("/pkg/certs/broker.crt", nil)

			dialer := &transport.Dialer{
				ConnectTimeout: 2 * time.Second,
				SendTimeout:    5 * time.Second,
				RecvTimeout:    5 * time.Second,
				Log:            env.log.Logger(),
			}

			opts := defaultOptions()
			opts.ConnectTimeout = test.timeout
			p := NewProber(env.surface, env.fs, dialer, nil, opts,
				env.log.Logger())

			start := time.Now()
			res, err := p.Probe(context.Background(), TargetBroker)
			elapsed := time.Since(start)

			assert.Equal(t, test.success, res.Success)
			if test.success {
				require.Nil(t, err)
				assert.Equal(t, "TLS 1.3", res.TLSVersion)
				return
			}

			require.NotNil(t, err)
			var netErr net.Error
			require.ErrorAs(t, err, &netErr)
			assert.True(t, netErr.Timeout())
			assert.Less(t, elapsed, test.delay)
		})
	}
}

func TestProbeHandshakeOnly(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}

	opts := defaultOptions()
	opts.HandshakeOnly = true
	p := NewProber(env.surface, env.fs, dialer, nil, opts, env.log.Logger())

	res, err := p.Probe(context.Background(), TargetBroker)
	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.HandshakeOnly)
	assert.Empty(t, res.ReasonCode)

	select {
	case <-received:
		t.Fatal("packet sent after handshake")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestProbeMetadataDoesNotChangeConnection(t *testing.T) {
	connectFor := func(conf config.Config) ([]byte, dialRecord) {
		env := newTestEnv(t, conf, false)
		received := make(chan []byte, 4)
		dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}

		p := NewProber(env.surface, env.fs, dialer, nil, defaultOptions(),
			env.log.Logger())

		_, err := p.Probe(context.Background(), TargetBroker)
		require.Nil(t, err)

		dials := dialer.dials()
		require.Len(t, dials, 1)
		return <-received, dials[0]
	}

	baseConnect, baseDial := connectFor(systemRootsConfig())

	for i := 0; i < 10; i++ {
		conf := systemRootsConfig()
		conf.OSName = gofakeit.AppName()
		conf.OSVersion = gofakeit.AppVersion()
		conf.HardwarePlatformName = gofakeit.Word()
		conf.MQTTLib = gofakeit.LoremIpsumSentence(3)

		connect, dial := connectFor(conf)
		assert.Equal(t, baseConnect, connect)
		assert.Equal(t, baseDial.server, dial.server)
		assert.Equal(t, baseDial.conf.ServerName, dial.conf.ServerName)
		assert.Equal(t, baseDial.conf.NextProtos, dial.conf.NextProtos)
		assert.Equal(t, baseDial.conf.MinVersion, dial.conf.MinVersion)
		assert.Equal(t, len(baseDial.conf.Certificates),
			len(dial.conf.Certificates))
	}
}

func TestProbeMetrics(t *testing.T) {
	env := newTestEnv(t, systemRootsConfig(), false)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, env.log.Logger())

	received := make(chan []byte, 4)
	dialer := &fakeDialer{broker: fakeBroker(connAckAccepted, received)}
	p := NewProber(env.surface, env.fs, dialer, m, defaultOptions(),
		env.log.Logger())

	_, err := p.Probe(context.Background(), TargetBroker)
	require.Nil(t, err)

	dialer.err = transport.ErrConnectFailure
	_, err = p.Probe(context.Background(), TargetBroker)
	require.NotNil(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.attemptsTotal.WithLabelValues("broker", resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.attemptsTotal.WithLabelValues("broker", resultFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.handshakeSeconds))

	families, err := reg.Gather()
	require.Nil(t, err)
	assert.Len(t, families, 3)
}

func TestProbeMetricsRegisterTwice(t *testing.T) {
	logStub := mocks.NewLoggerStub()
	reg := prometheus.NewRegistry()

	_ = NewMetrics(reg, logStub.Logger())
	assert.NotContains(t, logStub.String(), "Failed to register metrics")

	_ = NewMetrics(reg, logStub.Logger())
	assert.Contains(t, logStub.String(), "Failed to register metrics")
}
