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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/platform"
	"github.com/gsalomao/iotdemo/internal/transport"
	"github.com/gsalomao/iotdemo/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type dialRecord struct {
	server transport.ServerInfo
	conf   *tls.Config
}

type fakeDialer struct {
	mtx     sync.Mutex
	records []dialRecord
	err     error
	broker  func(c net.Conn)
}

func (d *fakeDialer) Dial(_ context.Context, s transport.ServerInfo,
	conf *tls.Config) (net.Conn, error) {

	d.mtx.Lock()
	d.records = append(d.records, dialRecord{server: s, conf: conf})
	d.mtx.Unlock()

	if d.err != nil {
		return nil, d.err
	}

	client, server := net.Pipe()
	go d.broker(server)
	return client, nil
}

func (d *fakeDialer) dials() []dialRecord {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return append([]dialRecord{}, d.records...)
}

var pingRespPacket = []byte{0xD0, 0x00}

// fakeBroker forwards every packet received to the channel, replies the first
// one with connAck and every PINGREQ with a PINGRESP. A nil connAck closes the
// connection without reply.
func fakeBroker(connAck []byte, received chan<- []byte) func(c net.Conn) {
	return fakeBrokerWithPingResp(connAck, pingRespPacket, received)
}

// fakeBrokerWithPingResp works like fakeBroker but replies the PINGREQ with
// pingResp. A nil pingResp closes the connection without reply.
func fakeBrokerWithPingResp(connAck, pingResp []byte,
	received chan<- []byte) func(c net.Conn) {

	return func(c net.Conn) {
		defer func() { _ = c.Close() }()

		for first := true; ; first = false {
			pkt, err := readRawPacket(c)
			if err != nil {
				return
			}
			received <- pkt

			var reply []byte
			switch {
			case first:
				reply = connAck
			case pkt[0] == 0xC0:
				reply = pingResp
			default:
				return
			}

			if reply == nil {
				return
			}
			if _, err = c.Write(reply); err != nil {
				return
			}
		}
	}
}

func readRawPacket(r io.Reader) ([]byte, error) {
	raw := make([]byte, 1, 64)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}

	remain, multiplier := 0, 1
	for {
		b := make([]byte, 1)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		raw = append(raw, b[0])
		remain += int(b[0]&127) * multiplier
		if b[0]&128 == 0 {
			break
		}
		multiplier *= 128
	}

	body := make([]byte, remain)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return append(raw, body...), nil
}

func newDeviceBundle(t *testing.T) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "testclient"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl,
		&key.PublicKey, key)
	require.Nil(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.Nil(t, err)

	bundle := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return append(bundle,
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})...)
}

type testEnv struct {
	surface *config.Surface
	fs      afero.Fs
	storage *mocks.StorageMock
	log     *mocks.LoggerStub
}

// newTestEnv creates a surface which trusts the system roots. When
// provisioned is true, the device holds a certificate bundle.
func newTestEnv(t *testing.T, conf config.Config, provisioned bool) testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	storage := &mocks.StorageMock{}

	devicePath := ""
	if provisioned {
		devicePath = "/device/identity.pem"
		require.Nil(t, afero.WriteFile(fs, devicePath, newDeviceBundle(t), 0600))
	}
	device := platform.NewFileDeviceAuth(fs, devicePath)

	s, err := config.NewSurface(conf, storage, device)
	require.Nil(t, err)

	return testEnv{surface: s, fs: fs, storage: storage,
		log: mocks.NewLoggerStub()}
}

func systemRootsConfig() config.Config {
	conf := config.DefaultConfig
	conf.RootCACertName = ""
	conf.AWSRootCACertName = ""
	return conf
}

// startSlowBroker starts a TLS broker on the loopback interface which replies
// the CONNECT with connAck after the delay. It returns the broker port and
// the PEM of its self-signed certificate.
func startSlowBroker(t *testing.T, delay time.Duration,
	connAck []byte) (uint16, []byte) {

	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage: x509.KeyUsageDigitalSignature |
			x509.KeyUsageCertSign,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl,
		&key.PublicKey, key)
	require.Nil(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.Nil(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY",
		Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.Nil(t, err)

	lsn, err := tls.Listen("tcp", "127.0.0.1:0",
		&tls.Config{Certificates: []tls.Certificate{cert}})
	require.Nil(t, err)
	t.Cleanup(func() { _ = lsn.Close() })

	go func() {
		for {
			c, err := lsn.Accept()
			if err != nil {
				return
			}
			go serveSlowly(c, delay, connAck)
		}
	}()

	return uint16(lsn.Addr().(*net.TCPAddr).Port), certPEM
}

func serveSlowly(c net.Conn, delay time.Duration, connAck []byte) {
	defer func() { _ = c.Close() }()

	if _, err := readRawPacket(c); err != nil {
		return
	}

	time.Sleep(delay)
	if _, err := c.Write(connAck); err != nil {
		return
	}

	for {
		pkt, err := readRawPacket(c)
		if err != nil || pkt[0] != 0xC0 {
			return
		}
		if _, err = c.Write(pingRespPacket); err != nil {
			return
		}
	}
}
