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
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testPKI struct {
	caPEM         []byte
	caPool        *x509.CertPool
	serverCert    tls.Certificate
	clientCertPEM []byte
	clientKeyPEM  []byte
}

func newTestPKI(t *testing.T) testPKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "iotdemo test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl,
		&caKey.PublicKey, caKey)
	require.Nil(t, err)

	ca, err := x509.ParseCertificate(caDER)
	require.Nil(t, err)

	serverCertPEM, serverKeyPEM := issueCert(t, ca, caKey, &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	serverCert, err := tls.X509KeyPair(serverCertPEM, serverKeyPEM)
	require.Nil(t, err)

	clientCertPEM, clientKeyPEM := issueCert(t, ca, caKey, &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "testclient"},
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return testPKI{
		caPEM:         pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		caPool:        pool,
		serverCert:    serverCert,
		clientCertPEM: clientCertPEM,
		clientKeyPEM:  clientKeyPEM,
	}
}

func issueCert(t *testing.T, ca *x509.Certificate, caKey *ecdsa.PrivateKey,
	tmpl *x509.Certificate) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	tmpl.NotBefore = time.Now().Add(-time.Hour)
	tmpl.NotAfter = time.Now().Add(time.Hour)
	tmpl.KeyUsage = x509.KeyUsageDigitalSignature

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey,
		caKey)
	require.Nil(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.Nil(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

// startTLSServer starts a TLS server which echoes everything it receives
// when echo is true, or holds the connection silently otherwise.
func startTLSServer(t *testing.T, conf *tls.Config, echo bool) ServerInfo {
	t.Helper()

	lsn, err := tls.Listen("tcp", "127.0.0.1:0", conf)
	require.Nil(t, err)
	t.Cleanup(func() { _ = lsn.Close() })

	go func() {
		for {
			c, err := lsn.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				if err := c.(*tls.Conn).Handshake(); err != nil {
					return
				}
				if echo {
					_, _ = io.Copy(c, c)
					return
				}
				_, _ = io.Copy(io.Discard, c)
			}(c)
		}
	}()

	_, portStr, err := net.SplitHostPort(lsn.Addr().String())
	require.Nil(t, err)
	port, err := strconv.Atoi(portStr)
	require.Nil(t, err)

	return ServerInfo{Host: "127.0.0.1", Port: uint16(port)}
}
