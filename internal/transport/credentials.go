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

// Package transport establishes the TLS connections used by the MQTT and
// HTTPS clients.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/spf13/afero"
)

// ALPNAWSMQTT is the ALPN protocol name required by the managed IoT broker
// for MQTT over port 443.
const ALPNAWSMQTT = "x-amzn-mqtt-ca"

const (
	rootCALabel     = "Root CA certificate"
	clientCertLabel = "client's certificate"
	clientKeyLabel  = "client's key"
)

// Credentials contains the trust and identity material used to establish a
// TLS session.
type Credentials struct {
	// Path of the trusted server root CA. Empty means the system roots.
	RootCAPath string

	// Path of the client certificate. Empty means no client authentication.
	ClientCertPath string

	// Path of the client private key. When absent, the key is read from the
	// client certificate file.
	PrivateKeyPath config.KeyPath

	// ALPN protocols. Nil disables ALPN.
	ALPNProtocols []string

	// Host name sent with SNI and verified against the server certificate.
	SNIHostName string
}

// ALPNFor returns the ALPN protocols required to reach an MQTT broker on the
// given port.
func ALPNFor(port uint16) []string {
	if port == 443 {
		return []string{ALPNAWSMQTT}
	}
	return nil
}

// LoadTLSConfig creates the tls.Config for the given credentials, reading
// the files from fs.
func LoadTLSConfig(fs afero.Fs, c Credentials,
	log *logger.Logger) (*tls.Config, error) {

	conf := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: c.SNIHostName,
		NextProtos: c.ALPNProtocols,
	}

	if c.RootCAPath != "" {
		pool, err := loadRootCA(fs, c.RootCAPath, log)
		if err != nil {
			return nil, err
		}
		conf.RootCAs = pool
	}

	keyPath, keyPresent := c.PrivateKeyPath.Path()
	if c.ClientCertPath == "" {
		if keyPresent {
			log.Error().Msg("Transport Private key set without client certificate")
			return nil, fmt.Errorf("%w: private key without client certificate",
				ErrInvalidCredentials)
		}
		return conf, nil
	}

	cert, err := loadClientCertificate(fs, c.ClientCertPath, keyPath,
		keyPresent, log)
	if err != nil {
		return nil, err
	}
	conf.Certificates = []tls.Certificate{cert}

	return conf, nil
}

func loadRootCA(fs afero.Fs, path string,
	log *logger.Logger) (*x509.CertPool, error) {

	logPath(log, path, rootCALabel)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		log.Error().Msg("Transport Failed to import root CA: " + err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		log.Error().Msg("Transport Failed to import root CA")
		return nil, fmt.Errorf("%w: no certificate found in %s",
			ErrInvalidCredentials, path)
	}

	log.Debug().Msg("Transport Successfully imported root CA")
	return pool, nil
}

func loadClientCertificate(fs afero.Fs, certPath, keyPath string,
	keyPresent bool, log *logger.Logger) (tls.Certificate, error) {

	logPath(log, certPath, clientCertLabel)

	certPEM, err := afero.ReadFile(fs, certPath)
	if err != nil {
		log.Error().Msg("Transport Failed to import client certificate: " +
			err.Error())
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	// Device identity bundles carry the private key with the certificate.
	keyPEM := certPEM
	if keyPresent {
		if keyPath == "" {
			log.Error().Msg("Transport Empty private key path")
			return tls.Certificate{}, fmt.Errorf("%w: empty private key path",
				ErrInvalidCredentials)
		}

		logPath(log, keyPath, clientKeyLabel)
		keyPEM, err = afero.ReadFile(fs, keyPath)
		if err != nil {
			log.Error().Msg("Transport Failed to import client certificate " +
				"private key: " + err.Error())
			return tls.Certificate{}, fmt.Errorf("%w: %v",
				ErrInvalidCredentials, err)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		log.Error().Msg("Transport Failed to import client certificate: " +
			err.Error())
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	log.Debug().Msg("Transport Successfully imported client certificate")
	return cert, nil
}

func logPath(log *logger.Logger, path, label string) {
	log.Debug().Str("Path", path).Msg("Transport Attempting to open " + label)
}
