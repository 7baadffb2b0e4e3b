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
	"errors"
	"fmt"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/platform"
	"github.com/gsalomao/iotdemo/internal/transport"
)

// ErrClientCertRequired indicates that the target requires a client
// certificate but the device is not provisioned.
var ErrClientCertRequired = errors.New("client certificate required")

// MetricsUserName returns the MQTT user name which reports the given metadata
// to the managed IoT broker.
func MetricsUserName(md config.Metadata) string {
	return "?SDK=" + md.OSName +
		"&Version=" + md.OSVersion +
		"&Platform=" + md.HardwarePlatform +
		"&MQTTLib=" + md.MQTTLib
}

func credentialsFor(s *config.Surface, t Target,
	ep config.Endpoint) (transport.Credentials, error) {

	creds := transport.Credentials{
		ALPNProtocols: transport.ALPNFor(ep.Port),
		SNIHostName:   ep.Host,
	}

	name := s.RootCACertName()
	if t == TargetIoTCore {
		name = s.AWSRootCACertName()
	}

	if name != "" {
		path, err := s.RootCACertPath(name)
		if err != nil {
			return creds, fmt.Errorf("failed to resolve root CA %s: %w",
				name, err)
		}
		creds.RootCAPath = path
	}

	certPath, err := s.ClientCertPath()
	if err != nil {
		if !errors.Is(err, platform.ErrDeviceNotProvisioned) {
			return creds, fmt.Errorf("failed to resolve client certificate: %w",
				err)
		}
		if t == TargetIoTCore {
			return creds, fmt.Errorf("%w: %v", ErrClientCertRequired, err)
		}
		return creds, nil
	}

	creds.ClientCertPath = certPath
	creds.PrivateKeyPath = s.PrivateKeyPath()
	return creds, nil
}
