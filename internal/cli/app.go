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

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/gsalomao/iotdemo/internal/mqtt/packet"
	"github.com/gsalomao/iotdemo/internal/platform"
	"github.com/gsalomao/iotdemo/internal/probe"
	"github.com/gsalomao/iotdemo/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

type app struct {
	conf    config.Config
	fs      afero.Fs
	surface *config.Surface
	log     *logger.Logger
}

func loadConfig(log *logger.Logger) (config.Config, error) {
	conf := config.DefaultConfig

	err := config.ReadConfigFile()
	missingConfigFile := errors.Is(err, config.ErrConfigFileNotFound)
	if err != nil && !missingConfigFile {
		return conf, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = config.LoadConfig(&conf); err != nil {
		return conf, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err = logger.SetSeverityLevel(conf.LogLevel); err != nil {
		return conf, fmt.Errorf("failed to set log severity: %w", err)
	}

	if missingConfigFile {
		log.Debug().Msg("Config No config file found")
	} else {
		log.Info().Msg("Config Config file loaded with success")
	}
	return conf, nil
}

func newApp(fs afero.Fs, log *logger.Logger) (*app, error) {
	conf, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	storage, err := platform.NewImagePackage(fs, conf.ImagePackageDir)
	if err != nil {
		return nil, err
	}
	device := platform.NewFileDeviceAuth(fs, conf.DeviceCertPath)

	s, err := config.NewSurface(conf, storage, device)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("ImagePackage", storage.Root()).
		Str("Broker", s.BrokerEndpoint().Address()).
		Msg("Config Configuration surface resolved")

	return &app{conf: conf, fs: fs, surface: s, log: log}, nil
}

func (a *app) newDialer() *transport.Dialer {
	return &transport.Dialer{
		ConnectTimeout: time.Duration(a.conf.ConnectTimeout) * time.Second,
		SendTimeout:    time.Duration(a.conf.TransportTimeout) * time.Second,
		RecvTimeout:    time.Duration(a.conf.TransportTimeout) * time.Second,
		Log:            a.log,
	}
}

func (a *app) newProber(d probe.Dialer, reg prometheus.Registerer,
	handshakeOnly bool) *probe.Prober {

	opts := probe.Options{
		ConnectTimeout: time.Duration(a.conf.ConnectTimeout) * time.Second,
		KeepAlive:      uint16(a.conf.MQTTKeepAlive),
		Version:        packet.MQTTVersion(a.conf.MQTTVersion),
		HandshakeOnly:  handshakeOnly,
	}

	var m *probe.Metrics
	if reg != nil {
		m = probe.NewMetrics(reg, a.log)
	}

	return probe.NewProber(a.surface, a.fs, d, m, opts, a.log)
}
