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
	"context"
	"time"

	"github.com/dimiro1/banner"
	"github.com/gsalomao/iotdemo/internal/api"
	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/gsalomao/iotdemo/internal/metrics"
	"github.com/gsalomao/iotdemo/internal/probe"
	"github.com/gsalomao/iotdemo/internal/server"
	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var bannerTemplate = `{{ .Title "iotdemo" "" 0 }}
{{ .AnsiColor.BrightCyan }}  MQTT over TLS device demo
{{ .AnsiColor.Default }}
`

func newCommandWatch() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Probe a broker periodically",
		Long: "Probe the broker once per probe interval, exporting the " +
			"results through the metrics and HTTP servers.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := probe.ParseTarget(target)
			if err != nil {
				return err
			}

			banner.InitString(colorable.NewColorableStdout(), true, true,
				bannerTemplate)

			log := newLogger(cmd)
			a, err := newApp(afero.NewOsFs(), log)
			if err != nil {
				return err
			}

			srv, err := newServer(a, a.newDialer(), t)
			if err != nil {
				return err
			}

			return runServer(cmd.Context(), srv, log)
		},
	}

	cmd.Flags().StringVar(&target, "target", string(probe.TargetBroker),
		"Broker to probe (broker or iotcore)")
	return cmd
}

func newServer(a *app, d probe.Dialer, t probe.Target) (*server.Server,
	error) {

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := a.newProber(d, reg, false)
	interval := time.Duration(a.conf.ProbeInterval) * time.Second
	monitor := probe.NewMonitor(p, t, interval, a.log)

	httpSrv, err := api.NewHTTPServer(api.Configuration{
		Address:         a.conf.HTTPAddress,
		ReadTimeout:     5,
		WriteTimeout:    5,
		ShutdownTimeout: 5,
	}, a.log)
	if err != nil {
		return nil, err
	}
	httpSrv.RegisterRoutes(a.surface, monitor)

	srv := server.New(a.log)
	srv.AddRunner(monitor)
	srv.AddRunner(httpSrv)

	if a.conf.MetricsEnabled {
		a.log.Debug().
			Str("Address", a.conf.MetricsAddress).
			Str("Path", a.conf.MetricsPath).
			Msg("Metrics Exporting metrics")

		mtSrv, err := metrics.NewServer(metrics.Configuration{
			Address: a.conf.MetricsAddress,
			Path:    a.conf.MetricsPath,
		}, reg, a.log)
		if err != nil {
			return nil, err
		}
		srv.AddRunner(mtSrv)
	}

	return srv, nil
}

func runServer(ctx context.Context, srv *server.Server,
	log *logger.Logger) error {

	if err := srv.Start(); err != nil {
		return err
	}

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
			srv.Stop()
		case <-stopped:
		}
	}()

	err := srv.Wait()
	if err != nil {
		log.Error().Msg("Server stopped with error: " + err.Error())
	}
	return err
}
