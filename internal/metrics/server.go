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

// Package metrics exports the application metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ErrMissingAddress indicates that the metrics server has no address.
	ErrMissingAddress = errors.New("metrics missing address")

	// ErrMissingPath indicates that the metrics server has no path.
	ErrMissingPath = errors.New("metrics missing path")
)

// Configuration represents the configuration used to export the metrics.
type Configuration struct {
	// TCP address (<IP>:<port>) where the Prometheus metrics are exported.
	Address string

	// The path where the metrics are exported.
	Path string
}

// Server represents a Runner responsible for exporting metrics.
type Server struct {
	conf Configuration
	srv  *http.Server
	log  *logger.Logger
}

// NewServer creates a Server which exports the metrics collected by g.
func NewServer(c Configuration, g prometheus.Gatherer,
	log *logger.Logger) (*Server, error) {

	if c.Address == "" {
		return nil, ErrMissingAddress
	}
	if c.Path == "" {
		return nil, ErrMissingPath
	}

	mux := http.NewServeMux()
	mux.Handle(c.Path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         c.Address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return &Server{conf: c, srv: srv, log: log}, nil
}

// Run starts the execution of the Server.
// Once called, it blocks waiting for connections until it's stopped by the
// Stop function.
func (s *Server) Run() error {
	lsn, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.log.Error().Msg("Metrics Failed to listen: " + err.Error())
		return err
	}

	s.log.Info().Msg("Metrics Listening on " + lsn.Addr().String() +
		s.conf.Path)

	if err := s.srv.Serve(lsn); err != http.ErrServerClosed {
		return err
	}

	s.log.Debug().Msg("Metrics Server stopped with success")
	return nil
}

// Stop stops the Server.
// Once called, it unblocks the Run function.
func (s *Server) Stop() {
	s.log.Debug().Msg("Metrics Stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	if err != nil {
		_ = s.srv.Close()
	}
}
