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

// Package server supervises the long-running components of the application.
package server

import (
	"errors"
	"sync"

	"github.com/gsalomao/iotdemo/internal/logger"
	"go.uber.org/multierr"
)

// ErrNoRunner indicates that the server was started without any runner.
var ErrNoRunner = errors.New("no available runner")

// Runner is the interface of the components run by the server.
type Runner interface {
	// Run starts the runner and blocks until it stops.
	Run() error

	// Stop stops the runner unblocking the Run function.
	Stop()
}

// Server runs a set of runners and waits for them.
type Server struct {
	log      *logger.Logger
	wg       sync.WaitGroup
	mtx      sync.Mutex
	stopOnce sync.Once
	runners  []Runner
	err      error
}

// New creates a new server.
func New(log *logger.Logger) *Server {
	return &Server{log: log}
}

// AddRunner adds a runner to the server.
func (s *Server) AddRunner(r Runner) {
	s.runners = append(s.runners, r)
}

// Start starts the server running all runners.
func (s *Server) Start() error {
	s.log.Info().Msg("Starting server")

	if len(s.runners) == 0 {
		return ErrNoRunner
	}

	for _, r := range s.runners {
		s.wg.Add(1)
		go func(r Runner) {
			defer s.wg.Done()

			err := r.Run()
			if err != nil {
				s.mtx.Lock()
				s.err = multierr.Append(s.err, err)
				s.mtx.Unlock()

				s.log.Error().Msg("Runner failed: " + err.Error())
				s.Stop()
			}
		}(r)
	}

	s.log.Info().Msg("Server started with success")
	return nil
}

// Stop stops the server stopping all runners. The server stops itself when
// any runner fails. Only the first call has effect.
func (s *Server) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *Server) stop() {
	s.log.Info().Msg("Stopping server")
	s.wg.Add(1)

	for _, r := range s.runners {
		r.Stop()
	}

	s.log.Info().Msg("Server stopped with success")
	s.wg.Done()
}

// Wait blocks while the server is running. It returns the errors of all
// runners which failed.
func (s *Server) Wait() error {
	s.wg.Wait()

	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.err
}
