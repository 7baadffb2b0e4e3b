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

// Package api exposes the configuration surface and the probe status over
// HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ErrMissingAddress indicates that the HTTP server has no address.
var ErrMissingAddress = errors.New("HTTP missing address")

// Configuration holds the HTTP server configuration.
type Configuration struct {
	// TCP address (<IP>:<port>) that the HTTP server will bind to.
	Address string

	// The amount of time, in seconds, the HTTP server waits for reading the
	// entire request, including the body.
	ReadTimeout int

	// The amount of time, in seconds, the HTTP server waits before timing out
	// writes of the response.
	WriteTimeout int

	// The amount of time, in seconds, the application waits for graceful
	// shutdown of the HTTP server.
	ShutdownTimeout int
}

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	// Instance of the Echo framework.
	Echo *echo.Echo

	// API routes v1.
	RouteV1 *echo.Group

	conf Configuration
	log  *logger.Logger
}

// NewHTTPServer creates a HTTPServer.
func NewHTTPServer(c Configuration, log *logger.Logger) (*HTTPServer, error) {
	if c.Address == "" {
		return nil, ErrMissingAddress
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(c.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(c.WriteTimeout) * time.Second
	e.Use(middleware.RequestID())
	e.Use(fromLogger(log))

	s := &HTTPServer{
		Echo:    e,
		RouteV1: e.Group("/api/v1"),
		conf:    c,
		log:     log,
	}
	e.HTTPErrorHandler = s.handleError

	return s, nil
}

// Run starts the execution of the HTTPServer.
// Once called, it blocks waiting for connections until it's stopped by the
// Stop function.
func (s *HTTPServer) Run() error {
	lsn, err := net.Listen("tcp", s.conf.Address)
	if err != nil {
		s.log.Error().Msg("HTTP Failed to listen: " + err.Error())
		return err
	}

	s.log.Info().Msg("HTTP Listening on " + lsn.Addr().String())
	s.Echo.Listener = lsn

	if err := s.Echo.Start(s.conf.Address); err != http.ErrServerClosed {
		return err
	}

	s.log.Debug().Msg("HTTP Server stopped with success")
	return nil
}

// Stop stops the HTTPServer.
// Once called, it unblocks the Run function.
func (s *HTTPServer) Stop() {
	s.log.Debug().Msg("HTTP Stopping server")

	t := time.Duration(s.conf.ShutdownTimeout) * time.Second
	if t <= 0 {
		t = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), t)
	defer cancel()

	err := s.Echo.Shutdown(ctx)
	if err != nil {
		_ = s.Echo.Close()
	}
}

func (s *HTTPServer) handleError(err error, c echo.Context) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		s.log.Debug().
			Str("Path", c.Path()).
			Int("Status", httpErr.Code).
			Msg(fmt.Sprintf("HTTP Request error: %v", httpErr.Message))
	} else {
		httpErr = echo.ErrInternalServerError
		s.log.Warn().Msg("HTTP Request error: " + err.Error())
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(httpErr.Code)
	} else {
		err = c.JSON(httpErr.Code, httpErr)
	}
	if err != nil {
		s.log.Error().
			Str("Path", c.Path()).
			Int("Status", httpErr.Code).
			Msg("HTTP Failed to send error response: " + err.Error())
	}
}
