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

package api

import (
	"net/http"

	"github.com/gsalomao/iotdemo/internal/config"
	"github.com/gsalomao/iotdemo/internal/probe"
	"github.com/labstack/echo/v4"
)

// ConfigSource provides the values of the configuration surface.
type ConfigSource interface {
	Values() []config.Value
}

// ProbeSource provides the result of the latest probe.
type ProbeSource interface {
	LastResult() (probe.Result, bool)
}

// RegisterRoutes adds the configuration and probe routes to the server.
func (s *HTTPServer) RegisterRoutes(cs ConfigSource, ps ProbeSource) {
	s.RouteV1.GET("/config", func(c echo.Context) error {
		return c.JSON(http.StatusOK, cs.Values())
	})

	s.RouteV1.GET("/probe", func(c echo.Context) error {
		res, ok := ps.LastResult()
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "no probe completed")
		}
		return c.JSON(http.StatusOK, res)
	})
}
