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
	"time"

	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics holds the Prometheus metrics collected by the Prober.
type Metrics struct {
	attemptsTotal    *prometheus.CounterVec
	latencySeconds   *prometheus.HistogramVec
	handshakeSeconds *prometheus.HistogramVec
}

// NewMetrics creates the probe metrics and registers them into reg. When reg
// is nil, the metrics are collected but not exported.
func NewMetrics(reg prometheus.Registerer, log *logger.Logger) *Metrics {
	m := &Metrics{}

	m.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iotdemo",
			Subsystem: "probe",
			Name:      "attempts_total",
			Help:      "Number of connectivity probes",
		}, []string{"target", "result"},
	)

	m.latencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iotdemo",
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "Duration in seconds of the connectivity probes",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"target"},
	)

	m.handshakeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iotdemo",
			Subsystem: "probe",
			Name:      "tls_handshake_seconds",
			Help:      "Duration in seconds of the TCP connect and TLS handshake",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"target"},
	)

	if reg != nil {
		err := reg.Register(m.attemptsTotal)
		err = multierr.Combine(err, reg.Register(m.latencySeconds))
		err = multierr.Combine(err, reg.Register(m.handshakeSeconds))
		if err != nil {
			log.Error().Msg("Probe Failed to register metrics: " + err.Error())
		}
	}

	return m
}

func (m *Metrics) recordHandshake(t Target, d time.Duration) {
	m.handshakeSeconds.WithLabelValues(string(t)).Observe(d.Seconds())
}

func (m *Metrics) recordResult(r Result) {
	result := resultFailure
	if r.Success {
		result = resultSuccess
	}

	m.attemptsTotal.WithLabelValues(string(r.Target), result).Inc()
	m.latencySeconds.WithLabelValues(string(r.Target)).
		Observe(r.Latency.Seconds())
}
