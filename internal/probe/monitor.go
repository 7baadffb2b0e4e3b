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
	"context"
	"time"

	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/gsalomao/iotdemo/internal/safe"
)

// Monitor is a runner which probes a target periodically and keeps the last
// result.
type Monitor struct {
	prober   *Prober
	target   Target
	interval time.Duration
	log      *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	last     safe.Value[Result]
}

// NewMonitor creates a Monitor which probes the target once per interval.
func NewMonitor(p *Prober, t Target, interval time.Duration,
	log *logger.Logger) *Monitor {

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{prober: p, target: t, interval: interval, log: log,
		ctx: ctx, cancel: cancel}
}

// Run starts the execution of the Monitor.
// Once called, it probes the target immediately and then once per interval
// until it's stopped by the Stop function.
func (m *Monitor) Run() error {
	m.log.Info().
		Str("Target", string(m.target)).
		Dur("Interval", m.interval).
		Msg("Probe Monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.ctx.Err() != nil {
			break
		}

		res, _ := m.prober.Probe(m.ctx, m.target)
		m.last.Store(res)

		select {
		case <-m.ctx.Done():
		case <-ticker.C:
		}
	}

	m.log.Debug().Msg("Probe Monitor stopped with success")
	return nil
}

// Stop stops the Monitor.
// Once called, it unblocks the Run function.
func (m *Monitor) Stop() {
	m.log.Debug().Msg("Probe Stopping monitor")
	m.cancel()
}

// LastResult returns the result of the latest probe, and false when no probe
// has completed yet.
func (m *Monitor) LastResult() (Result, bool) {
	return m.last.Load()
}
