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
	"fmt"
	"io"
	"time"

	"github.com/gsalomao/iotdemo/internal/probe"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newCommandProbe() *cobra.Command {
	var target string
	var handshakeOnly bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the connectivity to a broker",
		Long: "Connect to the broker over TLS, perform the MQTT connection " +
			"handshake, and disconnect.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := probe.ParseTarget(target)
			if err != nil {
				return err
			}

			a, err := newApp(afero.NewOsFs(), newLogger(cmd))
			if err != nil {
				return err
			}

			p := a.newProber(a.newDialer(), nil, handshakeOnly)
			res, err := p.Probe(cmd.Context(), t)
			printResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVar(&target, "target", string(probe.TargetBroker),
		"Broker to probe (broker or iotcore)")
	cmd.Flags().BoolVar(&handshakeOnly, "handshake-only", false,
		"Stop after the TLS handshake")
	return cmd
}

func printResult(w io.Writer, res probe.Result) {
	status := "FAILED"
	if res.Success {
		status = "OK"
	}

	_, _ = fmt.Fprintf(w, "%s %s (%s) in %s\n", status, res.Target,
		res.Endpoint, res.Latency.Round(time.Millisecond))
	if res.TLSVersion != "" {
		_, _ = fmt.Fprintf(w, "  TLS: %s", res.TLSVersion)
		if res.ALPN != "" {
			_, _ = fmt.Fprintf(w, " ALPN: %s", res.ALPN)
		}
		_, _ = fmt.Fprintln(w)
	}
	if res.ReasonCode != "" {
		_, _ = fmt.Fprintf(w, "  CONNACK: %s (session present: %t)\n",
			res.ReasonCode, res.SessionPresent)
	}
	if res.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error: %s\n", res.Error)
	}
}
