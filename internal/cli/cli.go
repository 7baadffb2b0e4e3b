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

// Package cli implements the command line interface of the application.
package cli

import (
	"context"
	"io"

	"github.com/gsalomao/iotdemo/internal/build"
	"github.com/gsalomao/iotdemo/internal/logger"
	"github.com/spf13/cobra"
)

// CLI represents the command line interface.
type CLI struct {
	rootCmd *cobra.Command
}

// New creates an instance of the command line interface. Command results are
// written into out while logs are written into errOut.
func New(out, errOut io.Writer, args []string) CLI {
	description := "iotdemo exercises the connection settings of an " +
		"MQTT-over-TLS device: it shows the configuration, probes the " +
		"brokers, and downloads files with HTTPS range requests."

	c := CLI{
		rootCmd: &cobra.Command{
			Use:           "iotdemo",
			Version:       build.GetInfo().ShortVersion(),
			Short:         "MQTT over TLS device demo",
			Long:          description,
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}

	c.rootCmd.CompletionOptions.DisableDefaultCmd = true
	c.rootCmd.SetVersionTemplate("{{printf .Version}}\n")
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
	c.registerSubCommands()

	return c
}

// Run executes the command line interface.
func (c *CLI) Run(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) registerSubCommands() {
	c.rootCmd.AddCommand(newCommandConfig())
	c.rootCmd.AddCommand(newCommandProbe())
	c.rootCmd.AddCommand(newCommandWatch())
	c.rootCmd.AddCommand(newCommandDownload())
	c.rootCmd.AddCommand(newCommandVersion())
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	log := logger.New(cmd.ErrOrStderr())
	return &log
}
