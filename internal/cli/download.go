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
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gsalomao/iotdemo/internal/download"
	"github.com/gsalomao/iotdemo/internal/transport"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newCommandDownload() *cobra.Command {
	var output string
	var rootCA string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a file with HTTPS range requests",
		Long: "Download the file at the HTTPS URL (e.g. a pre-signed S3 URL) " +
			"using sequential range requests which fit in the user buffer.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			a, err := newApp(afero.NewOsFs(), log)
			if err != nil {
				return err
			}

			var tlsConf *tls.Config
			if rootCA != "" {
				path, err := a.surface.RootCACertPath(rootCA)
				if err != nil {
					return err
				}

				tlsConf, err = transport.LoadTLSConfig(a.fs,
					transport.Credentials{RootCAPath: path}, log)
				if err != nil {
					return err
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			timeout := time.Duration(a.conf.TransportTimeout) * time.Second
			d := download.New(a.surface, tlsConf, timeout, log)

			n, err := d.Download(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}

			if output != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written to %s\n",
					n, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "",
		"Write the file into the path instead of the standard output")
	cmd.Flags().StringVar(&rootCA, "root-ca", "",
		"Image package asset of the server root CA (default: system roots)")
	return cmd
}
