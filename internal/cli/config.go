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
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newCommandConfig() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the configuration surface",
		Long: "Show the values of the configuration surface resolved from " +
			"the defaults, the config file, and the IOTDEMO_* environment " +
			"variables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(afero.NewOsFs(), newLogger(cmd))
			if err != nil {
				return err
			}

			values := a.surface.Values()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 1, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tKIND\tVALUE")
			for _, v := range values {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, v.Type, v.Value)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the values as JSON")
	return cmd
}
