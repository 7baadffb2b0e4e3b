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

// Package build reports the build information of the application.
package build

import (
	"bytes"
	"fmt"
	"runtime"
	"text/tabwriter"
)

// Variables set at build time with -ldflags "-X".
var (
	version   = "0.0.0-dev" // The application version.
	revision  = "unknown"   // The commit ID of the build.
	buildTime = "unknown"   // The build time in UTC (year-month-day hour:min:sec).
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildTime string `json:"build_time"`
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
}

// GetInfo returns the build Info.
func GetInfo() Info {
	return Info{
		Version:   version,
		Revision:  revision,
		BuildTime: buildTime,
		Platform:  fmt.Sprintf("%s-%s", runtime.GOARCH, runtime.GOOS),
		GoVersion: runtime.Version(),
	}
}

// ShortVersion returns the application name and version.
func (i Info) ShortVersion() string {
	return "iotdemo " + i.Version
}

// LongVersion returns a pretty printed build summary.
func (i Info) LongVersion() string {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 2, 1, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Version:\t%s\n", i.Version)
	_, _ = fmt.Fprintf(tw, "Revision:\t%s\n", i.Revision)
	_, _ = fmt.Fprintf(tw, "Build Time:\t%s\n", i.BuildTime)
	_, _ = fmt.Fprintf(tw, "Platform:\t%s\n", i.Platform)
	_, _ = fmt.Fprintf(tw, "Go Version:\t%s\n", i.GoVersion)

	_ = tw.Flush()
	return buf.String()
}
