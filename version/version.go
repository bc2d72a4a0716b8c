// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version assembles build/version information for the CLI from
// the binary's embedded build metadata.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"text/tabwriter"
)

// Info holds version information for the application.
type Info struct {
	Name         string
	Description  string
	Website      string
	GitVersion   string
	GitCommit    string
	GitTreeState string
	BuildDate    string
}

// Option configures an Info struct.
type Option func(*Info)

// WithAppDetails sets the application name, description, and website.
func WithAppDetails(name, description, website string) Option {
	return func(i *Info) {
		i.Name = name
		i.Description = description
		i.Website = website
	}
}

// GetVersionInfo reads the binary's debug.BuildInfo into an Info, then
// applies the given options on top.
func GetVersionInfo(opts ...Option) Info {
	var info Info

	if bi, _ := debug.ReadBuildInfo(); bi != nil {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = setting.Value
			case "vcs.time":
				info.BuildDate = setting.Value
			case "vcs.modified":
				info.GitTreeState = "clean"
				if setting.Value == "true" {
					info.GitTreeState = "dirty"
				}
			}
		}
		// "(devel)" is what a plain `go run` reports; not worth printing
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.GitVersion = v
		}
	}

	for _, opt := range opts {
		opt(&info)
	}

	return info
}

// String renders the info as the multi-line block the version command
// prints.
func (i Info) String() string {
	var b strings.Builder

	switch {
	case i.Name != "" && i.GitVersion != "":
		fmt.Fprintf(&b, "%s v%s\n", i.Name, i.GitVersion)
	case i.Name != "":
		fmt.Fprintf(&b, "%s\n", i.Name)
	}
	if i.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", i.Description)
	}
	if i.Website != "" {
		fmt.Fprintf(&b, "\n%s\n", i.Website)
	}
	b.WriteString("\n")

	w := tabwriter.NewWriter(&b, 0, 0, 1, ' ', 0)
	for _, row := range [][2]string{
		{"Git Commit", i.GitCommit},
		{"Git Tree", i.GitTreeState},
		{"Build Date", i.BuildDate},
	} {
		if row[1] != "" {
			fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
		}
	}
	w.Flush()
	b.WriteString("\n")

	return b.String()
}
