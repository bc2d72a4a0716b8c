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

package cmd

import (
	"context"
	"fmt"

	"github.com/binaek/cling"
	"github.com/sentrie-sh/esmrt/version"
)

func addVersionCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("version", versionCmd),
	)
}

func versionCmd(ctx context.Context, args []string) error {
	info := version.GetVersionInfo(
		version.WithAppDetails("esmrt", "Embeddable ECMAScript module graph linker/evaluator", "https://github.com/sentrie-sh/esmrt"),
	)
	fmt.Print(info.String())
	return nil
}
