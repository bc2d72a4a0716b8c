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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/binaek/cling"
	"github.com/pkg/errors"
)

func addGraphCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("graph", graphCmd).
			WithArgument(cling.NewStringCmdInput("entry").
				WithDescription("Entry module specifier to inspect").
				AsArgument(),
			).
			WithFlag(cling.
				NewStringCmdInput("module-root").
				WithDefault(".").
				WithDescription("Directory to locate the module manifest from").
				AsFlag(),
			).
			WithFlag(cling.
				NewStringCmdInput("output").
				WithDefault("text").
				WithValidator(cling.NewEnumValidator("text", "json")).
				WithDescription("Output format to use. One of: text, json").
				AsFlag(),
			),
	)
}

type graphCmdArgs struct {
	Entry      string `cling-name:"entry"`
	ModuleRoot string `cling-name:"module-root"`
	Output     string `cling-name:"output"`
}

type graphResult struct {
	Entry string   `json:"entry"`
	Order []string `json:"order,omitempty"`
	Cycle []string `json:"cycle,omitempty"`
}

// graphCmd links the entry's import graph, then prints either a
// topological order over its specifiers or the first cycle found.
func graphCmd(ctx context.Context, args []string) error {
	input := graphCmdArgs{}
	if err := cling.Hydrate(ctx, args, &input); err != nil {
		return err
	}

	eng, realm, err := setupEngine(ctx, input.ModuleRoot)
	if err != nil {
		return err
	}

	entry, err := realm.ResolveImportedModule(nil, input.Entry)
	if err != nil {
		return errors.Wrapf(err, "resolve entry %q", input.Entry)
	}
	if err := eng.Link(entry); err != nil {
		return errors.Wrapf(err, "link %q", input.Entry)
	}

	order, cycle := eng.Graph().Condensation()
	res := graphResult{Entry: input.Entry, Order: order, Cycle: cycle}

	if input.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Cycle) > 0 {
		fmt.Printf("cycle: %s\n", strings.Join(res.Cycle, " -> "))
		return nil
	}
	for _, spec := range res.Order {
		fmt.Println(spec)
	}
	return nil
}
