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

	"github.com/binaek/cling"
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/engine"
	"github.com/sentrie-sh/esmrt/host"
	"github.com/sentrie-sh/esmrt/promise"
	"github.com/sentrie-sh/esmrt/trace"
)

func addRunCmd(cli *cling.CLI) {
	cli.WithCommand(
		cling.NewCommand("run", runCmd).
			WithArgument(cling.NewStringCmdInput("entry").
				WithDescription("Entry module specifier to link and evaluate").
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
			).
			WithFlag(cling.
				NewBoolCmdInput("trace").
				WithDefault(false).
				WithDescription("Print the link/evaluate trace tree as JSON").
				AsFlag(),
			),
	)
}

type runCmdArgs struct {
	Entry      string `cling-name:"entry"`
	ModuleRoot string `cling-name:"module-root"`
	Output     string `cling-name:"output"`
	Trace      bool   `cling-name:"trace"`
}

type runResult struct {
	Entry   string `json:"entry"`
	State   string `json:"state"`
	Value   any    `json:"value,omitempty"`
	Parked  int    `json:"parked,omitempty"`
	TraceTr any    `json:"trace,omitempty"`
}

func runCmd(ctx context.Context, args []string) error {
	input := runCmdArgs{}
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

	root, done := trace.New("run", input.Entry, nil, nil)

	ln, lnDone := trace.New("link", input.Entry, nil, nil)
	err = eng.Link(entry)
	lnDone()
	root.Attach(ln.SetErr(err))
	if err != nil {
		return errors.Wrapf(err, "link %q", input.Entry)
	}

	en, enDone := trace.New("evaluate", input.Entry, nil, nil)
	p, err := eng.Evaluate(entry)
	enDone()
	root.Attach(en.SetErr(err))
	if err != nil {
		return errors.Wrapf(err, "evaluate %q", input.Entry)
	}
	done()

	res := runResult{
		Entry:  input.Entry,
		State:  p.State().String(),
		Parked: eng.Parked(),
	}
	if p.State() != promise.Pending && p.Value() != nil {
		res.Value = p.Value().Export()
	}
	if input.Trace {
		res.TraceTr = root
	}

	if input.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("%s: %s\n", res.Entry, res.State)
	if res.Value != nil {
		fmt.Printf("value: %v\n", res.Value)
	}
	if res.Parked > 0 {
		fmt.Printf("parked computations: %d (pending host promises)\n", res.Parked)
	}
	if p.State() == promise.Rejected {
		return errors.Errorf("module %q rejected: %v", input.Entry, res.Value)
	}
	return nil
}

func setupEngine(ctx context.Context, moduleRoot string) (*engine.Engine, *host.Realm, error) {
	cfg, cfgErr := host.LoadConfig(ctx, moduleRoot)
	if cfgErr != nil {
		if !errors.Is(cfgErr, host.ErrManifestNotFound) {
			return nil, nil, cfgErr
		}
		cfg = host.DefaultConfig(moduleRoot)
	}

	eng, realm, _ := host.Bootstrap(cfg, host.ParseJSONModule)
	return eng, realm, nil
}
