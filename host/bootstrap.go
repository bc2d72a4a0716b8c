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

package host

import (
	"github.com/sentrie-sh/esmrt/engine"
)

// Bootstrap wires a realm, the reference evaluator, and an engine together
// in the right order: the engine owns the graph, the realm registers
// modules into it, and the evaluator calls back into the engine for
// function bodies and namespaces. Engine switches from cfg are applied
// before any extra opts.
func Bootstrap(cfg *Config, parse ParseFunc, opts ...engine.Option) (*engine.Engine, *Realm, *GojaEvaluator) {
	realm := NewRealm(cfg, parse)
	ev := NewEvaluator(realm)

	all := []engine.Option{
		engine.WithDebug(cfg.Debug),
		engine.WithFastResolve(!cfg.DisableFastResolve),
	}
	all = append(all, opts...)

	eng := engine.New(realm.Runtime(), realm, ev, all...)
	ev.Bind(eng)
	realm.Bind(eng.Graph())
	return eng, realm, ev
}
