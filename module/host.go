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

package module

import (
	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/promise"
)

// Host is the narrow contract the module graph consumes from its
// embedder (HostResolveImportedModule plus realm access).
// ResolveImportedModule must return the same *CyclicModuleRecord
// instance for the same (referrer, specifier) pair.
type Host interface {
	ResolveImportedModule(referrer *CyclicModuleRecord, specifier string) (*CyclicModuleRecord, error)

	NewTypeError(message string) goja.Value
	NewRangeError(message string) goja.Value
	NewSyntaxError(message string) goja.Value

	// Runtime returns the realm's goja.Runtime, used to build the
	// namespace exotic object and fresh promise capabilities.
	Runtime() *goja.Runtime

	Queue() *promise.Queue
}

// Executor is the synchronous/async statement-list body runner a module
// delegates to. The statement executor and await bridge live in the
// engine package; Executor is how the module graph reaches them without
// an import cycle. cap is non-nil exactly when the call is driven by
// ExecuteAsync.
type Executor interface {
	Execute(m *CyclicModuleRecord, cap *promise.Capability) completion.Record
}
