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

package ast

// NamespaceImportName is the importName sentinel for `import * as ns`.
const NamespaceImportName = "*"

// NamespaceBindingName is the ResolvedBinding.BindingName sentinel for a
// namespace re-export (`export * as ns`).
const NamespaceBindingName = "*namespace*"

// ImportEntry is an ImportEntry Record: (moduleRequest, importName,
// localName). importName may be NamespaceImportName for a namespace
// import.
type ImportEntry struct {
	ModuleRequest string
	ImportName    string
	LocalName     string
}

// ExportEntry covers all three export shapes:
//   - local exports carry LocalName
//   - indirect exports carry ModuleRequest + ImportName
//   - star exports carry only ModuleRequest, with ExportName == "*"
type ExportEntry struct {
	ExportName    string
	ModuleRequest string // empty for local exports
	ImportName    string // empty unless indirect
	LocalName     string // empty unless local
}

func (e ExportEntry) IsStar() bool     { return e.ExportName == "*" && e.ModuleRequest != "" }
func (e ExportEntry) IsLocal() bool    { return e.ModuleRequest == "" }
func (e ExportEntry) IsIndirect() bool { return e.ModuleRequest != "" && e.ExportName != "*" }
