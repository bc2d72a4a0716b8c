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

// Package host is a filesystem-backed reference implementation of the
// narrow contract the module graph consumes from its embedder: module
// resolution, realm error constructors, and the continuation queue. It
// also carries the manifest loading and source transpilation an embedder
// needs before any of the core algorithms can run. Everything here is
// swappable: the core only sees the module.Host and engine.Evaluator
// interfaces.
package host

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/module"
	"github.com/sentrie-sh/esmrt/promise"
	"github.com/sentrie-sh/esmrt/tokens"
	"github.com/sentrie-sh/esmrt/xerr"
)

// ParseFunc turns transpiled module source into the module AST. The parser
// itself lives outside this repository; hosts inject whichever one they
// carry.
type ParseFunc func(specifier string, source string) (*ast.Module, error)

// resolutionKey memoizes ResolveImportedModule per (referrer, specifier):
// the contract requires the same record instance for the same pair.
type resolutionKey struct {
	referrer  string
	specifier string
}

// Realm implements module.Host over a directory tree rooted at the
// manifest's location. Module records are registered by canonical path, so
// two specifiers naming the same file share one record.
type Realm struct {
	cfg   *Config
	rt    *goja.Runtime
	queue *promise.Queue
	parse ParseFunc

	graph *module.Graph

	modules     map[string]*module.CyclicModuleRecord
	resolutions map[resolutionKey]*module.CyclicModuleRecord
}

// NewRealm builds a realm over cfg with its own goja runtime and
// continuation queue. parse may be nil when every module is registered
// up front with AddParsedModule.
func NewRealm(cfg *Config, parse ParseFunc) *Realm {
	return &Realm{
		cfg:         cfg,
		rt:          goja.New(),
		queue:       promise.NewQueue(),
		parse:       parse,
		modules:     make(map[string]*module.CyclicModuleRecord),
		resolutions: make(map[resolutionKey]*module.CyclicModuleRecord),
	}
}

// Bind attaches the graph the realm registers loaded modules into. Called
// once by the embedder after the engine (which owns the graph) exists.
func (r *Realm) Bind(g *module.Graph) { r.graph = g }

// Config returns the realm's manifest.
func (r *Realm) Config() *Config { return r.cfg }

// Runtime returns the realm's goja runtime.
func (r *Realm) Runtime() *goja.Runtime { return r.rt }

// Queue returns the realm's continuation queue.
func (r *Realm) Queue() *promise.Queue { return r.queue }

// NewTypeError builds a realm TypeError value.
func (r *Realm) NewTypeError(message string) goja.Value {
	return r.rt.NewTypeError(message)
}

// NewRangeError builds a realm RangeError value.
func (r *Realm) NewRangeError(message string) goja.Value {
	return r.newIntrinsicError("RangeError", message)
}

// NewSyntaxError builds a realm SyntaxError value.
func (r *Realm) NewSyntaxError(message string) goja.Value {
	return r.newIntrinsicError("SyntaxError", message)
}

func (r *Realm) newIntrinsicError(ctor string, message string) goja.Value {
	ctorVal := r.rt.Get(ctor)
	if ctorVal == nil {
		slog.Error("realm intrinsic missing", slog.String("constructor", ctor))
		return r.rt.NewTypeError(message)
	}
	obj, err := r.rt.New(ctorVal, r.rt.ToValue(message))
	if err != nil {
		return r.rt.NewTypeError(message)
	}
	return obj
}

// AddParsedModule registers an already-parsed module under its specifier
// (tests and embedders that run their own front end). The specifier is
// stored as given; relative resolution against it still works because
// canonicalization is purely lexical.
func (r *Realm) AddParsedModule(m *ast.Module) (*module.CyclicModuleRecord, error) {
	if r.graph == nil {
		return nil, xerr.ErrInvariant("realm has no module graph bound")
	}
	if _, exists := r.modules[m.Specifier]; exists {
		return nil, xerr.ErrInvariant("module %q registered twice", m.Specifier)
	}
	rec := r.graph.AddModule(m.Specifier, m.Body, m.ImportEntries, m.LocalExportEntries, m.IndirectExportEntries, m.StarExportEntries, m.HasTLA)
	r.modules[m.Specifier] = rec
	return rec, nil
}

// ResolveImportedModule implements the host resolution contract: the same
// (referrer, specifier) pair always yields the same record instance, and
// failure surfaces as an error the engine maps to a TypeError.
func (r *Realm) ResolveImportedModule(referrer *module.CyclicModuleRecord, specifier string) (*module.CyclicModuleRecord, error) {
	key := resolutionKey{specifier: specifier}
	if referrer != nil {
		key.referrer = referrer.Specifier
	}
	if rec, ok := r.resolutions[key]; ok {
		return rec, nil
	}

	canonical, err := r.canonicalize(key.referrer, specifier)
	if err != nil {
		return nil, err
	}

	rec, ok := r.modules[canonical]
	if !ok {
		rec, err = r.loadModule(canonical)
		if err != nil {
			return nil, err
		}
	}

	r.resolutions[key] = rec
	return rec, nil
}

// canonicalize maps a specifier to the registry key: relative specifiers
// resolve lexically against the referrer, bare specifiers go through the
// versioned module directory, and anything already registered verbatim is
// kept as-is.
func (r *Realm) canonicalize(referrer string, specifier string) (string, error) {
	if _, ok := r.modules[specifier]; ok {
		return specifier, nil
	}

	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		base := "."
		if referrer != "" {
			base = filepath.Dir(referrer)
		}
		return filepath.Clean(filepath.Join(base, specifier)), nil
	}

	return r.resolveBare(specifier)
}

// loadModule reads, transpiles, and parses the module at canonical
// (resolved against the manifest location when relative), then registers
// it in the graph.
func (r *Realm) loadModule(canonical string) (*module.CyclicModuleRecord, error) {
	if r.parse == nil {
		return nil, xerr.ErrType(tokens.Range{File: canonical}, "unresolvable module %q: realm has no parser", canonical)
	}
	if r.graph == nil {
		return nil, xerr.ErrInvariant("realm has no module graph bound")
	}

	path := canonical
	if !filepath.IsAbs(path) && r.cfg != nil {
		path = filepath.Join(r.cfg.Location, canonical)
	}
	path, err := locateSourceFile(path)
	if err != nil {
		return nil, xerr.ErrType(tokens.Range{File: canonical}, "cannot resolve module %q: %s", canonical, err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read module %q", canonical)
	}
	source := string(b)

	if needsTranspile(path) {
		res, err := TranspileModule(path, source)
		if err != nil {
			return nil, errors.Wrapf(err, "transpile module %q", canonical)
		}
		source = res.Code
	}

	parsed, err := r.parse(canonical, source)
	if err != nil {
		return nil, errors.Wrapf(err, "parse module %q", canonical)
	}
	parsed.Specifier = canonical

	return r.AddParsedModule(parsed)
}

// locateSourceFile finds the on-disk file for a canonical module path,
// trying the path verbatim and then the supported source extensions.
func locateSourceFile(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	for _, ext := range []string{".js", ".mjs", ".ts", ".mts", ".tsx", ".jsx", ".json"} {
		if info, err := os.Stat(path + ext); err == nil && !info.IsDir() {
			return path + ext, nil
		}
	}
	return "", errors.Errorf("no source file for %q", path)
}
