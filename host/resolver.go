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
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// moduleDirName is the directory under the manifest location that holds
// installed bare modules, one directory per name@version.
const moduleDirName = "esm_modules"

// versionedCandidate pairs an on-disk module directory with its parsed
// version.
type versionedCandidate struct {
	dir     string
	version *semver.Version
}

// resolveBare maps a bare specifier to a canonical path under the module
// directory. A specifier may pin a version range with an @ suffix
// ("logger@^1.2"); the highest installed version satisfying the range
// wins. Without a range, the highest installed version wins, and a plain
// directory matching the bare name verbatim beats both.
func (r *Realm) resolveBare(specifier string) (string, error) {
	if r.cfg == nil {
		return specifier, nil
	}

	name, rng := splitVersionRange(specifier)

	base := filepath.Join(r.cfg.Location, moduleDirName)
	if rng == "" {
		// a verbatim directory or file short-circuits version selection
		plain := filepath.Join(base, name)
		if _, err := os.Stat(plain); err == nil {
			return plain, nil
		}
		if _, err := locateSourceFile(plain); err == nil {
			return plain, nil
		}
	}

	candidates, err := installedVersions(base, name)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		// not installed as a bare module: treat as manifest-relative
		return specifier, nil
	}

	if rng != "" {
		constraint, err := semver.NewConstraint(rng)
		if err != nil {
			return "", errors.Wrapf(err, "bad version range in specifier %q", specifier)
		}
		matching := candidates[:0]
		for _, c := range candidates {
			if constraint.Check(c.version) {
				matching = append(matching, c)
			}
		}
		candidates = matching
		if len(candidates) == 0 {
			return "", errors.Errorf("no installed version of %q satisfies %q", name, rng)
		}
	}

	slices.SortFunc(candidates, func(a, b versionedCandidate) int {
		return a.version.Compare(b.version)
	})
	return candidates[len(candidates)-1].dir, nil
}

// splitVersionRange cuts a "name@range" specifier. The @ in a scoped name
// ("@org/pkg") is not a range separator.
func splitVersionRange(specifier string) (name string, rng string) {
	at := strings.LastIndex(specifier, "@")
	if at <= 0 {
		return specifier, ""
	}
	return specifier[:at], specifier[at+1:]
}

// installedVersions lists the name@version directories for name under
// base, skipping entries whose version suffix does not parse.
func installedVersions(base string, name string) ([]versionedCandidate, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read module directory %q", base)
	}

	var out []versionedCandidate
	prefix := name + "@"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(e.Name(), prefix))
		if err != nil {
			continue
		}
		out = append(out, versionedCandidate{dir: filepath.Join(base, e.Name()), version: v})
	}
	return out, nil
}
