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
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/constants"
)

var (
	ErrManifestNotFound   = errors.New("module manifest not found")
	ErrManifestLoadFailed = errors.New("module manifest load failed")
)

// Config is the on-disk module-root manifest (esmrt.module.toml). It pins
// the root directory module specifiers resolve against and the engine
// switches a host wants applied to every Engine it builds.
type Config struct {
	SchemaVersion string            `toml:"schema_version"`
	Name          string            `toml:"name"`
	Version       string            `toml:"version,omitempty"`
	Description   string            `toml:"description,omitempty"`
	Authors       map[string]string `toml:"authors,omitempty"`

	// Debug forces debug mode: every statement is observably executed and
	// the fast-resolve constant cache is suppressed.
	Debug bool `toml:"debug,omitempty"`

	// DisableFastResolve switches the constant-statement cache off without
	// the rest of debug mode.
	DisableFastResolve bool `toml:"disable_fast_resolve,omitempty"`

	Metadata map[string]any `toml:"metadata,omitempty"`

	// Location is the directory the manifest was found in; module
	// resolution is rooted here. Not serialized.
	Location string `toml:"-"`
}

// LoadConfig locates and parses the manifest for root, walking up the
// directory tree from root until a manifest file is found. Environment
// switches (ESMRT_DEBUG, ESMRT_DISABLE_FASTRESOLVE) override the file.
func LoadConfig(ctx context.Context, root string) (*Config, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	path, err := locateManifest(ctx, root)
	if err != nil {
		return nil, errors.Wrap(err, "locate module manifest")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read module manifest")
	}
	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(ErrManifestLoadFailed, err.Error())
	}
	c.Location = filepath.Dir(path)
	c.applyEnv()

	return &c, nil
}

// DefaultConfig builds an in-memory config rooted at dir for hosts that
// run without a manifest on disk (tests, one-shot CLI runs).
func DefaultConfig(dir string) *Config {
	c := &Config{
		SchemaVersion: "1",
		Name:          constants.AppName,
		Location:      dir,
	}
	c.applyEnv()
	return c
}

func (c *Config) applyEnv() {
	if _, ok := os.LookupEnv(constants.EnvDebug); ok {
		c.Debug = true
	}
	if _, ok := os.LookupEnv(constants.EnvFastPath); ok {
		c.DisableFastResolve = true
	}
}

func locateManifest(ctx context.Context, root string) (string, error) {
	if root == "/" {
		return "", errors.New("cannot search from filesystem root")
	}

	if len(strings.TrimSpace(root)) == 0 {
		return "", errors.New("root is empty")
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "failed to get absolute path to root")
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", errors.Wrap(err, "failed to locate module manifest")
	}

	if info.Name() == constants.ManifestName {
		return root, nil
	}

	if _, err := os.Stat(filepath.Join(root, constants.ManifestName)); err == nil {
		return filepath.Join(root, constants.ManifestName), nil
	}

	// walk up the directory tree till we find it or we reach root
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		root = filepath.Dir(root)
		if root == "/" || (runtime.GOOS == "windows" && strings.HasSuffix(root, `:\` /* a drive letter */)) {
			break
		}
		if _, err := os.Stat(filepath.Join(root, constants.ManifestName)); err == nil {
			return filepath.Join(root, constants.ManifestName), nil
		}
	}

	return "", ErrManifestNotFound
}
