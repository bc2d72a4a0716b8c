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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

type TranspileResult struct {
	Code string
	Map  string
}

func isTS(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".ts" || ext == ".tsx" || ext == ".mts" || ext == ".cts"
}

func needsTranspile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return isTS(path) || ext == ".jsx"
}

// TranspileModule lowers a .ts/.tsx/.jsx module source to plain ES2020
// text before it is handed to the parser. Format stays ESM: import/export
// statements must survive for entry classification.
func TranspileModule(path string, source string) (TranspileResult, error) {
	loader := api.LoaderJS
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		loader = api.LoaderTS
	case ".tsx":
		loader = api.LoaderTSX
	case ".jsx":
		loader = api.LoaderJSX
	}

	res := api.Transform(source, api.TransformOptions{
		Loader:            loader,
		Target:            api.ES2020,
		Format:            api.FormatESModule,
		Platform:          api.PlatformNeutral,
		Sourcemap:         api.SourceMapInline,
		LegalComments:     api.LegalCommentsNone,
		MinifyWhitespace:  false,
		MinifyIdentifiers: false,
		MinifySyntax:      false,
		KeepNames:         false,
		SourcesContent:    api.SourcesContentExclude,
		Charset:           api.CharsetUTF8,
	})

	if len(res.Errors) > 0 {
		return TranspileResult{}, fmt.Errorf("esbuild: %v", res.Errors[0].Text)
	}
	return TranspileResult{Code: string(res.Code), Map: string(res.Map)}, nil
}
