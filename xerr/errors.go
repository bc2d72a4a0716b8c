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

// Package xerr holds the four error kinds the engine distinguishes:
// SyntaxError, TypeError/RangeError, JavaScriptException, and
// InvariantViolation. Each is a concrete type so callers can tell them
// apart with errors.As instead of string sniffing.
package xerr

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/tokens"
)

// SyntaxErrorKind is raised during InitializeEnvironment for unresolved
// or ambiguous imports.
type SyntaxErrorKind struct {
	At tokens.Range
}

func (e SyntaxErrorKind) Error() string { return "syntax error" }

func ErrSyntax(at tokens.Range, format string, args ...any) error {
	return errors.Wrapf(SyntaxErrorKind{At: at}, format, args...)
}

// TypeErrorKind and RangeErrorKind are raised by expression evaluation
// and converted to Throw completions at statement boundaries.
type TypeErrorKind struct{ At tokens.Range }

func (e TypeErrorKind) Error() string { return "type error" }

func ErrType(at tokens.Range, format string, args ...any) error {
	return errors.Wrapf(TypeErrorKind{At: at}, format, args...)
}

type RangeErrorKind struct{ At tokens.Range }

func (e RangeErrorKind) Error() string { return "range error" }

func ErrRange(at tokens.Range, format string, args ...any) error {
	return errors.Wrapf(RangeErrorKind{At: at}, format, args...)
}

// JavaScriptException wraps a JS-visible throw that already carries a
// value. It propagates through completions, gets settled into capabilities,
// or surfaces out of evaluate via a rejected promise.
type JavaScriptException struct {
	Value tokens.Range // source location the throw occurred at
	goja  goja.Value
}

func (e JavaScriptException) Error() string {
	if e.goja == nil {
		return "uncaught exception"
	}
	return fmt.Sprintf("uncaught exception: %s", e.goja.String())
}

// ExceptionValue returns the carried JS value (the thrown error object).
func (e JavaScriptException) ExceptionValue() goja.Value { return e.goja }

func ErrJavaScriptException(v goja.Value, at tokens.Range) error {
	return JavaScriptException{Value: at, goja: v}
}

// InvariantViolation marks an internal invariant failure (e.g. a module in
// an impossible status). It must abort the operation with a distinct fatal
// error distinguishable from JS exceptions; it is never silently recovered.
type InvariantViolation struct {
	What string
}

func (e InvariantViolation) Error() string {
	return "invariant violation: " + e.What
}

func ErrInvariant(format string, args ...any) error {
	return InvariantViolation{What: fmt.Sprintf(format, args...)}
}

// AsInvariant reports whether err is (or wraps) an InvariantViolation.
func AsInvariant(err error) (InvariantViolation, bool) {
	var iv InvariantViolation
	ok := errors.As(err, &iv)
	return iv, ok
}

// AsJavaScriptException reports whether err is (or wraps) a JavaScriptException.
func AsJavaScriptException(err error) (JavaScriptException, bool) {
	var je JavaScriptException
	ok := errors.As(err, &je)
	return je, ok
}
