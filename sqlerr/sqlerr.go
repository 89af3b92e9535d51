// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlerr defines the error kinds that cross layer boundaries in
// quiver: binder, planner, executor and storage all wrap one of these
// sentinels with github.com/pkg/errors so that callers can recover the
// kind with errors.Cause while the message stays specific to the call
// site.
package sqlerr

import "github.com/pkg/errors"

// Binder errors.
var (
	ErrAmbiguousColumn  = errors.New("ambiguous column reference")
	ErrUnknownTable     = errors.New("unknown table")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrDuplicateTable   = errors.New("duplicate table name in FROM")
	ErrNotNullViolation = errors.New("NOT NULL constraint violation")
	ErrUnsupported      = errors.New("unsupported SQL construct")
)

// Planner errors.
var ErrPlan = errors.New("invalid plan")

// Executor expression errors.
var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrCast               = errors.New("cast error")
)

// Insert-path errors.
var ErrDuplicateKey = errors.New("duplicate key")

// Storage errors.
var (
	ErrIo          = errors.New("storage I/O error")
	ErrCorruptBlock = errors.New("corrupt block")
)

// ErrInternal indicates an invariant failure: a bug in quiver itself
// rather than a user-facing condition.
var ErrInternal = errors.New("internal error")

// Wrap attaches msg to cause while preserving errors.Cause(err) == cause
// for any sentinel declared in this package.
func Wrap(cause error, msg string) error {
	return errors.Wrap(cause, msg)
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}
