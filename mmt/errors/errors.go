// Copyright 2024 The Myokit Go Authors
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

// Package errors defines shared error types for mmt packages.
//
// The engine distinguishes three classes of failure: integrity errors
// (malformed or cyclical trees), incompatible-unit errors (dimensional
// analysis failures), and numerical errors (runtime evaluation
// failures). Class membership is tested with [errors.Is] against the
// Err* sentinels, or with the Is* convenience predicates.
package errors

import (
	"errors"
	"fmt"

	"myokit.org/go/mmt/token"
)

// New is a convenience wrapper for [errors.New] in the core library.
func New(msg string) error {
	return errors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches the type to
// which target points, and if so, sets the target to its value and
// returns true.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Error classes.
var (
	ErrIntegrity        = errors.New("integrity error")
	ErrIncompatibleUnit = errors.New("incompatible units")
	ErrNumerical        = errors.New("numerical error")
)

// A Message holds an unformatted error message and its arguments.
type Message struct {
	format string
	args   []interface{}
}

// NewMessagef creates an error message for human consumption.
func NewMessagef(format string, args ...interface{}) Message {
	if false {
		// Let go vet know that we're expecting printf-like arguments.
		_ = fmt.Sprintf(format, args...)
	}
	return Message{format: format, args: args}
}

// Msg returns a printf-style format string and its arguments.
func (m *Message) Msg() (format string, args []interface{}) {
	return m.format, m.args
}

func (m *Message) Error() string {
	return fmt.Sprintf(m.format, m.args...)
}

// Error is the common interface of mmt errors.
type Error interface {
	// Position returns the source position of an error, or
	// token.NoPos for errors in trees that were built in memory.
	Position() token.Position

	// Error reports the error message.
	Error() string

	// Msg returns the unformatted error message and its arguments.
	Msg() (format string, args []interface{})
}

// A posError is a class-tagged error with an optional position.
type posError struct {
	Message
	class error
	pos   token.Position
}

func (e *posError) Position() token.Position { return e.pos }

func (e *posError) Is(target error) bool { return target == e.class }

var _ Error = (*posError)(nil)

// Newf creates an Error of the given class with a position and a
// printf-style message. The class should be one of the Err* sentinels.
func Newf(class error, pos token.Position, format string, args ...interface{}) Error {
	return &posError{
		Message: NewMessagef(format, args...),
		class:   class,
		pos:     pos,
	}
}

// Integrity creates a construction or validation error.
func Integrity(pos token.Position, format string, args ...interface{}) Error {
	return Newf(ErrIntegrity, pos, format, args...)
}

// IncompatibleUnit creates a unit inference error.
func IncompatibleUnit(pos token.Position, format string, args ...interface{}) Error {
	return Newf(ErrIncompatibleUnit, pos, format, args...)
}

// Numerical creates an evaluation error. The message is a prebuilt,
// possibly multiline diagnostic.
func Numerical(msg string) Error {
	return Newf(ErrNumerical, token.NoPos, "%s", msg)
}

// IsIntegrity reports whether err is an integrity error.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// IsIncompatibleUnit reports whether err is a unit error.
func IsIncompatibleUnit(err error) bool { return errors.Is(err, ErrIncompatibleUnit) }

// IsNumerical reports whether err is an evaluation error.
func IsNumerical(err error) bool { return errors.Is(err, ErrNumerical) }
