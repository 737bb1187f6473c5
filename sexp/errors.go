//
// Copyright (c) 2026, Přemysl Eric Janouch <p@janouch.name>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION
// OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN
// CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
//

package sexp

import (
	"errors"
	"fmt"
)

// --- Errors ------------------------------------------------------------------

// Kind distinguishes the failure modes of parsing and evaluation.
type Kind int

const (
	// Resource limits, enforced before any shared state changes.

	ErrInputTooLarge Kind = iota
	ErrRecursionLimit
	ErrListTooLarge
	ErrStringTooLong
	ErrIntegerTooLarge

	// Syntax errors.

	ErrEmptyExpression
	ErrUnterminatedString
	ErrUnterminatedEscape
	ErrInvalidEscape
	ErrInvalidControl
	ErrInvalidFloat
	ErrIntegerRange
	ErrMissingParen
	ErrBadSymbol
	ErrTrailingInput

	// Evaluation errors, short-circuiting the enclosing evaluation.

	ErrUnknownVariable
	ErrUnknownFunction
	ErrBadFunctionPosition
	ErrType
	ErrDivisionByZero
	ErrEmptyList
	ErrNotImplemented
	ErrNativeFailed
)

func (k Kind) String() string {
	switch k {
	case ErrInputTooLarge:
		return "input too large"
	case ErrRecursionLimit:
		return "recursion limit exceeded"
	case ErrListTooLarge:
		return "list too large"
	case ErrStringTooLong:
		return "string too long"
	case ErrIntegerTooLarge:
		return "integer too large"
	case ErrEmptyExpression:
		return "empty expression"
	case ErrUnterminatedString:
		return "unterminated string"
	case ErrUnterminatedEscape:
		return "unterminated escape"
	case ErrInvalidEscape:
		return "invalid escape sequence"
	case ErrInvalidControl:
		return "invalid control character"
	case ErrInvalidFloat:
		return "invalid float literal"
	case ErrIntegerRange:
		return "integer out of range"
	case ErrMissingParen:
		return "missing closing parenthesis"
	case ErrBadSymbol:
		return "bad symbol"
	case ErrTrailingInput:
		return "trailing input"
	case ErrUnknownVariable:
		return "unknown variable"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrBadFunctionPosition:
		return "invalid function position"
	case ErrType:
		return "type error"
	case ErrDivisionByZero:
		return "division by zero"
	case ErrEmptyList:
		return "empty list"
	case ErrNotImplemented:
		return "not implemented"
	case ErrNativeFailed:
		return "native function failed"
	}
	panic("unknown error kind")
}

// Error is the typed failure returned by all engine operations.
// Offset points into the source text for scanner errors, and is -1 otherwise.
type Error struct {
	Kind    Kind
	Offset  int
	Message string
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("at offset %d: %s", e.Offset, e.Message)
	}
	return e.Message
}

// NewError makes a typed engine error, as returned by native functions
// wishing to integrate with the evaluator's error classification.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return newError(kind, -1, format, args...)
}

func newError(kind Kind, offset int, format string,
	args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset,
		Message: fmt.Sprintf(format, args...)}
}

// IsKind tells whether an error is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
