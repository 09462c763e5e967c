package rulebook

import (
	"errors"
	"fmt"
)

// Kind classifies a structural violation of a rulebook or of an answer set
// measured against a rulebook.
type Kind string

const (
	KindDuplicateName     Kind = "DUPLICATE_NAME"
	KindEmptyClass        Kind = "EMPTY_CLASS"
	KindMissingIdentifier Kind = "MISSING_IDENTIFIER"
	KindUnknownClass      Kind = "UNKNOWN_CLASS"
	KindUnknownQuestion   Kind = "UNKNOWN_QUESTION"
)

var (
	ErrDuplicateName     = errors.New("duplicate name")
	ErrEmptyClass        = errors.New("class declares no subclasses")
	ErrMissingIdentifier = errors.New("missing identifier")
	ErrUnknownClass      = errors.New("unknown class")
	ErrUnknownQuestion   = errors.New("unknown question")
)

var kindSentinels = map[Kind]error{
	KindDuplicateName:     ErrDuplicateName,
	KindEmptyClass:        ErrEmptyClass,
	KindMissingIdentifier: ErrMissingIdentifier,
	KindUnknownClass:      ErrUnknownClass,
	KindUnknownQuestion:   ErrUnknownQuestion,
}

// ValidationError reports one structural violation. Scope names where the
// violation sits ("rulebook", "class Street", ...) and Name is the offending
// identifier.
type ValidationError struct {
	Kind  Kind
	Scope string
	Name  string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Scope, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %s %q", e.Scope, kindSentinels[e.Kind], e.Name)
}

func (e *ValidationError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// ErrorCode lets the worker error handler map the violation onto its
// standard error codes without importing this package.
func (e *ValidationError) ErrorCode() string {
	return string(e.Kind)
}
