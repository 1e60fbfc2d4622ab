// Package services defines the business logic for recipes and recipe search.
// This file centralizes the service-level error model so that service methods
// return predictable, classified failures and handlers can map them to HTTP
// results with a single switch on the error kind.
//
// Translation into user-facing status codes is performed at the handler
// layer. The storage cause, when there is one, stays reachable through
// errors.Unwrap for server-side logs but is never part of Error().
package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindCreationFailed
	KindUpdateFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCreationFailed:
		return "creation_failed"
	case KindUpdateFailed:
		return "update_failed"
	default:
		return "unknown"
	}
}

// Error is a classified service error. Two *Error values match under
// errors.Is when their kinds are equal, so the sentinels below can be used
// to test a whole class of failures.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

const msgIntegrity = "requested changes violate recipe data"

// Sentinel errors, one per kind.
var (
	// ErrInvalidCriteria is returned by Search when the criteria fail validation.
	ErrInvalidCriteria = &Error{Kind: KindValidation, Msg: "invalid search criteria"}

	// ErrRecipeNotFound is returned when a lookup, listing or search yields nothing.
	ErrRecipeNotFound = &Error{Kind: KindNotFound, Msg: "no recipe found"}

	// ErrCreationFailed is returned when a create violates a storage constraint.
	ErrCreationFailed = &Error{Kind: KindCreationFailed, Msg: msgIntegrity}

	// ErrUpdateFailed is returned when an update violates a storage constraint.
	ErrUpdateFailed = &Error{Kind: KindUpdateFailed, Msg: msgIntegrity}
)

func invalidCriteria(cause error) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf("invalid search criteria: %v", cause), Err: cause}
}

func invalidRecipe(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func recipeNotFound(id uint) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("recipe with id = [%d] not found", id)}
}

func creationFailed(cause error) error {
	return &Error{Kind: KindCreationFailed, Msg: msgIntegrity, Err: cause}
}

func updateFailed(cause error) error {
	return &Error{Kind: KindUpdateFailed, Msg: msgIntegrity, Err: cause}
}
