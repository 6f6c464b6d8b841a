package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/iliyamo/tutor-marketplace/internal/repository"
)

// Kind classifies service failures for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// HTTPStatus maps a kind onto the status code the API answers with. State
// conflicts are reported as bad requests carrying the reason.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func errValidation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }
func errForbidden(msg string) error  { return &Error{Kind: KindForbidden, Msg: msg} }
func errNotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }
func errConflict(msg string) error   { return &Error{Kind: KindConflict, Msg: msg} }

func errUpstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

func errInternal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// storeErr translates repository sentinels; anything else is internal.
func storeErr(what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errNotFound(what + " not found")
	case errors.Is(err, repository.ErrForbidden):
		return errForbidden("forbidden")
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrDuplicate):
		return errConflict(what + " already exists")
	default:
		return errInternal("load "+what, err)
	}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
