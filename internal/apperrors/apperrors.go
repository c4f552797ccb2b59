// Package apperrors defines the error taxonomy shared by the ingestion
// endpoints and the chat session handler. Every user-visible failure is an
// *Error with a stable title and a short detail string; the underlying cause
// is kept for logs via Unwrap but is never serialised to clients.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping and turn handling.
type Kind int

const (
	// KindUnsupported marks a backend choice outside the closed enumeration.
	KindUnsupported Kind = iota
	// KindAccessDenied marks a failed entitlement or token check.
	KindAccessDenied
	// KindUpstream marks an embedding/LLM/transcription provider failure.
	KindUpstream
	// KindStore marks a vector store connection, write, or query failure.
	KindStore
	// KindMalformed marks invalid client input (bad CSV, missing fields).
	KindMalformed
)

// Error is the typed error carried across component boundaries.
type Error struct {
	// Kind selects the taxonomy bucket.
	Kind Kind
	// Title is the stable, user-visible error name (e.g. "Database Error").
	Title string
	// Detail is a short human-readable description, safe to show clients.
	Detail string
	// Err is the wrapped cause, for logs only.
	Err error

	// Fatal marks errors that must terminate a chat session (e.g. loss of
	// the vector store connection) instead of being reported per turn.
	Fatal bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the status code used by the REST surface.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnsupported, KindMalformed:
		return http.StatusUnprocessableEntity
	case KindAccessDenied:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Unsupported reports a technology choice outside the closed enumeration.
// Rejected before any side effect.
func Unsupported(detail string) *Error {
	return &Error{Kind: KindUnsupported, Title: "Unsupported Technology", Detail: detail}
}

// AccessDenied reports a failed entitlement check.
func AccessDenied(detail string) *Error {
	return &Error{Kind: KindAccessDenied, Title: "Permission Denied", Detail: detail}
}

// Upstream wraps an embedding, LLM, or transcription provider failure.
func Upstream(detail string, cause error) *Error {
	return &Error{Kind: KindUpstream, Title: "Upstream Provider Error", Detail: detail, Err: cause}
}

// Store wraps a vector store failure. fatal marks failures that must close
// an active chat session.
func Store(detail string, cause error, fatal bool) *Error {
	return &Error{Kind: KindStore, Title: "Database Error", Detail: detail, Err: cause, Fatal: fatal}
}

// Malformed reports invalid client input.
func Malformed(detail string) *Error {
	return &Error{Kind: KindMalformed, Title: "Unprocessable Data", Detail: detail}
}

// From extracts the *Error from err's chain. When err is not classified it
// returns a generic StoreError-kinded wrapper so callers always have a
// stable title and status to report.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindStore, Title: "Internal Error", Detail: "something went wrong on our side", Err: err}
}

// IsFatal reports whether err carries a session-fatal classification.
func IsFatal(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Fatal
}
