// Package apperr defines the domain error taxonomy shared by the ledgers, the
// shift state machine and the sale processor. Every error carries a Kind that
// callers match with errors.Is, plus the numeric context the cashier needs to
// correct and resubmit (requested credit vs. remaining limit, stock on hand...).
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindInvalidMovement   Kind = "invalid_movement"
	KindCreditDenied      Kind = "credit_denied"
	KindInsufficientStock Kind = "insufficient_stock"
	KindShiftClosed       Kind = "shift_closed"
	KindAlreadyClosed     Kind = "already_closed"
	KindInvalidCount      Kind = "invalid_count"
	KindResourceConflict  Kind = "resource_conflict"
	KindNotFound          Kind = "not_found"
	KindInvalidRequest    Kind = "invalid_request"
	KindDuplicate         Kind = "duplicate"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrInvalidMovement   = &Error{Kind: KindInvalidMovement}
	ErrCreditDenied      = &Error{Kind: KindCreditDenied}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrShiftClosed       = &Error{Kind: KindShiftClosed}
	ErrAlreadyClosed     = &Error{Kind: KindAlreadyClosed}
	ErrInvalidCount      = &Error{Kind: KindInvalidCount}
	ErrResourceConflict  = &Error{Kind: KindResourceConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
)

// Error is a classified, user-presentable failure.
type Error struct {
	Kind    Kind
	Msg     string
	Context map[string]any
	cause   error
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without hiding it from errors.Unwrap.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// With attaches a context value and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
