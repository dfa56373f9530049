package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindStorage
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream_unavailable"
	case KindStorage:
		return "storage"
	case KindInvariant:
		return "invariant_violation"
	default:
		return "internal"
	}
}

// Error is the error type every service returns. Message is safe to show to
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrAlreadyLiked     = &Error{Kind: KindConflict, Code: "already_liked", Message: "post already liked"}
	ErrNotLiked         = &Error{Kind: KindConflict, Code: "not_liked", Message: "post not liked"}
	ErrAlreadyFollowing = &Error{Kind: KindConflict, Code: "already_following", Message: "already following"}
	ErrNotFollowing     = &Error{Kind: KindConflict, Code: "not_following", Message: "not following"}
	ErrUsernameTaken    = &Error{Kind: KindConflict, Code: "username_taken", Message: "username already taken"}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Code: entity + "_not_found", Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Upstream(service string, err error) error {
	return &Error{Kind: KindUpstream, Code: "upstream_unavailable", Message: service + " unavailable", Err: err}
}

func Storage(err error) error {
	return &Error{Kind: KindStorage, Code: "storage_error", Message: "image storage failed", Err: err}
}

func Invariant(format string, args ...any) error {
	return &Error{Kind: KindInvariant, Code: "invariant_violation", Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusServiceUnavailable
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message and code a client may see.
func Public(err error) (message, code string) {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error", "internal_error"
	}
	if e.Kind == KindInternal || e.Kind == KindInvariant {
		return "internal error", e.Code
	}
	return e.Message, e.Code
}
