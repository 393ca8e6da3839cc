package router

import "net/http"

// Kind is the error taxonomy from spec.md §7, each mapped to one HTTP
// status code by statusFor.
type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindRouting
	KindSize
	KindForward
	KindPersistence
)

// Error is a typed router error carrying enough context to both answer
// the HTTP request and populate the structured log fields spec.md §7
// requires (error_type, error_status).
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, err: cause}
}

// statusFor maps an error Kind to the HTTP status spec.md §7 assigns it.
func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRouting:
		return http.StatusNotFound
	case KindSize:
		return http.StatusRequestEntityTooLarge
	case KindForward:
		return http.StatusAccepted
	case KindPersistence:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// typeName renders the Kind for the error_type log field.
func (k Kind) typeName() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindRouting:
		return "RoutingError"
	case KindSize:
		return "SizeError"
	case KindForward:
		return "ForwardError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}
