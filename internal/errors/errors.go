package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kinds are the machine readable part of an AppError, sent to the client
// next to the message.
const (
	KindBadRequest          = "BAD_REQUEST"
	KindUnauthorized        = "UNAUTHORIZED"
	KindForbidden           = "FORBIDDEN"
	KindNotFound            = "NOT_FOUND"
	KindConflict            = "CONFLICT"
	KindUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	KindValidation          = "VALIDATION_FAILED"
	KindInternal            = "INTERNAL"

	// raised by document actions
	KindContentUnavailable = "CONTENT_UNAVAILABLE"
	KindShareLinkError     = "SHARE_LINK_ERROR"
	KindFetchFailed        = "FETCH_FAILED"
)

// AppError represents an application error
type AppError struct {
	Code    int               // HTTP status code
	Kind    string            // Error kind
	Message string            // Error message
	Fields  map[string]string // Per-field validation messages
	Err     error             // Original error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the original error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Kind, so &AppError{Kind: KindNotFound} works as a target
// for errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Kind == "" {
		return false
	}
	return t.Kind == e.Kind
}

// WithMessage returns a copy of the AppError with a custom message
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: msg,
		Fields:  e.Fields,
		Err:     e.Err,
	}
}

// NewAppError creates a new application error
func NewAppError(code int, kind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Common error types
var (
	ErrInvalidInput = func(err error) *AppError {
		return NewAppError(http.StatusBadRequest, KindBadRequest, "Invalid input", err)
	}
	ErrUnauthorized = func(err error) *AppError {
		return NewAppError(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", err)
	}
	ErrForbidden = func(err error) *AppError {
		return NewAppError(http.StatusForbidden, KindForbidden, "Forbidden", err)
	}
	ErrNotFound = func(err error) *AppError {
		return NewAppError(http.StatusNotFound, KindNotFound, "Resource not found", err)
	}
	ErrConflict = func(err error) *AppError {
		return NewAppError(http.StatusConflict, KindConflict, "Conflict", err)
	}
	ErrUnprocessableEntity = func(err error) *AppError {
		return NewAppError(http.StatusUnprocessableEntity, KindUnprocessableEntity, "Unprocessable entity", err)
	}
	ErrInternalServer = func(err error) *AppError {
		return NewAppError(http.StatusInternalServerError, KindInternal, "Internal server error", err)
	}

	// ErrContentUnavailable is returned when a document has no binary to hand out.
	ErrContentUnavailable = func(err error) *AppError {
		return NewAppError(http.StatusUnprocessableEntity, KindContentUnavailable, "no-document-available", err)
	}
	ErrFetchFailed = func(err error) *AppError {
		return NewAppError(http.StatusBadGateway, KindFetchFailed, "an-error-occurred-while-downloading-your-document", err)
	}
)

// ErrShareLink wraps a failed share link request. A client error from the
// cause, e.g. forbidden, keeps its status.
func ErrShareLink(err error) *AppError {
	code := http.StatusBadGateway
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
		code = appErr.Code
	}
	return NewAppError(code, KindShareLinkError, "an-error-occurred-while-creating-share-link", err)
}

// NewValidationError flattens validator errors into a field -> rule map.
func NewValidationError(err error) *AppError {
	appErr := NewAppError(http.StatusUnprocessableEntity, KindValidation, "Validation failed", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		appErr.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			appErr.Fields[strings.ToLower(fe.Field())] = describe(fe)
		}
	}
	return appErr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return "is invalid"
}
