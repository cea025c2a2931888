package models

import "fmt"

// AppError represents a classified application error.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes for the client state machine. Geolocation failures are never
// surfaced as returned errors; they are recorded for optional display only.
const (
	CodeAuthMissing           = "AUTH_MISSING"
	CodeRedirectLoopPrevented = "REDIRECT_LOOP_PREVENTED"
	CodeGeoPermissionDenied   = "GEO_PERMISSION_DENIED"
	CodeGeoTimeout            = "GEO_TIMEOUT"
	CodeGeoUnavailable        = "GEO_UNAVAILABLE"
	CodeFeedLoadFailed        = "FEED_LOAD_FAILED"
	CodeInteractionConflict   = "INTERACTION_CONFLICT"
	CodeInteractionFailed     = "INTERACTION_FAILED"
	CodeValidation            = "VALIDATION_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
)

// Predefined error constructors
func NewAuthMissingError(message string) *AppError {
	return &AppError{Code: CodeAuthMissing, Message: message}
}

func NewGeoError(code string, err error) *AppError {
	return &AppError{Code: code, Message: "geolocation unavailable", Err: err}
}

func NewFeedLoadError(message string, err error) *AppError {
	return &AppError{Code: CodeFeedLoadFailed, Message: message, Err: err}
}

func NewInteractionConflictError(postID string, kind InteractionKind) *AppError {
	return &AppError{
		Code:    CodeInteractionConflict,
		Message: fmt.Sprintf("toggle %s already pending for post %s", kind, postID),
	}
}

func NewInteractionFailedError(message string, err error) *AppError {
	return &AppError{Code: CodeInteractionFailed, Message: message, Err: err}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", Err: err}
}
