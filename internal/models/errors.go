package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound                  = "NOT_FOUND"
	CodeValidation                = "VALIDATION_ERROR"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeConflict                  = "CONFLICT"
	CodeInternal                  = "INTERNAL_ERROR"
	CodeServiceUnavailable        = "SERVICE_UNAVAILABLE"
	CodeAlreadyRequestedOrFriends = "ALREADY_REQUESTED_OR_FRIENDS"
	CodeNoSuccessor               = "NO_SUCCESSOR"
	CodeInvalidVoteType           = "INVALID_VOTE_TYPE"
	CodeOTPExpired                = "EXPIRED"
	CodeIncorrectOTP              = "INCORRECT_OTP"
	CodeRateLimited               = "RATE_LIMITED"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
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

// NewAppError builds an AppError with an arbitrary code.
func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewNotFoundError names the missing row, e.g. "Community with ID 7 not found".
func NewNotFoundError(resource string, id any) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s with ID %v not found", resource, id))
}

func NewValidationError(message string) *AppError   { return NewAppError(CodeValidation, message) }
func NewUnauthorizedError(message string) *AppError { return NewAppError(CodeUnauthorized, message) }
func NewForbiddenError(message string) *AppError    { return NewAppError(CodeForbidden, message) }
func NewConflictError(message string) *AppError     { return NewAppError(CodeConflict, message) }

// NewUnavailableError marks an optional backend (S3, Mongo, Gemini, Brevo) as down.
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{Code: CodeServiceUnavailable, Message: message, Err: err}
}

// NewInternalError hides err behind a generic message; RespondWithError never echoes it.
func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// RespondWithError creates a standardized error response.
// Internal error details are never echoed back to the caller.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
