// Package businessflow contains the core business logic and use cases for the query platform
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrPhoneAlreadyExists = errors.New("phone number already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrPhoneNotVerified   = errors.New("phone number has not been verified")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")

	// OTP-related errors
	ErrNoValidOTPFound   = errors.New("no valid OTP found")
	ErrInvalidOTPCode    = errors.New("invalid OTP code")
	ErrOTPExpired        = errors.New("OTP has expired")
	ErrOTPResendTooSoon  = errors.New("OTP was sent recently, wait before resending")
	ErrCacheNotAvailable = errors.New("cache not available")

	// Captcha errors
	ErrCaptchaRequired = errors.New("captcha challenge required")
	ErrCaptchaFailed   = errors.New("captcha verification failed")

	// Thread-related errors
	ErrThreadNotFound     = errors.New("thread not found")
	ErrThreadAccessDenied = errors.New("thread access denied")
	ErrEmptyThreadTitle   = errors.New("thread title cannot be empty")

	// Query engine errors
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskAccessDenied   = errors.New("task access denied")
	ErrEmptyQuestion      = errors.New("question cannot be empty")
	ErrQueryNotPermitted  = errors.New("user may not submit queries")
	ErrUnsafeSQLGenerated = errors.New("generated SQL is not a read-only statement")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsPhoneAlreadyExists(err error) bool {
	return errors.Is(err, ErrPhoneAlreadyExists)
}

func IsPhoneNotVerified(err error) bool {
	return errors.Is(err, ErrPhoneNotVerified)
}

func IsNoValidOTPFound(err error) bool {
	return errors.Is(err, ErrNoValidOTPFound)
}

func IsInvalidOTPCode(err error) bool {
	return errors.Is(err, ErrInvalidOTPCode)
}

func IsOTPExpired(err error) bool {
	return errors.Is(err, ErrOTPExpired)
}

func IsOTPResendTooSoon(err error) bool {
	return errors.Is(err, ErrOTPResendTooSoon)
}

func IsCaptchaRequired(err error) bool {
	return errors.Is(err, ErrCaptchaRequired)
}

func IsCaptchaFailed(err error) bool {
	return errors.Is(err, ErrCaptchaFailed)
}

func IsThreadNotFound(err error) bool {
	return errors.Is(err, ErrThreadNotFound)
}

func IsThreadAccessDenied(err error) bool {
	return errors.Is(err, ErrThreadAccessDenied)
}

func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

func IsTaskAccessDenied(err error) bool {
	return errors.Is(err, ErrTaskAccessDenied)
}

func IsQueryNotPermitted(err error) bool {
	return errors.Is(err, ErrQueryNotPermitted)
}

func IsInvalidRole(err error) bool {
	return errors.Is(err, ErrInvalidRole)
}

func IsInvalidPhoneNumber(err error) bool {
	return errors.Is(err, ErrInvalidPhoneNumber)
}

func IsEmptyThreadTitle(err error) bool {
	return errors.Is(err, ErrEmptyThreadTitle)
}

func IsEmptyQuestion(err error) bool {
	return errors.Is(err, ErrEmptyQuestion)
}
