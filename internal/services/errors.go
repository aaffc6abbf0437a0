package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrMissingFields        = fmt.Errorf("%w: missing required fields", ErrValidation)
	ErrInvalidEmail         = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrMissingPayment       = fmt.Errorf("%w: missing payment details", ErrValidation)
	ErrQuotaExceeded        = errors.New("too many requests")
	ErrCaptchaFailed        = errors.New("captcha verification failed")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductNotEligible   = errors.New("product requires purchase")
	ErrCodeExpiredOrMissing = errors.New("invalid or expired verification code")
	ErrAttemptsExceeded     = errors.New("maximum verification attempts exceeded")
	ErrCodeMismatch         = errors.New("invalid verification code")
	ErrStorageSigning       = errors.New("failed to sign download reference")
	ErrEmailDispatch        = errors.New("failed to send email")
	ErrCodeGeneration       = errors.New("failed to generate verification code")

	ErrPaymentNotConfigured = errors.New("payment system not configured")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductIsFree        = errors.New("product is free")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
	ErrGatewayFailed        = errors.New("payment gateway request failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// CodeMismatchError carries the attempts left after a wrong code.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("%s (%d attempts remaining)", ErrCodeMismatch, e.Remaining)
}

func (e *CodeMismatchError) Is(target error) bool {
	return target == ErrCodeMismatch
}

// DeliveryError is returned when a download link was produced but the email carrying it failed.
// Callers must still hand Link to the client.
type DeliveryError struct {
	Link string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEmailDispatch, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrEmailDispatch, e.Err}
}
