// Package errors provides the checkout error model.
// Every failure that leaves the SDK is a *CheckoutError carrying a stable code,
// a resolved HTTP status and a human readable message.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// ErrorCode is the stable, public failure category. Callers branch on it.
type ErrorCode string

const (
	CodeInvalidRequest        ErrorCode = "INVALID_PAYMENT_REQUEST"
	CodeNotConfigured         ErrorCode = "SDK_NOT_CONFIGURED"
	CodeMerchantFetchFailed   ErrorCode = "FETCH_BUSINESS_ERROR"
	CodeCustomerOperation     ErrorCode = "CUSTOMER_OPERATION_ERROR"
	CodeOrderCreationFailed   ErrorCode = "CREATE_ORDER_ERROR"
	CodePaymentCreationFailed ErrorCode = "CREATE_PAYMENT_ERROR"
	CodeRouterSubmission      ErrorCode = "PAYMENT_PROCESS_ERROR"
	CodeSecureTokenFailed     ErrorCode = "SECURE_TOKEN_ERROR"
	CodeCardFetchFailed       ErrorCode = "FETCH_CARDS_ERROR"
	CodeCardSaveFailed        ErrorCode = "SAVE_CARD_ERROR"
	CodeCardRemoveFailed      ErrorCode = "REMOVE_CARD_ERROR"
	CodePaymentMethodsFailed  ErrorCode = "FETCH_PAYMENT_METHODS_ERROR"
	CodeVerificationFailed    ErrorCode = "VERIFY_TRANSACTION_ERROR"
	CodeChallengeFailed       ErrorCode = "THREEDS_CHALLENGE_ERROR"
	CodeMountFailed           ErrorCode = "MOUNT_COLLECT_ERROR"
	CodeCollectFailed         ErrorCode = "COLLECT_FIELDS_ERROR"
	CodeContextNotMounted     ErrorCode = "CONTEXT_NOT_MOUNTED"
	CodeFingerprintFailed     ErrorCode = "DEVICE_FINGERPRINT_ERROR"
	CodeUnknown               ErrorCode = "UNKNOWN_ERROR"
)

// CheckoutError is the single public error kind of the SDK.
type CheckoutError struct {
	Code        ErrorCode      `json:"code"`
	StatusCode  int            `json:"status_code"`
	Message     string         `json:"message"`
	SystemError string         `json:"system_error,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	// Locked errors keep their code when wrapped again.
	Locked bool `json:"-"`

	cause error
}

// Error implements the error interface
func (e *CheckoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, e.StatusCode, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap returns the wrapped native error, if any.
func (e *CheckoutError) Unwrap() error {
	return e.cause
}

type options struct {
	status      int
	message     string
	systemError string
	details     map[string]any
	lock        bool
}

// Option customizes a CheckoutError at construction time.
type Option func(*options)

// WithStatus overrides the resolved HTTP status.
func WithStatus(status int) Option {
	return func(o *options) { o.status = status }
}

// WithMessage overrides the localized message.
func WithMessage(message string) Option {
	return func(o *options) { o.message = message }
}

// WithSystemError sets the backend system error code.
func WithSystemError(code string) Option {
	return func(o *options) { o.systemError = code }
}

// WithDetails attaches a diagnostic snapshot. Later calls merge into earlier ones.
func WithDetails(details map[string]any) Option {
	return func(o *options) {
		if len(details) == 0 {
			return
		}
		if o.details == nil {
			o.details = make(map[string]any, len(details))
		}
		maps.Copy(o.details, details)
	}
}

// Locked marks the error so that outer wrappers keep its code.
func Locked() Option {
	return func(o *options) { o.lock = true }
}

// New creates a CheckoutError without an underlying cause.
func New(code ErrorCode, opts ...Option) *CheckoutError {
	return build(nil, code, opts)
}

// Wrap converts any error into a CheckoutError with the given code.
// When err already is a locked CheckoutError its code, status, message and
// system error survive; only the details are merged.
func Wrap(err error, code ErrorCode, opts ...Option) *CheckoutError {
	if err == nil {
		return nil
	}

	if existing := GetCheckoutError(err); existing != nil && existing.Locked {
		o := collect(opts)
		merged := &CheckoutError{
			Code:        existing.Code,
			StatusCode:  existing.StatusCode,
			Message:     existing.Message,
			SystemError: existing.SystemError,
			Details:     mergeDetails(existing.Details, o.details),
			Locked:      true,
			cause:       existing.cause,
		}
		return merged
	}

	return build(err, code, opts)
}

func build(cause error, code ErrorCode, opts []Option) *CheckoutError {
	o := collect(opts)

	e := &CheckoutError{
		Code:        code,
		StatusCode:  resolveStatus(o.status, cause),
		Message:     resolveMessage(o.message, code),
		SystemError: o.systemError,
		Details:     o.details,
		Locked:      o.lock,
		cause:       cause,
	}

	if e.SystemError == "" {
		if httpErr := GetHTTPError(cause); httpErr != nil {
			e.SystemError = httpErr.SystemError()
		}
	}

	// A wrapped CheckoutError that is not locked still donates its snapshot.
	if inner := GetCheckoutError(cause); inner != nil {
		e.Details = mergeDetails(inner.Details, e.Details)
		if e.SystemError == "" {
			e.SystemError = inner.SystemError
		}
	}

	return e
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func mergeDetails(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

// resolveStatus checks, in order: explicit override, the wrapped error's
// status, status fields in the wrapped error's body, then 500.
func resolveStatus(override int, cause error) int {
	if override > 0 {
		return override
	}

	if httpErr := GetHTTPError(cause); httpErr != nil {
		if httpErr.Status > 0 {
			return httpErr.Status
		}
		if status := httpErr.bodyStatus(); status > 0 {
			return status
		}
	}

	if inner := GetCheckoutError(cause); inner != nil && inner.StatusCode > 0 {
		return inner.StatusCode
	}

	return http.StatusInternalServerError
}

// GetCheckoutError extracts a CheckoutError from err
func GetCheckoutError(err error) *CheckoutError {
	var checkoutErr *CheckoutError
	if errors.As(err, &checkoutErr) {
		return checkoutErr
	}
	return nil
}

// IsCheckoutError checks if the error is a CheckoutError
func IsCheckoutError(err error) bool {
	return GetCheckoutError(err) != nil
}

// CodeOf returns the code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) ErrorCode {
	if checkoutErr := GetCheckoutError(err); checkoutErr != nil {
		return checkoutErr.Code
	}
	return CodeUnknown
}
