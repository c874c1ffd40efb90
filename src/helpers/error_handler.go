package helpers

import (
	"context"
	"errors"
	"fmt"

	"ir-stock-service/src/interfaces"
	"ir-stock-service/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ServiceError struct {
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// ConfigurationError marks a missing or invalid setting. It is never retried.
type ConfigurationError struct{ ServiceError }

// NetworkError marks a transport failure (no HTTP status available).
type NetworkError struct{ ServiceError }

// ValidationError marks bad caller input.
type ValidationError struct{ ServiceError }

// UpstreamError marks a non-2xx answer from a third-party API.
type UpstreamError struct {
	ServiceError
	Endpoint   string
	StatusCode int
}

func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{ServiceError{Message: fmt.Sprintf(format, args...)}}
}

func NewNetworkError(message string, cause error) error {
	return &NetworkError{ServiceError{Message: message, Cause: cause}}
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{ServiceError{Message: fmt.Sprintf(format, args...)}}
}

func NewUpstreamError(endpoint string, statusCode int, body []byte) error {
	msg := fmt.Sprintf("%s returned status %d", endpoint, statusCode)
	if len(body) > 0 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		msg = fmt.Sprintf("%s: %s", msg, snippet)
	}
	return &UpstreamError{ServiceError: ServiceError{Message: msg}, Endpoint: endpoint, StatusCode: statusCode}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Error Reporter
// -----------------------------------------------------------------------------

// ErrorReporter logs a failure with its stack and forwards it to the admin notifier.
type ErrorReporter struct {
	Logger   *logger.Logger
	Notifier interfaces.IAdminNotifier
}

func NewErrorReporter(log *logger.Logger, notifier interfaces.IAdminNotifier) *ErrorReporter {
	return &ErrorReporter{Logger: log, Notifier: notifier}
}

// -----------------------------------------------------------------------------

// Report never fails. A notifier error is logged and dropped.
func (e *ErrorReporter) Report(ctx context.Context, operation string, err error) {
	if err == nil {
		return
	}

	// %+v prints the stack recorded by github.com/pkg/errors wrappers
	if e.Logger != nil {
		e.Logger.Error("%s failed: %+v", operation, err)
	}

	if e.Notifier == nil {
		return
	}
	subject := fmt.Sprintf("[ALERT] %s failed", operation)
	body := fmt.Sprintf("Operation: %s\nError: %v\n\nDetails:\n%+v\n", operation, err, err)
	if nerr := e.Notifier.NotifyFailure(ctx, subject, body); nerr != nil && e.Logger != nil {
		e.Logger.Warning("Admin notification for %s failed: %v", operation, nerr)
	}
}
