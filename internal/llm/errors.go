package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials means the provider rejected the API key or the base URL is not a provider endpoint.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProviderUnavailable covers transport failures, timeouts, rate limiting and 5xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrModelNotFound means the requested model does not exist on the provider (or is not pulled on ollama).
	ErrModelNotFound = errors.New("model not found")
	// ErrParse means the model reply contained no recoverable JSON.
	ErrParse = errors.New("could not parse model response")
)

// ProviderError is returned by the adapters. errors.Is matches it against the
// sentinel stored in Kind.
type ProviderError struct {
	Provider   Provider
	Kind       error
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, msg)
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed configuration or request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func unavailable(p Provider, status int, retryable bool, msg string, err error) *ProviderError {
	return &ProviderError{Provider: p, Kind: ErrProviderUnavailable, StatusCode: status, Message: msg, Retryable: retryable, Err: err}
}

// classifyStatus maps an HTTP status from any provider onto the taxonomy.
func classifyStatus(p Provider, status int, msg string, err error) *ProviderError {
	switch {
	case status == 401 || status == 403:
		return &ProviderError{Provider: p, Kind: ErrInvalidCredentials, StatusCode: status, Message: msg, Err: err}
	case status == 404:
		return &ProviderError{Provider: p, Kind: ErrModelNotFound, StatusCode: status, Message: msg, Err: err}
	case status == 400 && looksLikeKeyError(msg):
		// gemini answers 400 INVALID_ARGUMENT for a bad key
		return &ProviderError{Provider: p, Kind: ErrInvalidCredentials, StatusCode: status, Message: msg, Err: err}
	case status == 429 || status >= 500:
		return unavailable(p, status, true, msg, err)
	default:
		return unavailable(p, status, false, msg, err)
	}
}
