package dispatch

import "fmt"

// ValidationError names the first missing or invalid field of a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConfigError reports a missing configuration value. It is fatal for the
// request and must never degrade into a no-op success.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Server misconfigured: Missing %s env var", e.Key)
}

// ProviderError is a per-destination send failure carrying the provider's
// machine-readable code.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
