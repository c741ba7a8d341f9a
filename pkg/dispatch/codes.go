package dispatch

// Provider error codes. Platform adapters translate their SDK errors into one
// of these when building a ProviderError. CodeInvalidArgument is a request
// rejected for something other than its token, such as a reserved data key.
const (
	CodeTokenNotRegistered  = "registration-token-not-registered"
	CodeInvalidToken        = "invalid-registration-token"
	CodeInvalidArgument     = "invalid-argument"
	CodeServerUnavailable   = "server-unavailable"
	CodeInternalError       = "internal-error"
	CodeMessageRateExceeded = "message-rate-exceeded"
	CodeTooManyRequests     = "too-many-requests"
	CodeTimeout             = "timeout"
	CodeUnknown             = "unknown-error"
)
