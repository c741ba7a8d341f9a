package pipeline

import (
	"context"
	"errors"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// errorKinds is the only mapping from provider codes to ErrorKind.
// Codes not listed here classify as Unknown.
var errorKinds = map[string]dispatch.ErrorKind{
	dispatch.CodeTokenNotRegistered:  dispatch.ErrorKindTokenDead,
	dispatch.CodeInvalidToken:        dispatch.ErrorKindTokenDead,
	dispatch.CodeServerUnavailable:   dispatch.ErrorKindTransient,
	dispatch.CodeInternalError:       dispatch.ErrorKindTransient,
	dispatch.CodeMessageRateExceeded: dispatch.ErrorKindTransient,
	dispatch.CodeTooManyRequests:     dispatch.ErrorKindTransient,
	dispatch.CodeTimeout:             dispatch.ErrorKindTransient,
	dispatch.CodeInvalidArgument:     dispatch.ErrorKindUnknown,
}

// Classify maps a send error to an ErrorKind and the code that produced it.
func Classify(err error) (dispatch.ErrorKind, string) {
	if err == nil {
		return dispatch.ErrorKindNone, ""
	}

	var perr *dispatch.ProviderError
	if errors.As(err, &perr) {
		if kind, ok := errorKinds[perr.Code]; ok {
			return kind, perr.Code
		}
		if isContextErr(perr.Err) {
			return dispatch.ErrorKindTransient, dispatch.CodeTimeout
		}
		return dispatch.ErrorKindUnknown, perr.Code
	}

	if isContextErr(err) {
		return dispatch.ErrorKindTransient, dispatch.CodeTimeout
	}
	return dispatch.ErrorKindUnknown, dispatch.CodeUnknown
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
