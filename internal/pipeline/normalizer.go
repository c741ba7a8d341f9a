// Package pipeline contains the push dispatch engine: normalizing a request,
// resolving its destinations, building and sending one message per token and
// pruning the registrations the provider reports as dead.
package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// Field names accepted for each canonical request field, in precedence order.
// The first non-empty value wins.
var (
	deviceTokenFields  = []string{"token", "to", "deviceToken"}
	targetUserFields   = []string{"toUserId", "targetUserId"}
	bodyFields         = []string{"body", "messageBody"}
	conversationFields = []string{"conversationId"}
	callFields         = []string{"callId"}
	titleFields        = []string{"title"}
)

// Normalize turns a parsed request body into a canonical NotificationRequest.
// It is pure. Required fields are checked in order: type, then destination.
// Data values are stringified here so nothing downstream sees mixed types.
func Normalize(body map[string]any) (dispatch.NotificationRequest, error) {
	var req dispatch.NotificationRequest

	// data is optional, so its error is held back until the required
	// fields have been checked.
	data, dataErr := normalizeData(body["data"])

	var err error
	if req.Type, err = firstString(body, "type"); err != nil {
		return req, err
	}
	if req.Type == "" && dataErr == nil {
		req.Type = strings.TrimSpace(data["type"])
	}
	if req.Type == "" {
		return req, &dispatch.ValidationError{Field: "type", Message: "Missing type"}
	}

	if req.DeviceToken, err = firstString(body, deviceTokenFields...); err != nil {
		return req, err
	}
	if req.TargetUserID, err = firstString(body, targetUserFields...); err != nil {
		return req, err
	}
	if req.DeviceToken == "" && req.TargetUserID == "" {
		return req, &dispatch.ValidationError{Field: "token", Message: "Missing token or targetUserId"}
	}
	if dataErr != nil {
		return req, dataErr
	}
	req.Data = data

	if req.Title, err = firstString(body, titleFields...); err != nil {
		return req, err
	}
	if req.Body, err = firstString(body, bodyFields...); err != nil {
		return req, err
	}
	if req.ConversationID, err = firstString(body, conversationFields...); err != nil {
		return req, err
	}
	if req.CallID, err = firstString(body, callFields...); err != nil {
		return req, err
	}

	return req, nil
}

// firstString returns the first non-empty string found under keys.
// Numbers are accepted as identifiers; any other non-string value is invalid.
func firstString(body map[string]any, keys ...string) (string, error) {
	for _, k := range keys {
		raw, ok := body[k]
		if !ok || raw == nil {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case json.Number:
			s = v.String()
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return "", &dispatch.ValidationError{Field: k, Message: "Invalid " + k}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return "", nil
}

func normalizeData(raw any) (map[string]string, error) {
	out := make(map[string]string)
	if raw == nil {
		return out, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &dispatch.ValidationError{Field: "data", Message: "Invalid data"}
	}
	for k, v := range m {
		out[k] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
