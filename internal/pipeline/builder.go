package pipeline

import (
	"maps"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// BuildMessage turns a request and one destination token into a PushMessage.
//
// Data-only is the default shape: it lets the client render its own call
// overlay. A notification block is attached only when both title and body are
// non-empty; one without the other is never emitted. Caller-supplied data keys
// are never overwritten.
func BuildMessage(req dispatch.NotificationRequest, token string) dispatch.PushMessage {
	data := make(map[string]string, len(req.Data)+3)
	maps.Copy(data, req.Data)

	setIfAbsent(data, "type", req.Type)
	setIfAbsent(data, "conversationId", req.ConversationID)
	setIfAbsent(data, "callId", req.CallID)

	msg := dispatch.PushMessage{
		Token: token,
		Data:  data,
		Hints: dispatch.DefaultPlatformHints,
	}
	if req.Title != "" && req.Body != "" {
		msg.Notification = &dispatch.Notification{Title: req.Title, Body: req.Body}
	}
	return msg
}

func setIfAbsent(data map[string]string, key, value string) {
	if value == "" {
		return
	}
	if _, ok := data[key]; ok {
		return
	}
	data[key] = value
}
