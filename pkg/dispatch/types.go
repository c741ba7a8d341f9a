package dispatch

import "time"

// NotificationRequest is the canonical form of an inbound dispatch request.
// Optional string fields are always present as "" rather than absent.
type NotificationRequest struct {
	TargetUserID   string
	DeviceToken    string
	Type           string
	ConversationID string
	CallID         string
	Title          string
	Body           string
	Data           map[string]string
}

// DeviceRegistration is a single (user, token) pair held by the DeviceRegistry.
type DeviceRegistration struct {
	UserID       string
	Token        string
	RegisteredAt time.Time
}

// Notification is the visible title/body block of a PushMessage.
type Notification struct {
	Title string
	Body  string
}

// PlatformHints carries per-platform delivery settings.
type PlatformHints struct {
	AndroidPriority string
	APNSPriority    string
}

// DefaultPlatformHints are attached to every message; call-adjacent pushes are
// latency sensitive on both platforms.
var DefaultPlatformHints = PlatformHints{
	AndroidPriority: "high",
	APNSPriority:    "10",
}

// PushMessage is a provider-ready payload for exactly one destination.
type PushMessage struct {
	Token        string
	Data         map[string]string
	Notification *Notification
	Hints        PlatformHints
}

// ErrorKind is the provider-independent classification of a send failure.
type ErrorKind string

const (
	// ErrorKindNone marks a successful result.
	ErrorKindNone ErrorKind = ""
	// ErrorKindTokenDead means the registration will never be deliverable again.
	ErrorKindTokenDead ErrorKind = "TokenDead"
	// ErrorKindTransient means a later attempt might succeed.
	ErrorKindTransient ErrorKind = "Transient"
	// ErrorKindUnknown covers everything the classifier does not recognise.
	ErrorKindUnknown ErrorKind = "Unknown"
)

// DispatchResult is the outcome of sending to one destination.
type DispatchResult struct {
	Token     string
	Success   bool
	MessageID string
	ErrorKind ErrorKind
	// Code is the provider error code, when there was one.
	Code string
	// TimedOut is set when the destination was never attempted because the
	// request deadline elapsed.
	TimedOut bool
}
