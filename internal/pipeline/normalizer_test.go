package pipeline_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-dispatch/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

func decodeBody(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	require.NoError(t, dec.Decode(&body))
	return body
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name          string
		body          string
		expected      dispatch.NotificationRequest
		expectedError string
	}{
		{
			name: "Happy Path - fan-out request",
			body: `{"type":"call_waiting","targetUserId":"u1"}`,
			expected: dispatch.NotificationRequest{
				Type:         "call_waiting",
				TargetUserID: "u1",
				Data:         map[string]string{},
			},
		},
		{
			name: "Token aliases follow precedence token > to > deviceToken",
			body: `{"type":"t","to":"via-to","deviceToken":"via-device","token":"via-token"}`,
			expected: dispatch.NotificationRequest{
				Type:        "t",
				DeviceToken: "via-token",
				Data:        map[string]string{},
			},
		},
		{
			name: "Empty alias falls through to the next one",
			body: `{"type":"t","token":"  ","to":"via-to"}`,
			expected: dispatch.NotificationRequest{
				Type:        "t",
				DeviceToken: "via-to",
				Data:        map[string]string{},
			},
		},
		{
			name: "User aliases follow precedence toUserId > targetUserId",
			body: `{"type":"t","targetUserId":"target","toUserId":"to-user"}`,
			expected: dispatch.NotificationRequest{
				Type:         "t",
				TargetUserID: "to-user",
				Data:         map[string]string{},
			},
		},
		{
			name: "All optional fields and mixed data values",
			body: `{"type":"call","token":"tok","title":"Hi","messageBody":"There","conversationId":"c1","callId":"k1",
				"data":{"n":3,"f":1.5,"b":true,"z":null,"s":"x","o":{"a":1}}}`,
			expected: dispatch.NotificationRequest{
				Type:           "call",
				DeviceToken:    "tok",
				Title:          "Hi",
				Body:           "There",
				ConversationID: "c1",
				CallID:         "k1",
				Data: map[string]string{
					"n": "3", "f": "1.5", "b": "true", "z": "null", "s": "x", "o": `{"a":1}`,
				},
			},
		},
		{
			name: "Type falls back to data.type",
			body: `{"token":"tok","data":{"type":"from_data"}}`,
			expected: dispatch.NotificationRequest{
				Type:        "from_data",
				DeviceToken: "tok",
				Data:        map[string]string{"type": "from_data"},
			},
		},
		{
			name:          "Failure - Missing type",
			body:          `{"token":"tok"}`,
			expectedError: "Missing type",
		},
		{
			name:          "Failure - Missing type is reported before missing destination",
			body:          `{}`,
			expectedError: "Missing type",
		},
		{
			name:          "Failure - Missing destination",
			body:          `{"type":"t","title":"x"}`,
			expectedError: "Missing token or targetUserId",
		},
		{
			name:          "Failure - Non-string token",
			body:          `{"type":"t","token":{"nested":true}}`,
			expectedError: "Invalid token",
		},
		{
			name:          "Failure - Data is not an object",
			body:          `{"type":"t","token":"tok","data":"oops"}`,
			expectedError: "Invalid data",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := pipeline.Normalize(decodeBody(t, tc.body))

			if tc.expectedError != "" {
				require.Error(t, err)
				var verr *dispatch.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tc.expectedError, verr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, req)
		})
	}
}
