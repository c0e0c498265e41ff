package engage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexTime_Forms(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2025-06-01T10:30:00Z"`, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"epoch seconds", `1748773800`, time.Unix(1748773800, 0).UTC()},
		{"epoch millis", `1748773800000`, time.UnixMilli(1748773800000).UTC()},
		{"epoch as string", `"1748773800"`, time.Unix(1748773800, 0).UTC()},
		{"null", `null`, time.Time{}},
		{"garbage", `"last tuesday"`, time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ft FlexTime
			if err := json.Unmarshal([]byte(tc.in), &ft); err != nil {
				t.Fatalf("FlexTime must tolerate %s: %v", tc.in, err)
			}
			if !ft.Time.Equal(tc.want) {
				t.Errorf("got %v, want %v", ft.Time, tc.want)
			}
		})
	}
}

func TestTurnRequest_DecodesWirePayload(t *testing.T) {
	raw := `{
		"sessionId": "abc-123",
		"message": {"sender": "scammer", "text": "urgent: verify", "timestamp": "2025-06-01T10:30:00Z"},
		"conversationHistory": [
			{"sender": "scammer", "text": "hello", "timestamp": 1748773800}
		],
		"metadata": {"channel": "SMS", "language": "English", "locale": "IN"}
	}`

	var req TurnRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.SessionID != "abc-123" || req.Message.Text != "urgent: verify" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.ConversationHistory) != 1 || req.ConversationHistory[0].Timestamp.IsZero() {
		t.Fatalf("history not decoded: %+v", req.ConversationHistory)
	}
	if req.Metadata.Locale != "IN" {
		t.Errorf("metadata not decoded: %+v", req.Metadata)
	}
}

func TestTurnRequest_ToleratesEmptyHistory(t *testing.T) {
	raw := `{"sessionId": "x", "message": {"sender": "scammer", "text": "hi", "timestamp": ""}}`
	var req TurnRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("first-turn payload must decode: %v", err)
	}
	if len(req.ConversationHistory) != 0 {
		t.Fatalf("expected empty history, got %+v", req.ConversationHistory)
	}
}
