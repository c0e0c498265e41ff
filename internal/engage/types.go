package engage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// IncomingMessage is one message in the inbound turn payload.
type IncomingMessage struct {
	Sender    string   `json:"sender"`
	Text      string   `json:"text"`
	Timestamp FlexTime `json:"timestamp"`
}

// Metadata carries channel hints from the platform.
type Metadata struct {
	Channel  string `json:"channel"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

// TurnRequest is the inbound turn payload. ConversationHistory is advisory
// only: the stored session history is the source of truth, and the client
// array is consulted just for first-turn classification context.
type TurnRequest struct {
	SessionID           string            `json:"sessionId"`
	Message             IncomingMessage   `json:"message"`
	ConversationHistory []IncomingMessage `json:"conversationHistory"`
	Metadata            Metadata          `json:"metadata"`
}

// TurnReply is the outbound turn shape. Status is always "success": internal
// failures degrade the reply text, never the shape.
type TurnReply struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// FlexTime tolerates the timestamp wire forms seen from the platform:
// RFC 3339 strings, epoch seconds, and epoch milliseconds. Unparseable
// values become the zero time rather than failing the turn.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err == nil {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				t.Time = ts
				return nil
			}
			// numeric timestamp sent as a string
			s = raw
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n > 1e12 { // millisecond epoch
			t.Time = time.UnixMilli(int64(n)).UTC()
		} else {
			t.Time = time.Unix(int64(n), 0).UTC()
		}
		return nil
	}

	t.Time = time.Time{}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// orNow substitutes the current time for missing timestamps.
func (t FlexTime) orNow() time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.Time
}
