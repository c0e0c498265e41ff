package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Intelligence is the artifact portion of the evaluator payload.
type Intelligence struct {
	UPIIDs             []string `json:"upiIds"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	PhishingLinks      []string `json:"phishingLinks"`
	BankAccounts       []string `json:"bankAccounts"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Payload is the final intelligence report delivered to the evaluator.
type Payload struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  Intelligence `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}

// Reporter posts intelligence payloads to the evaluator callback URL.
// Delivery is fire-and-forget: a failed delivery is logged and never retried
// inline, so reply latency stays bounded.
type Reporter struct {
	callbackURL string
	client      *http.Client
	logger      *slog.Logger
}

func NewReporter(callbackURL string, logger *slog.Logger) *Reporter {
	return &Reporter{
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
	}
}

// Deliver posts the payload. A non-2xx response counts as failure.
func (r *Reporter) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}

	r.logger.Info("report delivered",
		"session_id", p.SessionID,
		"messages", p.TotalMessagesExchanged,
		"status", resp.StatusCode,
	)
	return nil
}
