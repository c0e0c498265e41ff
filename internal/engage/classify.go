package engage

import (
	"context"
	"fmt"
	"strings"

	"github.com/decoylabs/grift/internal/extract"
	"github.com/decoylabs/grift/internal/gemini"
)

// screenResult is the keyword fast-path verdict for one message.
type screenResult int

const (
	screenBenign screenResult = iota
	screenInconclusive
	screenSuspected
)

// screen applies the keyword fast path: any concrete payment/contact
// artifact or two fraud keywords is enough to call the message a scam.
// A single keyword alone is inconclusive.
func screen(found extract.Set) screenResult {
	if found.HandleCount() > 0 {
		return screenSuspected
	}
	switch kw := len(found[extract.KindKeyword]); {
	case kw >= 2:
		return screenSuspected
	case kw == 1:
		return screenInconclusive
	default:
		return screenBenign
	}
}

// aiClassify asks the model for a SCAM/SAFE verdict on the first turn. The
// client-supplied history is advisory context only; it is never stored.
func (e *Engine) aiClassify(ctx context.Context, req TurnRequest) (bool, error) {
	var sb strings.Builder
	sb.WriteString("Previous context:\n")
	history := req.ConversationHistory
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Sender, m.Text)
	}
	fmt.Fprintf(&sb, "\nNew message: %q", req.Message.Text)

	messages := []gemini.Message{{Role: "user", Text: sb.String()}}
	verdict, err := e.gateway.Complete(ctx, classifierSystemPrompt, messages, 16)
	if err != nil {
		return false, fmt.Errorf("ai classification: %w", err)
	}
	return strings.Contains(strings.ToUpper(verdict), "SCAM"), nil
}
