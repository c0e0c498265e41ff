package engage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/decoylabs/grift/internal/archive"
	"github.com/decoylabs/grift/internal/events"
	"github.com/decoylabs/grift/internal/extract"
	"github.com/decoylabs/grift/internal/gateway"
	"github.com/decoylabs/grift/internal/gemini"
	"github.com/decoylabs/grift/internal/report"
	"github.com/decoylabs/grift/internal/session"
)

// agentSender marks outbound messages in history: the persona poses as the
// platform user the scammer contacted.
const agentSender = "user"

// Config holds the turn-threshold tuning for the controller.
type Config struct {
	PanicTurns    int
	TrustTurns    int
	ReportAfter   int
	HistoryWindow int
}

// Engine drives one conversation turn end to end: classification, stage
// selection, artifact merge, reply generation and the report trigger.
// Reporter, archive and bus are optional collaborators.
type Engine struct {
	store    *session.Store
	gateway  *gateway.Gateway
	reporter *report.Reporter
	archive  *archive.Archive
	bus      *events.Bus
	cfg      Config
	logger   *slog.Logger
}

func New(store *session.Store, gw *gateway.Gateway, rep *report.Reporter, arch *archive.Archive, bus *events.Bus, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		gateway:  gw,
		reporter: rep,
		archive:  arch,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleTurn processes one inbound message and always produces a reply.
// Turns for the same session are serialized by the session lock; failures
// inside the pipeline degrade the reply, never the response shape.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) (reply TurnReply) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn handling panicked", "session_id", req.SessionID, "panic", r)
			reply = TurnReply{Status: "success", Reply: degradedReply}
		}
	}()

	s := e.store.GetOrCreate(req.SessionID)
	s.Lock()
	defer s.Unlock()

	s.TurnCount++
	s.AdvanceStage(e.cfg.PanicTurns, e.cfg.TrustTurns)

	found := extract.Extract(req.Message.Text)
	newArtifacts := e.countNew(s, found)
	s.Artifacts.Merge(found)
	if newArtifacts > 0 {
		if err := e.bus.Publish(events.SubjectExtracted, map[string]any{
			"session_id": s.ID,
			"turn":       s.TurnCount,
			"new":        newArtifacts,
			"total":      s.Artifacts.HandleCount(),
		}); err != nil {
			e.logger.Warn("failed to publish extraction event", "error", err)
		}
	}

	firstTurn := s.TurnCount == 1
	e.classify(ctx, s, req, found)

	s.Append(req.Message.Sender, req.Message.Text, req.Message.Timestamp.orNow())

	// A harmless first contact gets a polite acknowledgement, no persona.
	if firstTurn && s.Classification == session.ClassBenign {
		s.Append(agentSender, benignAck, time.Now().UTC())
		return TurnReply{Status: "success", Reply: benignAck}
	}

	text := e.generateReply(ctx, s, req)
	s.Append(agentSender, text, time.Now().UTC())

	e.logger.Info("turn handled",
		"session_id", s.ID,
		"turn", s.TurnCount,
		"stage", s.Stage,
		"classification", s.Classification,
		"artifacts", s.Artifacts.HandleCount(),
	)

	e.maybeReport(s)

	return TurnReply{Status: "success", Reply: text}
}

// classify runs the keyword fast path every turn until the sticky scam
// verdict lands; the AI classifier is consulted only on an inconclusive
// first turn, and its failure falls back to the keyword verdict.
func (e *Engine) classify(ctx context.Context, s *session.Session, req TurnRequest, found extract.Set) {
	if s.Classification == session.ClassSuspectedScam {
		return
	}

	verdict := screen(found)
	if verdict == screenSuspected {
		e.markSuspected(s)
		return
	}

	if s.TurnCount == 1 {
		scam, err := e.aiClassify(ctx, req)
		if err != nil {
			e.logger.Warn("classifier unavailable, using keyword verdict", "session_id", s.ID, "error", err)
			s.Classify(session.ClassBenign)
			return
		}
		if scam {
			e.markSuspected(s)
		} else {
			s.Classify(session.ClassBenign)
		}
		return
	}

	if s.Classification == session.ClassUnknown {
		s.Classify(session.ClassBenign)
	}
}

func (e *Engine) markSuspected(s *session.Session) {
	s.MarkSuspected()
	e.logger.Info("session classified as scam", "session_id", s.ID, "turn", s.TurnCount)
	if err := e.bus.Publish(events.SubjectClassified, map[string]any{
		"session_id":     s.ID,
		"turn":           s.TurnCount,
		"classification": s.Classification,
	}); err != nil {
		e.logger.Warn("failed to publish classification event", "error", err)
	}
}

// generateReply builds the persona prompt from a bounded history window and
// delegates to the gateway, which cannot fail.
func (e *Engine) generateReply(ctx context.Context, s *session.Session, req TurnRequest) string {
	system := buildSystemPrompt(s.Stage, s.Artifacts, req.Metadata)

	history := s.History
	// the inbound message is already appended; it becomes the final user turn
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	if len(history) > e.cfg.HistoryWindow {
		history = history[len(history)-e.cfg.HistoryWindow:]
	}

	messages := make([]gemini.Message, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Sender == agentSender {
			role = "model"
		}
		messages = append(messages, gemini.Message{Role: role, Text: m.Text})
	}
	messages = append(messages, gemini.Message{Role: "user", Text: req.Message.Text})

	return e.gateway.GenerateReply(ctx, system, messages, s.Stage, s.Artifacts.HandleCount() > 0)
}

// maybeReport fires the intelligence report exactly once per session, after
// enough engagement with a confirmed scam classification. The session is
// marked reported before delivery so no later turn can double-fire; delivery
// itself is detached from the request path.
func (e *Engine) maybeReport(s *session.Session) {
	if s.Reported || s.Classification != session.ClassSuspectedScam || s.TurnCount < e.cfg.ReportAfter {
		return
	}
	s.Reported = true

	payload := e.buildPayload(s)
	e.logger.Info("report triggered",
		"session_id", s.ID,
		"turn", s.TurnCount,
		"artifacts", s.Artifacts.HandleCount(),
	)

	go e.deliver(payload)
}

func (e *Engine) deliver(payload report.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	delivered := false
	if e.reporter != nil {
		if err := e.reporter.Deliver(ctx, payload); err != nil {
			e.logger.Error("report delivery failed", "session_id", payload.SessionID, "error", err)
			if perr := e.bus.Publish(events.SubjectReportError, map[string]any{
				"session_id": payload.SessionID,
				"error":      err.Error(),
			}); perr != nil {
				e.logger.Warn("failed to publish report failure event", "error", perr)
			}
		} else {
			delivered = true
		}
	} else {
		e.logger.Warn("callback not configured, report not delivered", "session_id", payload.SessionID)
	}

	if delivered {
		if err := e.bus.Publish(events.SubjectReported, map[string]any{
			"session_id": payload.SessionID,
			"messages":   payload.TotalMessagesExchanged,
		}); err != nil {
			e.logger.Warn("failed to publish report event", "error", err)
		}
	}

	if e.archive != nil {
		if _, err := e.archive.WriteReport(ctx, payload, delivered); err != nil {
			e.logger.Error("failed to archive report", "session_id", payload.SessionID, "error", err)
		}
	}
}

// buildPayload assembles the evaluator payload. Caller must hold the
// session lock.
func (e *Engine) buildPayload(s *session.Session) report.Payload {
	return report.Payload{
		SessionID:              s.ID,
		ScamDetected:           s.Classification == session.ClassSuspectedScam,
		TotalMessagesExchanged: len(s.History),
		ExtractedIntelligence: report.Intelligence{
			UPIIDs:             s.Artifacts.Values(extract.KindUPI),
			PhoneNumbers:       s.Artifacts.Values(extract.KindPhone),
			PhishingLinks:      s.Artifacts.Values(extract.KindURL),
			BankAccounts:       s.Artifacts.Values(extract.KindBank),
			SuspiciousKeywords: s.Artifacts.Values(extract.KindKeyword),
		},
		AgentNotes: e.buildNotes(s),
	}
}

func (e *Engine) buildNotes(s *session.Session) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Engaged suspected scammer across %d turns, final stage %s.", s.TurnCount, s.Stage))
	if n := s.Artifacts.HandleCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("Extracted %d identifying artifacts.", n))
	} else {
		parts = append(parts, "No concrete payment or contact artifacts revealed yet.")
	}
	if kws := s.Artifacts.Values(extract.KindKeyword); len(kws) > 0 {
		parts = append(parts, fmt.Sprintf("Fraud indicators observed: %s.", strings.Join(kws, ", ")))
	}
	return strings.Join(parts, " ")
}

// countNew counts values in found not yet present in the session set.
func (e *Engine) countNew(s *session.Session, found extract.Set) int {
	n := 0
	for kind, values := range found {
		if kind == extract.KindKeyword {
			continue
		}
		for v := range values {
			if !s.Artifacts.Has(kind, v) {
				n++
			}
		}
	}
	return n
}

// SessionSnapshot exposes a debug view of a session, or nil when absent.
func (e *Engine) SessionSnapshot(id string) *session.Snapshot {
	s := e.store.Get(id)
	if s == nil {
		return nil
	}
	s.Lock()
	defer s.Unlock()
	snap := s.Snapshot()
	return &snap
}
