package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/decoylabs/grift/internal/gemini"
	"github.com/decoylabs/grift/internal/session"
)

// Completer is the pluggable inference capability behind one credential.
type Completer interface {
	Generate(ctx context.Context, system string, messages []gemini.Message, maxTokens int) (string, error)
}

// ErrNoSlotAvailable is returned by Complete when every credential slot is
// cooling down or the per-call attempt budget ran out. GenerateReply absorbs
// it via the fallback; the classifier path surfaces it to the caller.
var ErrNoSlotAvailable = errors.New("no inference slot available")

type slot struct {
	id                  string
	client              Completer
	cooldownUntil       time.Time
	consecutiveFailures int
}

func (s *slot) available(now time.Time) bool {
	return !now.Before(s.cooldownUntil)
}

// Gateway owns the credential slot pool shared by all sessions. Rotation
// state is guarded by mu; the mutex is never held across a network call.
type Gateway struct {
	mu     sync.Mutex
	slots  []*slot
	cursor int // index of the last successfully used slot

	cooldown      time.Duration
	failThreshold int
	timeout       time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// Options tunes rotation behaviour.
type Options struct {
	Cooldown         time.Duration
	FailureThreshold int
	RequestTimeout   time.Duration
}

// NamedCompleter pairs a credential identifier with its client.
type NamedCompleter struct {
	ID     string
	Client Completer
}

func New(completers []NamedCompleter, opts Options, logger *slog.Logger) *Gateway {
	slots := make([]*slot, 0, len(completers))
	for _, c := range completers {
		slots = append(slots, &slot{id: c.ID, client: c.Client})
	}
	g := &Gateway{
		slots:         slots,
		cursor:        len(slots) - 1, // first pick starts at slot 0
		cooldown:      opts.Cooldown,
		failThreshold: opts.FailureThreshold,
		timeout:       opts.RequestTimeout,
		logger:        logger,
		now:           time.Now,
	}
	return g
}

// Complete rotates through available slots, at most one attempt per slot.
func (g *Gateway) Complete(ctx context.Context, system string, messages []gemini.Message, maxTokens int) (string, error) {
	n := len(g.slots)
	if n == 0 {
		return "", ErrNoSlotAvailable
	}

	g.mu.Lock()
	start := g.cursor
	g.mu.Unlock()

	for attempt := 0; attempt < n; attempt++ {
		idx := (start + 1 + attempt) % n
		s := g.slots[idx]

		g.mu.Lock()
		ok := s.available(g.now())
		g.mu.Unlock()
		if !ok {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		text, err := s.client.Generate(callCtx, system, messages, maxTokens)
		cancel()

		if err == nil {
			g.recordSuccess(idx)
			return text, nil
		}

		if gemini.IsQuota(err) {
			g.recordQuota(idx)
			g.logger.Warn("inference slot quota exhausted", "slot", s.id, "error", err)
		} else {
			g.recordTransient(idx)
			g.logger.Warn("inference slot transient failure", "slot", s.id, "error", err)
		}
	}

	return "", ErrNoSlotAvailable
}

// GenerateReply produces persona text for a turn. It has no failure mode:
// when no slot can serve, the deterministic fallback answers for the stage.
func (g *Gateway) GenerateReply(ctx context.Context, system string, messages []gemini.Message, stage session.Stage, haveArtifacts bool) string {
	text, err := g.Complete(ctx, system, messages, replyMaxTokens)
	if err == nil && text != "" {
		return text
	}
	if err != nil {
		g.logger.Warn("falling back to canned reply", "stage", stage, "error", err)
	}
	return Fallback(stage, haveArtifacts)
}

func (g *Gateway) recordSuccess(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.slots[idx]
	s.consecutiveFailures = 0
	g.cursor = idx
}

func (g *Gateway) recordQuota(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.slots[idx]
	s.consecutiveFailures++
	s.cooldownUntil = g.now().Add(g.cooldown)
}

func (g *Gateway) recordTransient(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.slots[idx]
	s.consecutiveFailures++
	if g.failThreshold > 0 && s.consecutiveFailures >= g.failThreshold {
		s.cooldownUntil = g.now().Add(g.cooldown)
	}
}

// SlotInfo is the liveness view of one credential slot.
type SlotInfo struct {
	ID                  string    `json:"id"`
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	CooldownUntil       time.Time `json:"cooldownUntil,omitempty"`
}

// Status summarizes pool liveness for the status surface.
type Status struct {
	Total     int        `json:"total"`
	Available int        `json:"available"`
	Slots     []SlotInfo `json:"slots"`
}

func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := Status{Total: len(g.slots)}
	for _, s := range g.slots {
		info := SlotInfo{
			ID:                  s.id,
			Available:           s.available(now),
			ConsecutiveFailures: s.consecutiveFailures,
		}
		if !s.available(now) {
			info.CooldownUntil = s.cooldownUntil
		}
		if info.Available {
			st.Available++
		}
		st.Slots = append(st.Slots, info)
	}
	return st
}
