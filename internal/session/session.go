package session

import (
	"sync"
	"time"

	"github.com/decoylabs/grift/internal/extract"
)

// Stage is the persona behaviour phase. Stages only ever move forward.
type Stage string

const (
	StagePanic      Stage = "PANIC"
	StageTrust      Stage = "TRUST"
	StageExtraction Stage = "EXTRACTION"
)

// Classification is the scam verdict for a session. SuspectedScam is sticky:
// once set it never reverts, regardless of later benign-looking messages.
type Classification string

const (
	ClassUnknown       Classification = "UNKNOWN"
	ClassBenign        Classification = "BENIGN"
	ClassSuspectedScam Classification = "SUSPECTED_SCAM"
)

// Message is one history entry, inbound or outbound.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the mutable per-conversation state. All mutation happens under
// mu; Lock serializes concurrent turns for the same session id so history
// appends never interleave and the report fires once.
type Session struct {
	mu sync.Mutex

	ID             string
	TurnCount      int
	Stage          Stage
	Classification Classification
	Artifacts      extract.Set
	History        []Message
	Reported       bool
	LastSeen       time.Time
}

func newSession(id string) *Session {
	return &Session{
		ID:             id,
		Stage:          StagePanic,
		Classification: ClassUnknown,
		Artifacts:      extract.NewSet(),
		LastSeen:       time.Now(),
	}
}

// Lock takes the per-session turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a message to the history. Caller must hold the session lock.
func (s *Session) Append(sender, text string, ts time.Time) {
	s.History = append(s.History, Message{Sender: sender, Text: text, Timestamp: ts})
	s.LastSeen = time.Now()
}

// MarkSuspected sets the sticky scam classification.
func (s *Session) MarkSuspected() {
	s.Classification = ClassSuspectedScam
}

// Classify records a verdict, honouring stickiness of SuspectedScam.
func (s *Session) Classify(c Classification) {
	if s.Classification == ClassSuspectedScam {
		return
	}
	s.Classification = c
}

// AdvanceStage moves the stage forward for the current turn count, never
// backward. Thresholds are the last turn belonging to each stage.
func (s *Session) AdvanceStage(panicTurns, trustTurns int) {
	next := s.Stage
	switch {
	case s.TurnCount > trustTurns:
		next = StageExtraction
	case s.TurnCount > panicTurns:
		next = StageTrust
	}
	if rank(next) > rank(s.Stage) {
		s.Stage = next
	}
}

func rank(st Stage) int {
	switch st {
	case StageTrust:
		return 1
	case StageExtraction:
		return 2
	default:
		return 0
	}
}

// Snapshot is an immutable copy of session state for handlers and debugging.
type Snapshot struct {
	ID             string              `json:"sessionId"`
	TurnCount      int                 `json:"turnCount"`
	Stage          Stage               `json:"stage"`
	Classification Classification      `json:"classification"`
	Artifacts      map[string][]string `json:"artifacts"`
	History        []Message           `json:"history"`
	Reported       bool                `json:"reported"`
}

// Snapshot copies current state. Caller must hold the session lock.
func (s *Session) Snapshot() Snapshot {
	artifacts := make(map[string][]string, len(s.Artifacts))
	for kind := range s.Artifacts {
		artifacts[string(kind)] = s.Artifacts.Values(kind)
	}
	history := make([]Message, len(s.History))
	copy(history, s.History)
	return Snapshot{
		ID:             s.ID,
		TurnCount:      s.TurnCount,
		Stage:          s.Stage,
		Classification: s.Classification,
		Artifacts:      artifacts,
		History:        history,
		Reported:       s.Reported,
	}
}
