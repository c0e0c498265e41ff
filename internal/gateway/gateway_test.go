package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/decoylabs/grift/internal/gemini"
	"github.com/decoylabs/grift/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCompleter struct {
	calls int
	fn    func(call int) (string, error)
}

func (s *stubCompleter) Generate(ctx context.Context, system string, messages []gemini.Message, maxTokens int) (string, error) {
	s.calls++
	return s.fn(s.calls)
}

func quotaErr() error {
	return &gemini.APIError{StatusCode: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
}

func testOptions() Options {
	return Options{
		Cooldown:         time.Minute,
		FailureThreshold: 3,
		RequestTimeout:   time.Second,
	}
}

func newTestGateway(opts Options, stubs ...*stubCompleter) *Gateway {
	var named []NamedCompleter
	for i, s := range stubs {
		named = append(named, NamedCompleter{ID: string(rune('a' + i)), Client: s})
	}
	return New(named, opts, discardLogger())
}

func TestComplete_RoundRobin(t *testing.T) {
	ok := func(int) (string, error) { return "reply", nil }
	s0 := &stubCompleter{fn: ok}
	s1 := &stubCompleter{fn: ok}
	g := newTestGateway(testOptions(), s0, s1)

	for i := 0; i < 4; i++ {
		if _, err := g.Complete(context.Background(), "", nil, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if s0.calls != 2 || s1.calls != 2 {
		t.Fatalf("expected fair rotation 2/2, got %d/%d", s0.calls, s1.calls)
	}
}

func TestComplete_QuotaRotatesToNextSlot(t *testing.T) {
	s0 := &stubCompleter{fn: func(int) (string, error) { return "", quotaErr() }}
	s1 := &stubCompleter{fn: func(int) (string, error) { return "from-b", nil }}
	g := newTestGateway(testOptions(), s0, s1)

	text, err := g.Complete(context.Background(), "", nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from-b" {
		t.Fatalf("expected reply from second slot, got %q", text)
	}

	// exhausted slot is skipped while cooling down
	if _, err := g.Complete(context.Background(), "", nil, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s0.calls != 1 {
		t.Fatalf("cooling slot was called again: %d calls", s0.calls)
	}
	if s1.calls != 2 {
		t.Fatalf("expected healthy slot to serve, got %d calls", s1.calls)
	}
}

func TestComplete_CooldownExpires(t *testing.T) {
	s0 := &stubCompleter{fn: func(call int) (string, error) {
		if call == 1 {
			return "", quotaErr()
		}
		return "recovered", nil
	}}
	g := newTestGateway(testOptions(), s0)

	now := time.Now()
	g.now = func() time.Time { return now }

	if _, err := g.Complete(context.Background(), "", nil, 10); err == nil {
		t.Fatal("expected error with single exhausted slot")
	}
	if _, err := g.Complete(context.Background(), "", nil, 10); err == nil {
		t.Fatal("slot should still be cooling")
	}
	if s0.calls != 1 {
		t.Fatalf("cooling slot must not be invoked, got %d calls", s0.calls)
	}

	now = now.Add(2 * time.Minute)
	text, err := g.Complete(context.Background(), "", nil, 10)
	if err != nil {
		t.Fatalf("unexpected error after cooldown: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("expected recovered reply, got %q", text)
	}
}

func TestComplete_TransientFailuresCrossThreshold(t *testing.T) {
	s0 := &stubCompleter{fn: func(int) (string, error) { return "", errors.New("timeout") }}
	opts := testOptions()
	opts.FailureThreshold = 2
	g := newTestGateway(opts, s0)

	for i := 0; i < 3; i++ {
		if _, err := g.Complete(context.Background(), "", nil, 10); err == nil {
			t.Fatal("expected error from failing slot")
		}
	}

	// two transient failures trip the threshold; the third call finds the
	// slot cooling and never invokes it
	if s0.calls != 2 {
		t.Fatalf("expected 2 invocations before cooldown, got %d", s0.calls)
	}
}

func TestComplete_SuccessResetsFailures(t *testing.T) {
	s0 := &stubCompleter{fn: func(call int) (string, error) {
		if call%2 == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}}
	opts := testOptions()
	opts.FailureThreshold = 2
	g := newTestGateway(opts, s0)

	// alternating failure/success never reaches the threshold
	for i := 0; i < 6; i++ {
		_, _ = g.Complete(context.Background(), "", nil, 10)
	}
	if s0.calls != 6 {
		t.Fatalf("slot should never cool down, got %d invocations", s0.calls)
	}
}

func TestGenerateReply_FallbackWhenAllExhausted(t *testing.T) {
	s0 := &stubCompleter{fn: func(int) (string, error) { return "", quotaErr() }}
	s1 := &stubCompleter{fn: func(int) (string, error) { return "", quotaErr() }}
	g := newTestGateway(testOptions(), s0, s1)

	for _, stage := range []session.Stage{session.StagePanic, session.StageTrust, session.StageExtraction} {
		text := g.GenerateReply(context.Background(), "sys", nil, stage, false)
		if text == "" {
			t.Fatalf("stage %s: fallback reply must be non-empty", stage)
		}
		if text != Fallback(stage, false) {
			t.Fatalf("stage %s: expected deterministic fallback, got %q", stage, text)
		}
	}
}

func TestGenerateReply_NoSlotsConfigured(t *testing.T) {
	g := newTestGateway(testOptions())
	text := g.GenerateReply(context.Background(), "sys", nil, session.StagePanic, false)
	if text == "" {
		t.Fatal("fallback must serve with zero slots")
	}
}

func TestFallback_ArtifactVariant(t *testing.T) {
	plain := Fallback(session.StageExtraction, false)
	repeat := Fallback(session.StageExtraction, true)
	if plain == "" || repeat == "" {
		t.Fatal("fallback replies must be non-empty")
	}
	if plain == repeat {
		t.Fatal("artifact-aware variant should differ")
	}
}

func TestStatus_CountsAvailability(t *testing.T) {
	s0 := &stubCompleter{fn: func(int) (string, error) { return "", quotaErr() }}
	s1 := &stubCompleter{fn: func(int) (string, error) { return "ok", nil }}
	g := newTestGateway(testOptions(), s0, s1)

	if _, err := g.Complete(context.Background(), "", nil, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := g.Status()
	if st.Total != 2 {
		t.Fatalf("expected 2 slots, got %d", st.Total)
	}
	if st.Available != 1 {
		t.Fatalf("expected 1 available slot, got %d", st.Available)
	}
	for _, info := range st.Slots {
		if info.ID == "a" && info.Available {
			t.Error("exhausted slot reported available")
		}
		if info.ID == "b" && !info.Available {
			t.Error("healthy slot reported unavailable")
		}
	}
}
