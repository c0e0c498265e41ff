package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected x-goog-api-key test-key, got %q", r.Header.Get("x-goog-api-key"))
		}
		if !strings.Contains(r.URL.Path, "models/test-model:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "you are a test" {
			t.Errorf("unexpected system instruction: %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 2 {
			t.Fatalf("expected 2 contents, got %d", len(req.Contents))
		}
		if req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
			t.Errorf("unexpected roles: %+v", req.Contents)
		}
		if req.GenerationConfig.MaxOutputTokens != 100 {
			t.Errorf("expected maxOutputTokens 100, got %d", req.GenerationConfig.MaxOutputTokens)
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "  world  "}}}},
			},
		})
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	messages := []Message{
		{Role: "user", Text: "hello"},
		{Role: "model", Text: "hi"},
	}
	result, err := c.Generate(context.Background(), "you are a test", messages, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected trimmed 'world', got %q", result)
	}
}

func TestGenerate_QuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    429,
				"status":  "RESOURCE_EXHAUSTED",
				"message": "quota exceeded",
			},
		})
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	_, err := c.Generate(context.Background(), "", []Message{{Role: "user", Text: "hi"}}, 10)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !IsQuota(err) {
		t.Fatalf("expected quota classification, got %v", err)
	}
}

func TestGenerate_ServerErrorNotQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	_, err := c.Generate(context.Background(), "", []Message{{Role: "user", Text: "hi"}}, 10)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if IsQuota(err) {
		t.Fatalf("500 must be transient, not quota: %v", err)
	}
}

func TestGenerate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	c := NewClient("test-key", "test-model")
	c.SetTestTransport(server.URL)

	_, err := c.Generate(context.Background(), "", []Message{{Role: "user", Text: "hi"}}, 10)
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
}
