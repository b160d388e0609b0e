package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/bookledger/internal/providers"
)

func TestComplete(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Expected bearer token, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"year\": 1944}"}}]}`))
	}))
	defer srv.Close()

	o := &OpenAI{APIKey: "sk-test", BaseURL: srv.URL, Client: srv.Client()}
	out, err := o.Complete(context.Background(), providers.Config{Model: "gpt-4o", Prompt: "hello", JSON: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != `{"year": 1944}` {
		t.Errorf("Expected message content, got %q", out)
	}
	if _, ok := body["response_format"]; !ok {
		t.Error("Expected response_format in JSON mode")
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New().Complete(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected error without an API key")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	o := &OpenAI{APIKey: "sk-test", BaseURL: srv.URL}
	if _, err := o.Complete(context.Background(), providers.Config{Model: "gpt-4o"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}
