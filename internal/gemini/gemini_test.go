package gemini

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/bookledger/internal/providers"
)

func TestCompleteRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := New().Complete(context.Background(), providers.Config{Model: "gemini-1.5-flash"}); err == nil {
		t.Error("Expected error without GEMINI_API_KEY")
	}
}
