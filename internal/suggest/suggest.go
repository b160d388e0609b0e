// Package suggest fills in missing book details with an LLM.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/bookledger/internal/gemini"
	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/ollama"
	"github.com/lehigh-university-libraries/bookledger/internal/openai"
	"github.com/lehigh-university-libraries/bookledger/internal/providers"
)

// ErrNoTitle is returned when the draft has nothing to search by
var ErrNoTitle = errors.New("a title is required for suggestions")

var yearPattern = regexp.MustCompile(`\d{1,4}`)

// Service asks a provider for the author, publisher and year of a title
type Service struct {
	provider    providers.Provider
	name        string
	model       string
	temperature float64
}

// New builds a Service for the named provider. Empty values fall back to
// SUGGEST_PROVIDER (default ollama) and the provider's model variable.
func New(provider, model string) (*Service, error) {
	if provider == "" {
		provider = os.Getenv("SUGGEST_PROVIDER")
		if provider == "" {
			provider = "ollama"
		}
	}

	var p providers.Provider
	switch provider {
	case "ollama":
		p = ollama.New()
	case "openai":
		p = openai.New()
	case "gemini":
		p = gemini.New()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if model == "" {
		model = defaultModel(provider)
	}
	return &Service{provider: p, name: provider, model: model, temperature: 0.1}, nil
}

// NewWithProvider wraps an already configured provider
func NewWithProvider(p providers.Provider, model string) *Service {
	return &Service{provider: p, name: "custom", model: model, temperature: 0.1}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	}
	return ""
}

// Suggest returns draft with its empty author, publisher and year filled in.
// Fields the user already typed are never replaced.
func (s *Service) Suggest(ctx context.Context, draft models.Draft) (models.Draft, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return draft, ErrNoTitle
	}

	raw, err := s.provider.Complete(ctx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      buildPrompt(draft),
		JSON:        true,
	})
	if err != nil {
		return draft, fmt.Errorf("%s: %w", s.name, err)
	}

	found, err := parseResponse(raw)
	if err != nil {
		return draft, err
	}
	slog.Debug("Suggested book details", "title", title, "provider", s.name, "notes", found.Notes)

	if strings.TrimSpace(draft.Author) == "" {
		draft.Author = strings.TrimSpace(found.Author)
	}
	if strings.TrimSpace(draft.Publisher) == "" {
		draft.Publisher = strings.TrimSpace(found.Publisher)
	}
	if strings.TrimSpace(draft.Year) == "" {
		draft.Year = yearPattern.FindString(found.Year.String())
	}
	return draft, nil
}

type suggestion struct {
	Author    string    `json:"author"`
	Publisher string    `json:"publisher"`
	Year      yearValue `json:"year"`
	Notes     string    `json:"notes"`
}

// yearValue accepts the year as a JSON number or string
type yearValue string

func (y *yearValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*y = yearValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*y = yearValue(n.String())
	return nil
}

func (y yearValue) String() string { return string(y) }

// parseResponse decodes the JSON object in a model reply, tolerating markdown fences
// and text around it.
func parseResponse(response string) (suggestion, error) {
	var result suggestion

	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return result, fmt.Errorf("no JSON object in response: %q", response)
	}

	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return result, fmt.Errorf("failed to parse suggestion: %w", err)
	}
	return result, nil
}

func buildPrompt(d models.Draft) string {
	var known strings.Builder
	fmt.Fprintf(&known, "title: %s\n", strings.TrimSpace(d.Title))
	if v := strings.TrimSpace(d.Author); v != "" {
		fmt.Fprintf(&known, "author: %s\n", v)
	}
	if v := strings.TrimSpace(d.Publisher); v != "" {
		fmt.Fprintf(&known, "publisher: %s\n", v)
	}
	if v := strings.TrimSpace(d.Year); v != "" {
		fmt.Fprintf(&known, "year: %s\n", v)
	}

	return `You are an expert bibliographic cataloger. Identify the book described below and
give its primary author, its publisher and the year of its first publication.

KNOWN FIELDS:
` + known.String() + `
INSTRUCTIONS:
1. Keep any known field as given
2. Use the original publisher of the first edition
3. The year must be a number with no other text
4. If you are not sure about a field, use an empty string ""

OUTPUT FORMAT:
Respond with ONLY a JSON object:

{
  "author": "...",
  "publisher": "...",
  "year": "...",
  "notes": "Any uncertainties"
}`
}
