package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/pkg/models"
)

const (
	briefLimit      = 10_000
	structuredLimit = 30_000
)

// Backend sends one prompt to a model and returns its raw text reply.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns bill text into summaries through a Backend.
// A nil backend means no credential was configured.
type Summarizer struct {
	backend Backend
	timeout time.Duration
	log     *slog.Logger
}

// New builds a Summarizer for the configured provider. When the provider
// credential is empty the Summarizer is still usable but every call fails
// with domain.ErrSummarizationUnavailable.
func New(cfg config.LLMConfig, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "llm", "provider", cfg.Provider)

	key := cfg.APIKey()
	if key == "" {
		log.Warn("no summarization credential configured; summaries will be unavailable")
		return &Summarizer{timeout: cfg.Timeout, log: log}
	}

	var b Backend
	switch cfg.Provider {
	case "anthropic":
		b = NewAnthropic(key, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
	case "openai":
		b = NewOpenAI(key, cfg.BaseURL, orDefault(cfg.Model, defaultOpenAIModel), cfg.MaxTokens)
	default:
		b = NewOpenAI(key, orDefault(cfg.BaseURL, GeminiBaseURL), orDefault(cfg.Model, defaultGeminiModel), cfg.MaxTokens)
	}
	return &Summarizer{backend: b, timeout: cfg.Timeout, log: log}
}

// NewWithBackend wraps an existing backend. Useful for tests and for
// callers that build their own client.
func NewWithBackend(b Backend, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{backend: b, log: log.With("component", "llm")}
}

// Available reports whether a backend is configured.
func (s *Summarizer) Available() bool { return s.backend != nil }

// Brief returns a short plain-text summary of text framed for sector.
func (s *Summarizer) Brief(ctx context.Context, text string, sector models.Sector) (string, error) {
	reply, err := s.complete(ctx, buildBriefPrompt(truncate(text, briefLimit), sector))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrSummarizationMalformed)
	}
	return reply, nil
}

// Structured returns a validated StructuredSummary of text framed for sector.
func (s *Summarizer) Structured(ctx context.Context, text string, sector models.Sector) (*models.StructuredSummary, error) {
	reply, err := s.complete(ctx, buildStructuredPrompt(truncate(text, structuredLimit), sector))
	if err != nil {
		return nil, err
	}
	sum, err := ParseStructured(reply)
	if err != nil {
		s.log.Warn("malformed structured summary", "error", err, "reply_len", len(reply))
		return nil, err
	}
	return sum, nil
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.backend == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarizationUnavailable, domain.ErrNoCredential)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.backend.Complete(ctx, prompt)
	s.log.Debug("llm call", "latency", time.Since(start), "prompt_len", len(prompt), "error", err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrSummarizationUnavailable, err)
	}
	return reply, nil
}

// ParseStructured decodes a model reply into a StructuredSummary. A
// surrounding markdown code fence is ignored. Any decode or shape problem
// is reported as domain.ErrSummarizationMalformed.
func ParseStructured(reply string) (*models.StructuredSummary, error) {
	body := stripFence(reply)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrSummarizationMalformed)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var sum models.StructuredSummary
	if err := dec.Decode(&sum); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrSummarizationMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", domain.ErrSummarizationMalformed)
	}
	if err := sum.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSummarizationMalformed, err)
	}
	return &sum, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string ("json", "JSON", ...)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func buildBriefPrompt(text string, sector models.Sector) string {
	return fmt.Sprintf(`You are a labor union representative and legal advocate for women in the %s industry.
Summarize this legislation in 3 sentences.
Focus on:
1. Does this affect my shift/hours?
2. Does this affect my bodily autonomy?
3. What action should I take?
Tone: Empathetic, clear, protective.

Legislation Text:
%s`, sector, text)
}

func buildStructuredPrompt(text string, sector models.Sector) string {
	return fmt.Sprintf(`You are a labor union rep and legal advocate for a %s worker.
Summarize this bill in 3 bullet points.
Tone: Protective, Clear, Actionable.
Return ONLY JSON: { "title": "...", "impact_score": "High"|"Medium"|"Low", "summary_points": ["...", "...", "..."], "action_item": "...", "tone": "..." }.

Bill Text:
%s`, sector, text)
}
