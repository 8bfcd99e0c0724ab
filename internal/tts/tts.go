package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/domain"
)

// Synthesizer turns narration text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// New returns the configured synthesizer. A disabled provider or a missing
// API key yields a Disabled synthesizer.
func New(cfg config.TTSConfig, log *slog.Logger) Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "tts")

	switch {
	case cfg.Provider == "disabled":
		return Disabled{Reason: "tts disabled by configuration"}
	case cfg.APIKey == "":
		log.Warn("ELEVENLABS_API_KEY not set; audio narration disabled")
		return Disabled{Reason: "ELEVENLABS_API_KEY not set"}
	}
	return NewElevenLabs(cfg, log)
}

// Disabled always fails with domain.ErrAudioGenerationFailed.
type Disabled struct {
	Reason string
}

func (d Disabled) Synthesize(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", domain.ErrAudioGenerationFailed, d.Reason)
}

// ElevenLabs calls the ElevenLabs text-to-speech REST API.
type ElevenLabs struct {
	http     *resty.Client
	voiceID  string
	modelID  string
	settings voiceSettings
	log      *slog.Logger
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func NewElevenLabs(cfg config.TTSConfig, log *slog.Logger) *ElevenLabs {
	if log == nil {
		log = slog.Default()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("xi-api-key", cfg.APIKey).
		SetHeader("Accept", "audio/mpeg")
	return &ElevenLabs{
		http:    hc,
		voiceID: cfg.VoiceID,
		modelID: cfg.ModelID,
		settings: voiceSettings{
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
		},
		log: log,
	}
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty narration text", domain.ErrAudioGenerationFailed)
	}

	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("voice", e.voiceID).
		SetBody(ttsRequest{Text: text, ModelID: e.modelID, VoiceSettings: e.settings}).
		Post("/v1/text-to-speech/{voice}")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAudioGenerationFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		e.log.Error("elevenlabs request failed", "status", resp.StatusCode(), "body", string(resp.Body()))
		return nil, fmt.Errorf("%w: status %d", domain.ErrAudioGenerationFailed, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("%w: empty audio body", domain.ErrAudioGenerationFailed)
	}
	return resp.Body(), nil
}
