package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nitesh/lega/pkg/models"
)

// Validate checks enum-like settings and numeric bounds. Provider
// credentials are deliberately not required here: their absence is
// reported per request with a named error.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"postgres", "sqlite", "dynamodb"}, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres, sqlite or dynamodb", c.Database.Driver))
	}
	if c.Database.Driver != "dynamodb" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if !slices.Contains([]string{"gemini", "openai", "anthropic"}, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q must be gemini, openai or anthropic", c.LLM.Provider))
	}
	if !slices.Contains([]string{"elevenlabs", "disabled"}, c.TTS.Provider) {
		errs = append(errs, fmt.Errorf("tts.provider %q must be elevenlabs or disabled", c.TTS.Provider))
	}
	if !slices.Contains([]string{"local", "minio"}, c.Audio.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend %q must be local or minio", c.Audio.Backend))
	}
	if !slices.Contains([]string{"structured", "brief"}, c.Pipeline.SummaryMode) {
		errs = append(errs, fmt.Errorf("pipeline.summary_mode %q must be structured or brief", c.Pipeline.SummaryMode))
	}
	if _, err := models.ParseSector(c.Pipeline.DefaultSector); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.default_sector: %w", err))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers))
	}
	if c.OpenStates.PerPage < 1 || c.OpenStates.PerPage > 20 {
		errs = append(errs, fmt.Errorf("openstates.per_page must be between 1 and 20, got %d", c.OpenStates.PerPage))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Scheduler.Interval < 0 {
		errs = append(errs, errors.New("scheduler.interval must not be negative"))
	}

	return errors.Join(errs...)
}
