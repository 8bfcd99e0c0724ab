package domain

import "errors"

// Sentinel errors shared by the ingestion pipeline and its adapters.
// Only ErrConfigurationMissing and ErrUpstreamUnavailable abort a batch;
// every other error is recorded against a single bill.
var (
	ErrConfigurationMissing     = errors.New("configuration missing")
	ErrUpstreamUnavailable      = errors.New("upstream unavailable")
	ErrSummarizationUnavailable = errors.New("summarization unavailable")
	ErrSummarizationMalformed   = errors.New("summarization malformed")
	ErrAudioGenerationFailed    = errors.New("audio generation failed")
	ErrPersistenceUnavailable   = errors.New("persistence unavailable")
	ErrInvalidSector            = errors.New("invalid sector")
	ErrInvalidSubscription      = errors.New("invalid subscription")
	ErrNotFound                 = errors.New("not found")

	// ErrNoCredential marks a per-provider credential that is absent. Unlike
	// ErrConfigurationMissing it never aborts a batch on its own.
	ErrNoCredential = errors.New("credential not configured")
)

// SummaryUnavailablePlaceholder is reported in place of a summary when no
// summarization credential is configured.
const SummaryUnavailablePlaceholder = "Summary unavailable: API key not configured."

// IsBatchFatal reports whether err must abort a whole ingestion batch.
func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrConfigurationMissing) || errors.Is(err, ErrUpstreamUnavailable)
}
