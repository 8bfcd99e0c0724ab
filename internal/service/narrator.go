package service

import (
	"context"
	"log/slog"

	"github.com/nitesh/lega/internal/audio"
	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/internal/tts"
	"github.com/nitesh/lega/pkg/models"
)

// Narrator voices a summary and stores the clip. Failures never propagate:
// the bill is simply stored without audio.
type Narrator struct {
	synth    tts.Synthesizer
	uploader audio.Uploader
	log      *slog.Logger
}

func NewNarrator(synth tts.Synthesizer, uploader audio.Uploader, log *slog.Logger) *Narrator {
	if log == nil {
		log = slog.Default()
	}
	return &Narrator{synth: synth, uploader: uploader, log: log.With("component", "narrator")}
}

// Narrate returns the public URL of the narrated summary, or "" when
// synthesis or upload failed.
func (n *Narrator) Narrate(ctx context.Context, billID string, summary models.Summary) string {
	if n == nil || n.synth == nil {
		return ""
	}
	log := logger.FromContext(ctx, n.log).With("bill_id", billID)

	clip, err := n.synth.Synthesize(ctx, summary.NarrationText())
	if err != nil {
		log.Warn("audio generation failed", "error", err)
		return ""
	}
	if n.uploader == nil {
		log.Warn("no audio uploader configured")
		return ""
	}
	url, err := n.uploader.Upload(ctx, audio.ObjectName(billID), clip)
	if err != nil {
		log.Warn("audio upload failed", "error", err)
		return ""
	}
	log.Debug("audio stored", "url", url, "bytes", len(clip))
	return url
}
