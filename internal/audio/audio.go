package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nitesh/lega/internal/config"
)

// Uploader stores an encoded audio clip and returns a URL clients can fetch.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

const contentType = "audio/mpeg"

// New returns the uploader selected by cfg.Backend.
func New(ctx context.Context, cfg config.AudioConfig) (Uploader, error) {
	switch cfg.Backend {
	case "minio":
		m, err := NewMinio(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	case "local", "":
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("audio: unknown backend %q", cfg.Backend)
	}
}

// ObjectName derives a unique, path-safe object name for a bill's narration.
func ObjectName(billID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, billID)
	return fmt.Sprintf("bills/%s-%s.mp3", safe, uuid.NewString()[:8])
}
