package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalPathPrefix is the URL path under which Local files are served.
const LocalPathPrefix = "/audio"

// Local writes clips under a directory that the HTTP server exposes at
// LocalPathPrefix.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, publicBaseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: create dir %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + name)[1:]
	if clean == "" {
		return "", fmt.Errorf("audio: invalid object name %q", name)
	}

	path := filepath.Join(l.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("audio: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audio: write %s: %w", path, err)
	}
	return l.baseURL + LocalPathPrefix + "/" + filepath.ToSlash(clean), nil
}
