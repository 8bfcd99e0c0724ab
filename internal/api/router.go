package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/lega/internal/audio"
	"github.com/nitesh/lega/internal/config"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Server config.ServerConfig
	// AudioDir, when set, is served under /audio for the local uploader.
	AudioDir string
	Log      *slog.Logger
}

// NewRouter builds the gin engine with the standard middleware chain and
// every route registered.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http")

	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(log))
	r.Use(RequestLogger(log))
	r.Use(CORS(opts.Server.CORSOrigins))
	r.Use(RateLimit(opts.Server.RateLimit, time.Minute, log))

	if opts.AudioDir != "" {
		r.Static(audio.LocalPathPrefix, opts.AudioDir)
	}
	RegisterRoutes(r, h)
	return r
}
