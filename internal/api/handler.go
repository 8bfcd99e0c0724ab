package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/internal/scheduler"
	"github.com/nitesh/lega/internal/service"
	"github.com/nitesh/lega/pkg/models"
)

// Ingester runs one ingestion batch.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
}

// Triggerer runs the scheduled ingestion on demand.
type Triggerer interface {
	Trigger(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
}

// FeedReader lists and fetches stored bills.
type FeedReader interface {
	List(ctx context.Context, f models.FeedFilter) ([]models.FeedItem, error)
	Get(ctx context.Context, id string) (*models.Bill, error)
}

// Subscriber manages push subscriptions.
type Subscriber interface {
	VAPIDPublicKey() (string, error)
	Subscribe(ctx context.Context, sub models.PushSubscription, interests []string) (*models.Subscriber, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	ingester Ingester
	trigger  Triggerer
	feed     FeedReader
	subs     Subscriber
	health   Pinger
	log      *slog.Logger
}

// NewHandler wires the HTTP handlers. When trigger is nil
// /api/trigger-check runs the ingester directly. health may be nil.
func NewHandler(ingester Ingester, trigger Triggerer, feed FeedReader, subs Subscriber, health Pinger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		ingester: ingester,
		trigger:  trigger,
		feed:     feed,
		subs:     subs,
		health:   health,
		log:      log.With("component", "api"),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/ingest-laws", h.IngestLaws)
		api.POST("/ingest-laws", h.IngestLaws)
		api.POST("/trigger-check", h.TriggerCheck)
		api.GET("/feed", h.Feed)
		api.GET("/bills/:id", h.Bill)
		api.GET("/vapid-key", h.VAPIDKey)
		api.POST("/subscribe", h.Subscribe)
	}
}

// IngestLaws: GET|POST /api/ingest-laws?q=&sector=&page=&per_page=&force=
func (h *Handler) IngestLaws(c *gin.Context) {
	req, err := parseIngestRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, service.IngestResult{Processed: []service.BillResult{}, Error: err.Error()})
		return
	}
	h.runIngest(c, h.ingester.Ingest, req)
}

// TriggerCheck: POST /api/trigger-check
// Runs the scheduled ingestion once.
func (h *Handler) TriggerCheck(c *gin.Context) {
	req, err := parseIngestRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, service.IngestResult{Processed: []service.BillResult{}, Error: err.Error()})
		return
	}
	run := h.ingester.Ingest
	if h.trigger != nil {
		run = h.trigger.Trigger
	}
	h.runIngest(c, run, req)
}

type ingestFunc func(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)

func (h *Handler) runIngest(c *gin.Context, run ingestFunc, req service.IngestRequest) {
	res, err := run(c.Request.Context(), req)
	if err != nil {
		logger.FromContext(c.Request.Context(), h.log).Error("ingestion failed", "error", err)
		if res == nil {
			res = &service.IngestResult{Processed: []service.BillResult{}}
		}
		res.Success = false
		res.Error = err.Error()
		c.JSON(statusFor(err), res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseIngestRequest(c *gin.Context) (service.IngestRequest, error) {
	req := service.IngestRequest{Query: c.Query("q")}
	if s := c.Query("sector"); s != "" {
		sector, err := models.ParseSector(s)
		if err != nil {
			return req, err
		}
		req.Sector = sector
	}
	var err error
	if req.Page, err = intQuery(c, "page"); err != nil {
		return req, err
	}
	if req.PerPage, err = intQuery(c, "per_page"); err != nil {
		return req, err
	}
	if s := c.Query("force"); s != "" {
		if req.Force, err = strconv.ParseBool(s); err != nil {
			return req, errors.New("force: expected a boolean")
		}
	}
	return req, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New(name + ": expected a non-negative integer")
	}
	return n, nil
}

// Feed: GET /api/feed?sector=&state=&tag=&limit=
func (h *Handler) Feed(c *gin.Context) {
	filter := models.FeedFilter{
		State: c.Query("state"),
		Tag:   c.Query("tag"),
		Limit: parseLimit(c.Query("limit")),
	}
	if s := c.Query("sector"); s != "" {
		sector, err := models.ParseSector(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Sector = sector
	}

	items, err := h.feed.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"count": len(items),
			"limit": filter.Normalize().Limit,
		},
		"data": items,
	})
}

// Bill: GET /api/bills/:id
func (h *Handler) Bill(c *gin.Context) {
	b, err := h.feed.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// VAPIDKey: GET /api/vapid-key
func (h *Handler) VAPIDKey(c *gin.Context) {
	key, err := h.subs.VAPIDPublicKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VAPID key not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": key})
}

type subscribeRequest struct {
	Subscription models.PushSubscription `json:"subscription" binding:"required"`
	Interests    []string                `json:"interests"`
}

// Subscribe: POST /api/subscribe
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription: " + err.Error()})
		return
	}
	rec, err := h.subs.Subscribe(c.Request.Context(), req.Subscription, req.Interests)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Subscribed successfully",
		"user_id": rec.ID,
	})
}

// Health: GET /health
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), h.log).Error("request failed", "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSector), errors.Is(err, domain.ErrInvalidSubscription):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit returns 0 (the feed default) for anything unusable.
func parseLimit(s string) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return 0
	}
	return l
}
