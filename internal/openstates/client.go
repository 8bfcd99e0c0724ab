package openstates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/domain"
	"github.com/nitesh/lega/pkg/models"
)

// Query selects one page of bills.
type Query struct {
	Q       string
	Page    int
	PerPage int
}

// Client fetches bills from the Open States v3 API.
type Client struct {
	http   *resty.Client
	apiKey string
	def    Query
	log    *slog.Logger
}

func New(cfg config.OpenStatesConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:   hc,
		apiKey: cfg.APIKey,
		def:    Query{Q: cfg.Query, Page: 1, PerPage: cfg.PerPage},
		log:    log.With("component", "openstates"),
	}
}

// Defaults returns the query used when the caller leaves fields empty.
func (c *Client) Defaults() Query { return c.def }

type billsResponse struct {
	Results []struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		OpenStatesURL string `json:"openstates_url"`
		Jurisdiction  *struct {
			Name string `json:"name"`
		} `json:"jurisdiction"`
		Abstracts []struct {
			Abstract string `json:"abstract"`
		} `json:"abstracts"`
	} `json:"results"`
}

// FetchBills returns one page of bills, most recently updated first.
// A missing API key yields domain.ErrConfigurationMissing; any transport
// failure or non-2xx status yields domain.ErrUpstreamUnavailable.
func (c *Client) FetchBills(ctx context.Context, q Query) ([]models.RawBill, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: OPEN_STATES_API_KEY", domain.ErrConfigurationMissing)
	}
	q = c.withDefaults(q)

	var body billsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", c.apiKey).
		SetQueryParams(map[string]string{
			"q":        q.Q,
			"sort":     "updated_desc",
			"page":     strconv.Itoa(q.Page),
			"per_page": strconv.Itoa(q.PerPage),
			"include":  "abstracts",
		}).
		Get("/bills")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.IsError() {
		c.log.Error("open states request failed", "status", resp.StatusCode(), "body", truncateBody(resp.String()))
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrUpstreamUnavailable, err)
	}

	bills := make([]models.RawBill, 0, len(body.Results))
	for _, r := range body.Results {
		if r.ID == "" {
			continue
		}
		state := models.DefaultState
		if r.Jurisdiction != nil && r.Jurisdiction.Name != "" {
			state = r.Jurisdiction.Name
		}

		parts := make([]string, 0, len(r.Abstracts))
		for _, a := range r.Abstracts {
			if s := strings.TrimSpace(a.Abstract); s != "" {
				parts = append(parts, s)
			}
		}
		text := strings.Join(parts, "\n\n")
		if text == "" {
			text = r.Title
		}

		bills = append(bills, models.RawBill{
			ID:    r.ID,
			Title: r.Title,
			State: state,
			Text:  text,
			URL:   r.OpenStatesURL,
		})
	}

	c.log.Info("fetched bills", "query", q.Q, "page", q.Page, "count", len(bills))
	return bills, nil
}

func (c *Client) withDefaults(q Query) Query {
	if q.Q == "" {
		q.Q = c.def.Q
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = c.def.PerPage
	}
	if q.PerPage < 1 {
		q.PerPage = 5
	}
	return q
}

func truncateBody(s string) string {
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
