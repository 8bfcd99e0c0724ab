package models

import (
	"fmt"
	"strings"
	"time"

	dbtypes "github.com/nitesh/lega/internal/db"
	"github.com/nitesh/lega/internal/domain"
)

// DefaultState is stored when the provider does not report a jurisdiction.
const DefaultState = "Unknown"

// Bill is the persisted record for one piece of legislation.
type Bill struct {
	BillID    string              `db:"bill_id" json:"bill_id"`
	State     string              `db:"state" json:"state"`
	Title     string              `db:"title" json:"title"`
	Summary   Summary             `db:"summary" json:"summary"`
	AudioURL  string              `db:"audio_url" json:"audio_url"`
	Tags      dbtypes.StringSlice `db:"tags" json:"tags"`
	Sector    Sector              `db:"sector" json:"sector"`
	SourceURL string              `db:"source_url" json:"source_url"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// Validate checks the fields the store requires before a write.
func (b *Bill) Validate() error {
	if strings.TrimSpace(b.BillID) == "" {
		return fmt.Errorf("bill: empty bill_id")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("bill %s: empty title", b.BillID)
	}
	if b.Summary.IsZero() {
		return fmt.Errorf("bill %s: empty summary", b.BillID)
	}
	if !b.Sector.Valid() {
		return fmt.Errorf("bill %s: sector %q: %w", b.BillID, b.Sector, domain.ErrInvalidSector)
	}
	return nil
}

// RawBill is one entry returned by the legislative-data provider.
type RawBill struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// FeedItem is the presentation-ready shape of a bill for the feed.
type FeedItem struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	State         string      `json:"state"`
	Sector        Sector      `json:"sector"`
	ImpactScore   ImpactScore `json:"impact_score,omitempty"`
	SummaryPoints []string    `json:"summary_points"`
	ActionItem    string      `json:"action_item,omitempty"`
	Tone          string      `json:"tone,omitempty"`
	AudioURL      string      `json:"audio_url"`
	Tags          []string    `json:"tags"`
	URL           string      `json:"url,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewFeedItem flattens a stored bill. Plain-text summaries become a single
// summary point.
func NewFeedItem(b *Bill) FeedItem {
	item := FeedItem{
		ID:            b.BillID,
		Title:         b.Title,
		State:         b.State,
		Sector:        b.Sector,
		SummaryPoints: []string{},
		AudioURL:      b.AudioURL,
		Tags:          []string(b.Tags),
		URL:           b.SourceURL,
		UpdatedAt:     b.UpdatedAt,
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if s := b.Summary.Structured; s != nil {
		if s.Title != "" {
			item.Title = s.Title
		}
		item.ImpactScore = s.ImpactScore
		item.SummaryPoints = append(item.SummaryPoints, s.SummaryPoints...)
		item.ActionItem = s.ActionItem
		item.Tone = s.Tone
	} else if b.Summary.Text != "" {
		item.SummaryPoints = append(item.SummaryPoints, b.Summary.Text)
	}
	return item
}

// FeedFilter narrows a feed listing. Zero values mean "any".
type FeedFilter struct {
	Sector Sector
	State  string
	Tag    string
	Limit  int
}

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// Normalize clamps Limit into [1, MaxFeedLimit], using DefaultFeedLimit
// when unset.
func (f FeedFilter) Normalize() FeedFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultFeedLimit
	case f.Limit > MaxFeedLimit:
		f.Limit = MaxFeedLimit
	}
	return f
}
