package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	dbtypes "github.com/nitesh/lega/internal/db"
)

// ImpactScore is a coarse severity label for a bill's effect on a sector.
type ImpactScore string

const (
	ImpactHigh   ImpactScore = "High"
	ImpactMedium ImpactScore = "Medium"
	ImpactLow    ImpactScore = "Low"
)

func (s ImpactScore) Valid() bool {
	return s == ImpactHigh || s == ImpactMedium || s == ImpactLow
}

// StructuredSummary is the long-form summarizer output.
type StructuredSummary struct {
	Title         string      `json:"title"`
	ImpactScore   ImpactScore `json:"impact_score"`
	SummaryPoints []string    `json:"summary_points"`
	ActionItem    string      `json:"action_item"`
	Tone          string      `json:"tone"`
}

// Validate checks the decoded shape. Model output is untrusted, so every
// field the narrator and the feed depend on must be present.
func (s *StructuredSummary) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if !s.ImpactScore.Valid() {
		return fmt.Errorf("impact_score %q not one of High, Medium, Low", s.ImpactScore)
	}
	if len(s.SummaryPoints) == 0 {
		return fmt.Errorf("no summary_points")
	}
	for i, p := range s.SummaryPoints {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("summary_points[%d] is empty", i)
		}
	}
	if strings.TrimSpace(s.ActionItem) == "" {
		return fmt.Errorf("missing action_item")
	}
	return nil
}

// Summary holds either a plain-text summary (short-form path) or a
// structured one. It encodes as a JSON string or a JSON object
// respectively.
type Summary struct {
	Text       string
	Structured *StructuredSummary
}

func TextSummary(text string) Summary { return Summary{Text: text} }

func StructuredOf(s *StructuredSummary) Summary { return Summary{Structured: s} }

func (s Summary) IsZero() bool {
	return s.Structured == nil && strings.TrimSpace(s.Text) == ""
}

// NarrationText is the text read aloud for this summary.
func (s Summary) NarrationText() string {
	if st := s.Structured; st != nil {
		return fmt.Sprintf("%s. Impact Score: %s. %s. Action Item: %s",
			st.Title, st.ImpactScore, strings.Join(st.SummaryPoints, ". "), st.ActionItem)
	}
	return s.Text
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Structured != nil {
		return json.Marshal(s.Structured)
	}
	return json.Marshal(s.Text)
}

func (s *Summary) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = Summary{}
		return nil
	case b[0] == '"':
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		*s = TextSummary(text)
		return nil
	default:
		var st StructuredSummary
		if err := json.Unmarshal(b, &st); err != nil {
			return err
		}
		*s = StructuredOf(&st)
		return nil
	}
}

// Value implements driver.Valuer
func (s Summary) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *Summary) Scan(src interface{}) error {
	if src == nil {
		*s = Summary{}
		return nil
	}
	var raw json.RawMessage
	if err := dbtypes.ScanJSON(src, &raw); err != nil {
		return err
	}
	return s.UnmarshalJSON(raw)
}
