package models

import (
	"fmt"
	"strings"

	"github.com/nitesh/lega/internal/domain"
)

// Sector is the reader's occupational category. It frames the
// summarization prompt.
type Sector string

const (
	SectorHealthcare Sector = "healthcare"
	SectorEducation  Sector = "education"
	SectorService    Sector = "service"
	SectorCorporate  Sector = "corporate"
)

// Sectors lists every accepted sector.
var Sectors = []Sector{SectorHealthcare, SectorEducation, SectorService, SectorCorporate}

func (s Sector) Valid() bool {
	switch s {
	case SectorHealthcare, SectorEducation, SectorService, SectorCorporate:
		return true
	}
	return false
}

// ParseSector accepts any casing ("Healthcare" comes from the web client).
func ParseSector(s string) (Sector, error) {
	sec := Sector(strings.ToLower(strings.TrimSpace(s)))
	if !sec.Valid() {
		return "", fmt.Errorf("sector %q: %w", s, domain.ErrInvalidSector)
	}
	return sec, nil
}
