package tags

import (
	"slices"
	"strings"

	"github.com/nitesh/lega/pkg/models"
)

// General is assigned when no keyword matches.
const General = "general"

type rule struct {
	tag      string
	keywords []string
}

// rules are checked in order; output order follows this table.
var rules = []rule{
	{"reproductive_rights", []string{"abortion", "contraception", "reproductive", "pregnancy", "maternal"}},
	{"healthcare", []string{"health", "medical", "hospital", "medicaid", "medicare", "insurance"}},
	{"education", []string{"school", "teacher", "student", "education", "university", "college"}},
	{"lgbtq_rights", []string{"lgbtq", "transgender", "gay", "lesbian", "sexual orientation", "gender identity"}},
	{"voting_access", []string{"voting", "voter", "election", "ballot", "polling"}},
	{"employment", []string{"employment", "worker", "wage", "salary", "labor", "workplace"}},
	{"housing", []string{"housing", "rent", "tenant", "landlord", "eviction"}},
	{"criminal_justice", []string{"prison", "jail", "sentencing", "criminal", "police", "arrest"}},
	{"immigration", []string{"immigration", "immigrant", "visa", "asylum", "deportation"}},
	{"environment", []string{"environment", "climate", "pollution", "clean air", "clean water"}},
	{"civil_rights", []string{"discrimination", "civil rights", "equal protection", "rights"}},
	{"women", []string{"woman", "women", "female", "maternity", "breastfeeding", "pregnancy"}},
}

// Extract returns the topic tags matched by keywords in text, or
// ["general"] when nothing matches.
func Extract(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, r.tag)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{General}
	}
	return out
}

// ForBill tags a bill from its title and text and always includes the
// sector tag.
func ForBill(title, text string, sector models.Sector) []string {
	out := Extract(title + "\n" + text)
	s := string(sector)
	if s == "" || slices.Contains(out, s) {
		return out
	}
	if len(out) == 1 && out[0] == General {
		return []string{s}
	}
	return append(out, s)
}

// Intersects reports whether any interest is present in tags.
func Intersects(interests, tags []string) bool {
	for _, i := range interests {
		if slices.Contains(tags, i) {
			return true
		}
	}
	return false
}
