// Package ranking orders scored opportunities for display. It never mutates
// its input.
package ranking

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/doeshing/pmpilot/internal/domain"
)

// Field is a sortable opportunity attribute.
type Field string

const (
	FieldName       Field = "name"
	FieldRiceScore  Field = "rice_score"
	FieldConfidence Field = "confidence"
)

// DefaultField and DefaultAscending give the initial view: highest RICE first.
const (
	DefaultField     = FieldRiceScore
	DefaultAscending = false
)

// ParseField accepts the field names used on the wire and a few aliases.
func ParseField(raw string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "rice", "rice_score", "score":
		return FieldRiceScore, nil
	case "name":
		return FieldName, nil
	case "confidence":
		return FieldConfidence, nil
	default:
		return "", fmt.Errorf("unknown sort field %q (want name, rice_score or confidence)", raw)
	}
}

// collator is shared; collate.Collator is not safe for concurrent use.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.English)
)

func compareNames(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// Rank returns a new slice ordered by field. Ties keep their original order.
// An unknown field returns an unchanged copy.
func Rank(opportunities []domain.ScoredOpportunity, field Field, ascending bool) []domain.ScoredOpportunity {
	out := slices.Clone(opportunities)
	cmp := comparator(field)
	if cmp == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b domain.ScoredOpportunity) int {
		if ascending {
			return cmp(a, b)
		}
		return cmp(b, a)
	})
	return out
}

func comparator(field Field) func(a, b domain.ScoredOpportunity) int {
	switch field {
	case FieldName:
		return func(a, b domain.ScoredOpportunity) int {
			return compareNames(a.Name, b.Name)
		}
	case FieldRiceScore:
		return func(a, b domain.ScoredOpportunity) int {
			return compareFloat(a.Score(), b.Score())
		}
	case FieldConfidence:
		return func(a, b domain.ScoredOpportunity) int {
			return a.Confidence.Rank() - b.Confidence.Rank()
		}
	default:
		return nil
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
