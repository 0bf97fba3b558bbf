package domain

import "strings"

// Confidence is the qualitative certainty the pipeline attaches to an opportunity.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalises case and surrounding whitespace. Unknown values
// are returned verbatim so callers can decide whether to reject them.
func ParseConfidence(raw string) Confidence {
	return Confidence(strings.ToLower(strings.TrimSpace(raw)))
}

// Valid reports whether c is one of high, medium or low.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Rank maps the confidence to its ordinal weight. Unrecognised values rank 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// RICEComponents are the inputs the pipeline used to compute a RICE score.
type RICEComponents struct {
	Reach      float64 `json:"reach"`
	Impact     float64 `json:"impact"`
	Confidence float64 `json:"confidence"`
	Effort     float64 `json:"effort"`
}

// ScoredOpportunity is a candidate feature ranked by the pipeline.
type ScoredOpportunity struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Confidence     Confidence      `json:"confidence"`
	RiceScore      *float64        `json:"rice_score,omitempty"`
	Category       string          `json:"category,omitempty"`
	Evidence       []string        `json:"evidence,omitempty"`
	RiceComponents *RICEComponents `json:"rice_components,omitempty"`
}

// Score returns the RICE score, treating an absent score as 0.
func (o ScoredOpportunity) Score() float64 {
	if o.RiceScore == nil {
		return 0
	}
	return *o.RiceScore
}

// HasScore reports whether the pipeline produced a RICE score.
func (o ScoredOpportunity) HasScore() bool {
	return o.RiceScore != nil
}

// Clone returns a copy that shares no memory with o.
func (o ScoredOpportunity) Clone() ScoredOpportunity {
	out := o
	if o.RiceScore != nil {
		score := *o.RiceScore
		out.RiceScore = &score
	}
	if o.Evidence != nil {
		out.Evidence = append([]string(nil), o.Evidence...)
	}
	if o.RiceComponents != nil {
		components := *o.RiceComponents
		out.RiceComponents = &components
	}
	return out
}

// ScoreOf is a convenience for building opportunities with a score.
func ScoreOf(v float64) *float64 {
	return &v
}

// AnalysisResult is what the remote pipeline returns for one query.
// The three documents are markdown; an empty string means the pipeline did
// not produce that document.
type AnalysisResult struct {
	QueryType     string              `json:"query_type,omitempty"`
	Completed     bool                `json:"completed"`
	TopFeature    *ScoredOpportunity  `json:"top_feature,omitempty"`
	FeatureSpec   string              `json:"feature_spec,omitempty"`
	UIProposals   string              `json:"ui_proposals,omitempty"`
	TaskBreakdown string              `json:"task_breakdown,omitempty"`
	Opportunities []ScoredOpportunity `json:"opportunities,omitempty"`
}

// Clone returns a deep copy of the result.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	if r.TopFeature != nil {
		top := r.TopFeature.Clone()
		out.TopFeature = &top
	}
	if r.Opportunities != nil {
		out.Opportunities = make([]ScoredOpportunity, len(r.Opportunities))
		for i, opp := range r.Opportunities {
			out.Opportunities[i] = opp.Clone()
		}
	}
	return out
}

// HasDocuments reports whether any generated document is present.
func (r AnalysisResult) HasDocuments() bool {
	return r.FeatureSpec != "" || r.UIProposals != "" || r.TaskBreakdown != ""
}
