package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doeshing/pmpilot/internal/domain"
)

// queryResponse is the JSON body of POST /api/query. The generated documents
// arrive twice: structured under feature_spec etc. and rendered under the
// *_markdown keys. Only the markdown is kept.
type queryResponse struct {
	QueryType             string            `json:"query_type"`
	Completed             bool              `json:"completed"`
	TopFeature            *wireOpportunity  `json:"top_feature"`
	FeatureSpecMarkdown   string            `json:"feature_spec_markdown"`
	FeatureSpec           json.RawMessage   `json:"feature_spec"`
	UIProposalsMarkdown   string            `json:"ui_proposals_markdown"`
	UIProposals           json.RawMessage   `json:"ui_proposals"`
	TaskBreakdownMarkdown string            `json:"task_breakdown_markdown"`
	TaskBreakdown         json.RawMessage   `json:"task_breakdown"`
	AllOpportunities      []wireOpportunity `json:"all_opportunities"`
}

type wireOpportunity struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Confidence     string                 `json:"confidence"`
	RiceScore      *float64               `json:"rice_score"`
	Category       string                 `json:"category"`
	Evidence       json.RawMessage        `json:"evidence"`
	RiceComponents *domain.RICEComponents `json:"rice_components"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

type filesResponse struct {
	Files []domain.FileInfo `json:"files"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Details  struct {
		NumPages      *int `json:"num_pages"`
		NumParagraphs *int `json:"num_paragraphs"`
	} `json:"details"`
}

// warnFunc receives notes about fields that were repaired while decoding.
type warnFunc func(msg string, fields map[string]interface{})

func (r queryResponse) toDomain(warn warnFunc) (domain.AnalysisResult, error) {
	result := domain.AnalysisResult{
		QueryType:     r.QueryType,
		Completed:     r.Completed,
		FeatureSpec:   document(r.FeatureSpecMarkdown, r.FeatureSpec),
		UIProposals:   document(r.UIProposalsMarkdown, r.UIProposals),
		TaskBreakdown: document(r.TaskBreakdownMarkdown, r.TaskBreakdown),
	}
	if r.TopFeature != nil {
		top, err := r.TopFeature.toDomain(warn)
		if err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("top_feature: %w", err)
		}
		result.TopFeature = &top
	}
	for i, raw := range r.AllOpportunities {
		opp, err := raw.toDomain(warn)
		if err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("all_opportunities[%d]: %w", i, err)
		}
		result.Opportunities = append(result.Opportunities, opp)
	}
	return result, nil
}

// toDomain fails only when the name is missing. A missing confidence becomes
// medium, the scorer's own default; an unknown one is kept and ranks lowest.
func (w wireOpportunity) toDomain(warn warnFunc) (domain.ScoredOpportunity, error) {
	if strings.TrimSpace(w.Name) == "" {
		return domain.ScoredOpportunity{}, fmt.Errorf("opportunity without name")
	}
	confidence := domain.ParseConfidence(w.Confidence)
	switch {
	case confidence == "":
		confidence = domain.ConfidenceMedium
		warn("opportunity without confidence, assuming medium", map[string]interface{}{
			"opportunity": w.Name,
		})
	case !confidence.Valid():
		warn("opportunity with unknown confidence", map[string]interface{}{
			"opportunity": w.Name,
			"confidence":  w.Confidence,
		})
	}
	opp := domain.ScoredOpportunity{
		Name:           w.Name,
		Description:    w.Description,
		Confidence:     confidence,
		RiceScore:      w.RiceScore,
		Category:       w.Category,
		Evidence:       evidence(w.Evidence),
		RiceComponents: w.RiceComponents,
	}
	return opp, nil
}

// document prefers the rendered markdown and falls back to a plain string
// body. Structured bodies without markdown are dropped.
func document(markdown string, raw json.RawMessage) string {
	if markdown != "" {
		return markdown
	}
	var text string
	if len(raw) > 0 && json.Unmarshal(raw, &text) == nil {
		return text
	}
	return ""
}

// evidence accepts a list of quotes. Anything else is ignored.
func evidence(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var quotes []string
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return nil
	}
	return quotes
}

// message extracts the human readable text of an error body. FastAPI puts it
// under detail, the pipeline's own handlers under error.
func (e errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	var detail string
	if len(e.Detail) > 0 && json.Unmarshal(e.Detail, &detail) == nil {
		return detail
	}
	return ""
}
