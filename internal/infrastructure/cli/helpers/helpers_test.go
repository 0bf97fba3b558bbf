package helpers

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/pmpilot/internal/application/ranking"
	"github.com/doeshing/pmpilot/internal/domain"
)

func sampleResult() domain.AnalysisResult {
	top := domain.ScoredOpportunity{Name: "Bulk export", Description: "Export dashboards as CSV", Confidence: domain.ConfidenceHigh, RiceScore: domain.ScoreOf(42)}
	return domain.AnalysisResult{
		QueryType:  "feature_spec",
		Completed:  true,
		TopFeature: &top,
		Opportunities: []domain.ScoredOpportunity{
			{Name: "Dark mode", Confidence: domain.ConfidenceLow, RiceScore: domain.ScoreOf(3.5)},
			top,
			{Name: "SSO", Confidence: domain.ConfidenceMedium},
		},
		FeatureSpec:   "# Spec\nExport all the things\n",
		TaskBreakdown: "- [ ] build it",
	}
}

func TestRenderResultOrdersByView(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, sampleResult(), DefaultView())
	out := buf.String()

	assert.Contains(t, out, "Query type: feature_spec")
	assert.Contains(t, out, "Top feature: Bulk export (RICE 42.0, high confidence)")
	assert.Contains(t, out, "Opportunities (by rice_score, descending):")

	bulk := strings.Index(out, "1  Bulk export")
	dark := strings.Index(out, "2  Dark mode")
	sso := strings.Index(out, "3  SSO")
	require.True(t, bulk >= 0 && dark >= 0 && sso >= 0, out)
	assert.Less(t, bulk, dark)
	assert.Less(t, dark, sso)

	assert.Contains(t, out, "== Feature spec ==\n# Spec\nExport all the things\n")
	assert.Contains(t, out, "== Task breakdown ==")
	assert.NotContains(t, out, "== UI proposals ==")
}

func TestRenderResultAscendingName(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, sampleResult(), View{Field: ranking.FieldName, Ascending: true})
	out := buf.String()

	assert.Less(t, strings.Index(out, "1  Bulk export"), strings.Index(out, "2  Dark mode"))
	assert.Less(t, strings.Index(out, "2  Dark mode"), strings.Index(out, "3  SSO"))
	assert.NotContains(t, out, "== Feature spec ==")
}

func TestRenderResultEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, domain.AnalysisResult{}, DefaultView())
	out := buf.String()

	assert.Contains(t, out, "incomplete")
	assert.Contains(t, out, "No opportunities identified.")
}

func TestRenderOpportunitiesMissingScore(t *testing.T) {
	var buf bytes.Buffer
	RenderOpportunities(&buf, []domain.ScoredOpportunity{{Name: "SSO"}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"1", "SSO", "-", "-", "-"}, strings.Fields(lines[1]))
}

func TestRenderEntry(t *testing.T) {
	entry := domain.HistoryEntry{
		ID:        "entry-1",
		Query:     "what next?",
		Files:     []string{"interviews.pdf", "notes.docx"},
		Timestamp: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC).UnixMilli(),
		Result:    sampleResult(),
	}
	var buf bytes.Buffer
	RenderEntry(&buf, entry, DefaultView())
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "ID: entry-1\nQuery: what next?\nFiles: interviews.pdf, notes.docx\n"), out)
	assert.Contains(t, out, "Created: "+FormatTimestamp(entry.CreatedAt()))
	assert.Contains(t, out, "Bulk export")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a b c", Truncate("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "日本語...", Truncate("日本語のテキストです", 6))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "0 B", FormatSize(-1))
}

func TestTraverseNestedMap(t *testing.T) {
	data := map[string]interface{}{
		"history": map[string]interface{}{"backend": "sqlite"},
	}
	v, ok := TraverseNestedMap(data, []string{"history", "backend"})
	require.True(t, ok)
	assert.Equal(t, "sqlite", v)

	_, ok = TraverseNestedMap(data, []string{"history", "missing"})
	assert.False(t, ok)
	_, ok = TraverseNestedMap(data, []string{"history", "backend", "deeper"})
	assert.False(t, ok)
}
