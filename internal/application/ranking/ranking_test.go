package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/pmpilot/internal/domain"
)

func scores(opps []domain.ScoredOpportunity) []*float64 {
	out := make([]*float64, len(opps))
	for i, o := range opps {
		out[i] = o.RiceScore
	}
	return out
}

func names(opps []domain.ScoredOpportunity) []string {
	out := make([]string, len(opps))
	for i, o := range opps {
		out[i] = o.Name
	}
	return out
}

func TestRankByRiceScore(t *testing.T) {
	opps := []domain.ScoredOpportunity{
		{Name: "three", RiceScore: domain.ScoreOf(3)},
		{Name: "nine", RiceScore: domain.ScoreOf(9)},
		{Name: "none"},
	}

	desc := Rank(opps, FieldRiceScore, false)
	assert.Equal(t, []string{"nine", "three", "none"}, names(desc))

	asc := Rank(opps, FieldRiceScore, true)
	assert.Equal(t, []string{"none", "three", "nine"}, names(asc))
	assert.Nil(t, scores(asc)[0])
}

func TestRankByConfidence(t *testing.T) {
	opps := []domain.ScoredOpportunity{
		{Name: "a", Confidence: domain.ConfidenceLow},
		{Name: "b", Confidence: domain.ConfidenceHigh},
		{Name: "c", Confidence: domain.ConfidenceMedium},
	}

	desc := Rank(opps, FieldConfidence, false)
	assert.Equal(t, []string{"b", "c", "a"}, names(desc))

	withUnknown := append(opps, domain.ScoredOpportunity{Name: "d", Confidence: "maybe"})
	asc := Rank(withUnknown, FieldConfidence, true)
	assert.Equal(t, []string{"d", "a", "c", "b"}, names(asc))
}

func TestRankByNameIsLocaleAwareAndStable(t *testing.T) {
	opps := []domain.ScoredOpportunity{
		{Name: "beta", Description: "first"},
		{Name: "Alpha"},
		{Name: "alpha"},
		{Name: "beta", Description: "second"},
	}

	asc := Rank(opps, FieldName, true)
	require.Len(t, asc, 4)
	assert.Equal(t, "beta", asc[2].Name)
	assert.Equal(t, "first", asc[2].Description)
	assert.Equal(t, "second", asc[3].Description)
	// Case differences sort next to each other rather than by byte value.
	assert.ElementsMatch(t, []string{"Alpha", "alpha"}, names(asc[:2]))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	opps := []domain.ScoredOpportunity{
		{Name: "low", RiceScore: domain.ScoreOf(1)},
		{Name: "high", RiceScore: domain.ScoreOf(5)},
	}
	_ = Rank(opps, FieldRiceScore, false)
	assert.Equal(t, []string{"low", "high"}, names(opps))
}

func TestRankTiesKeepOriginalOrder(t *testing.T) {
	opps := []domain.ScoredOpportunity{
		{Name: "x", RiceScore: domain.ScoreOf(2)},
		{Name: "y", RiceScore: domain.ScoreOf(2)},
		{Name: "z", RiceScore: domain.ScoreOf(2)},
	}
	assert.Equal(t, []string{"x", "y", "z"}, names(Rank(opps, FieldRiceScore, false)))
	assert.Equal(t, []string{"x", "y", "z"}, names(Rank(opps, FieldRiceScore, true)))
}

func TestRankUnknownFieldReturnsCopy(t *testing.T) {
	opps := []domain.ScoredOpportunity{{Name: "b"}, {Name: "a"}}
	out := Rank(opps, Field("effort"), true)
	assert.Equal(t, []string{"b", "a"}, names(out))
	out[0].Name = "changed"
	assert.Equal(t, "b", opps[0].Name)
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in      string
		want    Field
		wantErr bool
	}{
		{"", FieldRiceScore, false},
		{"RICE", FieldRiceScore, false},
		{"name", FieldName, false},
		{" confidence ", FieldConfidence, false},
		{"effort", "", true},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
