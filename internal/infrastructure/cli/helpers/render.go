package helpers

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/doeshing/pmpilot/internal/application/ranking"
	"github.com/doeshing/pmpilot/internal/domain"
)

// View selects how opportunities are ordered when a result is printed.
type View struct {
	Field     ranking.Field
	Ascending bool
	// Documents prints the generated markdown documents after the table.
	Documents bool
}

// DefaultView is highest RICE score first, documents included.
func DefaultView() View {
	return View{Field: ranking.DefaultField, Ascending: ranking.DefaultAscending, Documents: true}
}

// RenderResult prints an analysis result in plain text.
func RenderResult(out io.Writer, result domain.AnalysisResult, view View) {
	if result.QueryType != "" {
		fmt.Fprintf(out, "Query type: %s\n", result.QueryType)
	}
	if !result.Completed {
		fmt.Fprintln(out, "Note: the pipeline reported the analysis as incomplete")
	}

	if top := result.TopFeature; top != nil {
		fmt.Fprintf(out, "\nTop feature: %s (%s)\n", top.Name, describeScore(*top))
		if top.Description != "" {
			fmt.Fprintf(out, "  %s\n", top.Description)
		}
	}

	if len(result.Opportunities) > 0 {
		fmt.Fprintf(out, "\nOpportunities (by %s, %s):\n", view.Field, direction(view.Ascending))
		RenderOpportunities(out, ranking.Rank(result.Opportunities, view.Field, view.Ascending))
	} else {
		fmt.Fprintln(out, "\nNo opportunities identified.")
	}

	if !view.Documents {
		return
	}
	renderDocument(out, "Feature spec", result.FeatureSpec)
	renderDocument(out, "UI proposals", result.UIProposals)
	renderDocument(out, "Task breakdown", result.TaskBreakdown)
}

// RenderOpportunities prints one table row per opportunity in the given order.
func RenderOpportunities(out io.Writer, opportunities []domain.ScoredOpportunity) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tRICE\tCONFIDENCE\tCATEGORY")
	for i, opp := range opportunities {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			i+1,
			Truncate(opp.Name, 48),
			formatScore(opp),
			valueOr(string(opp.Confidence), "-"),
			valueOr(opp.Category, "-"))
	}
	_ = tw.Flush()
}

// RenderEntry prints a stored history entry followed by its result.
func RenderEntry(out io.Writer, entry domain.HistoryEntry, view View) {
	fmt.Fprintf(out, "ID: %s\n", entry.ID)
	fmt.Fprintf(out, "Query: %s\n", entry.Query)
	if len(entry.Files) > 0 {
		fmt.Fprintf(out, "Files: %s\n", strings.Join(entry.Files, ", "))
	}
	fmt.Fprintf(out, "Created: %s\n", FormatTimestamp(entry.CreatedAt()))
	RenderResult(out, entry.Result, view)
}

func renderDocument(out io.Writer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(out, "\n== %s ==\n", title)
	fmt.Fprintln(out, strings.TrimRight(body, "\n"))
}

func describeScore(opp domain.ScoredOpportunity) string {
	parts := make([]string, 0, 2)
	if opp.HasScore() {
		parts = append(parts, "RICE "+formatScore(opp))
	}
	if opp.Confidence != "" {
		parts = append(parts, string(opp.Confidence)+" confidence")
	}
	if len(parts) == 0 {
		return "unscored"
	}
	return strings.Join(parts, ", ")
}

func formatScore(opp domain.ScoredOpportunity) string {
	if !opp.HasScore() {
		return "-"
	}
	return fmt.Sprintf("%.1f", opp.Score())
}

func direction(ascending bool) string {
	if ascending {
		return "ascending"
	}
	return "descending"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
