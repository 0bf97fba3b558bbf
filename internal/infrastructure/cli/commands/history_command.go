package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/doeshing/pmpilot/internal/app"
	"github.com/doeshing/pmpilot/internal/application/history"
	"github.com/doeshing/pmpilot/internal/application/ranking"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/infrastructure/cli/helpers"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(lazy *app.Lazy) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved analyses",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(lazy),
		newHistoryShowCommand(lazy),
		newHistoryRemoveCommand(lazy),
		newHistoryClearCommand(lazy),
		newHistorySearchCommand(lazy),
		newHistoryExportCommand(lazy),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(lazy *app.Lazy) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = container.Config.GetListLimit()
			}
			return listHistoryEntries(cmd.Context(), cmd.OutOrStdout(), container.History, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max entries to show (default from config, 0 shows all)")
	return cmd
}

// newHistoryShowCommand creates the 'history show' subcommand
func newHistoryShowCommand(lazy *app.Lazy) *cobra.Command {
	var (
		sortField string
		ascending bool
		noDocs    bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			prefs := container.Config.Preferences
			if sortField == "" {
				sortField = prefs.DefaultSort
			}
			field, err := ranking.ParseField(sortField)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("asc") {
				ascending = prefs.Ascending
			}
			view := helpers.View{Field: field, Ascending: ascending, Documents: !noDocs}
			return showHistoryEntry(cmd.Context(), cmd.OutOrStdout(), container.History, args[0], view)
		},
	}

	cmd.Flags().StringVar(&sortField, "sort", "", "Sort opportunities by name, rice_score or confidence")
	cmd.Flags().BoolVar(&ascending, "asc", false, "Sort ascending")
	cmd.Flags().BoolVar(&noDocs, "no-docs", false, "Do not print the generated documents")
	return cmd
}

// newHistoryRemoveCommand creates the 'history rm' subcommand
func newHistoryRemoveCommand(lazy *app.Lazy) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a saved analysis",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			if err := container.History.RemoveEntry(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(lazy *app.Lazy) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			if err := container.History.ClearHistory(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgHistoryCleared)
			return nil
		},
	}
}

// newHistorySearchCommand creates the 'history search' subcommand
func newHistorySearchCommand(lazy *app.Lazy) *cobra.Command {
	var (
		query string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search saved analyses by query text or file name",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return errors.New(ErrQueryRequired)
			}
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			return searchHistoryEntries(cmd.Context(), cmd.OutOrStdout(), container.History, query, limit)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search keyword")
	cmd.Flags().IntVar(&limit, "limit", DefaultSearchLimit, "Limit search results")
	return cmd
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(lazy *app.Lazy) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to a JSONL file (- for stdout, .gz to compress)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			return exportHistory(cmd.Context(), cmd.OutOrStdout(), container.History, args[0])
		},
	}
}

// listHistoryEntries prints up to limit entries as a table
func listHistoryEntries(ctx context.Context, out io.Writer, cache *history.Cache, limit int) error {
	if cache == nil {
		return errors.New(ErrHistoryUnavailable)
	}

	entries, err := cache.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	printEntryTable(out, limitEntries(entries, limit))
	return nil
}

// showHistoryEntry prints one entry, or a placeholder when the id is unknown
func showHistoryEntry(ctx context.Context, out io.Writer, cache *history.Cache, id string, view helpers.View) error {
	if cache == nil {
		return errors.New(ErrHistoryUnavailable)
	}

	entry, err := cache.GetEntry(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		fmt.Fprintf(out, "No analysis found for id %s\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	helpers.RenderEntry(out, entry, view)
	return nil
}

// searchHistoryEntries prints entries matching query
func searchHistoryEntries(ctx context.Context, out io.Writer, cache *history.Cache, query string, limit int) error {
	if cache == nil {
		return errors.New(ErrHistoryUnavailable)
	}

	entries, err := cache.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to search history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoMatches)
		return nil
	}

	printEntryTable(out, limitEntries(entries, limit))
	return nil
}

// exportHistory writes history as JSONL to path, or to out when path is "-".
// A ".gz" suffix gzips the file.
func exportHistory(ctx context.Context, out io.Writer, cache *history.Cache, path string) error {
	if cache == nil {
		return errors.New(ErrHistoryUnavailable)
	}

	if path == "-" {
		return cache.Export(ctx, out)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := writeExport(ctx, f, cache, strings.HasSuffix(path, ".gz")); err != nil {
		f.Close()
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}

	fmt.Fprintf(out, "Exported history to %s\n", path)
	return nil
}

func writeExport(ctx context.Context, w io.Writer, cache *history.Cache, compress bool) error {
	if !compress {
		return cache.Export(ctx, w)
	}
	zw := gzip.NewWriter(w)
	if err := cache.Export(ctx, zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func printEntryTable(out io.Writer, entries []domain.HistoryEntry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFILES\tOPPS\tQUERY")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			entry.ID,
			helpers.FormatAge(entry.CreatedAt()),
			len(entry.Files),
			len(entry.Result.Opportunities),
			helpers.Truncate(entry.Query, DefaultQueryWidth))
	}
	_ = tw.Flush()
}

func limitEntries(entries []domain.HistoryEntry, limit int) []domain.HistoryEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
