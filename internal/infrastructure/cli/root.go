package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/pmpilot/internal/app"
	"github.com/doeshing/pmpilot/internal/application/ranking"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/infrastructure/cli/commands"
	"github.com/doeshing/pmpilot/internal/infrastructure/cli/helpers"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command. The container is built lazily,
// after flags are parsed, and must be closed by the caller.
func NewRootCmd(opts Options) (*cobra.Command, *app.Lazy) {
	lazy := &app.Lazy{Options: app.Options{Verbose: opts.Verbose}}
	var debug bool

	askCmd := newAskCommand(lazy)

	root := &cobra.Command{
		Use:   "pmpilot [question]",
		Short: "pmpilot - product analysis assistant",
		Long:  "pmpilot sends product questions to the analysis pipeline and ranks the opportunities it finds.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				lazy.Options.Verbose = true
			}
		},
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return askCmd.RunE(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindAskFlags(root, askCmd)

	flags := root.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "Enable verbose logging")
	flags.StringVar(&lazy.Options.ConfigPath, "config", "", "Config file (default ~/.pmpilot/config.yaml)")
	flags.StringVar(&lazy.Options.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")

	root.AddCommand(
		askCmd,
		commands.NewHistoryCommand(lazy),
		commands.NewFilesCommand(lazy),
		commands.NewStagesCommand(lazy),
		commands.NewConfigCommand(lazy),
		commands.NewDoctorCommand(lazy),
		commands.NewVersionCommand(),
	)
	return root, lazy
}

// askFlags are shared by "ask" and the bare root invocation.
type askFlags struct {
	files      []string
	sortField  string
	ascending  bool
	noDocs     bool
	noProgress bool
	timeout    time.Duration
}

func newAskCommand(lazy *app.Lazy) *cobra.Command {
	flags := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Analyze a product question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := lazy.Get(cmd.Context())
			if err != nil {
				return err
			}
			// cmd may be root, which shares these flags.
			ascendingSet := cmd.Flags().Changed("asc")
			return runAsk(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), container, strings.Join(args, " "), *flags, ascendingSet)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.files, "file", "f", nil, "Uploaded document to use as context (repeatable)")
	cmd.Flags().StringVar(&flags.sortField, "sort", "", "Sort opportunities by name, rice_score or confidence")
	cmd.Flags().BoolVar(&flags.ascending, "asc", false, "Sort ascending")
	cmd.Flags().BoolVar(&flags.noDocs, "no-docs", false, "Do not print the generated documents")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Do not show stage progress")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Give up after this long (0 relies on the pipeline timeout)")
	return cmd
}

// bindAskFlags exposes the ask flags on root so "pmpilot <question>" accepts them too.
func bindAskFlags(root, askCmd *cobra.Command) {
	root.Flags().AddFlagSet(askCmd.Flags())
}

func runAsk(ctx context.Context, out, errOut io.Writer, container *app.Container, question string, flags askFlags, ascendingSet bool) error {
	view, err := resolveView(container.Config, flags, ascendingSet)
	if err != nil {
		return err
	}

	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	session, err := container.NewSession()
	if err != nil {
		return err
	}
	defer session.Controller.Dispose()

	var progress *Progress
	if !flags.noProgress {
		progress = NewProgress(errOut, session.Stages)
		progress.Start()
	}
	snap, err := session.Controller.Execute(ctx, question, flags.files)
	if progress != nil {
		progress.Stop()
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(err, domain.ErrEmptyQuery):
		return err
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return fmt.Errorf("analysis timed out after %s", flags.timeout)
	case ctxErr != nil:
		return errors.New("analysis cancelled")
	case err != nil && snap.Notice == nil:
		return err
	case err != nil:
		return errors.New(snap.Notice.Message)
	}

	if snap.Result != nil {
		helpers.RenderResult(out, *snap.Result, view)
	}
	if snap.Notice != nil && snap.Notice.Level == domain.NoticeWarning {
		fmt.Fprintf(errOut, "warning: %s\n", snap.Notice.Message)
	}
	if snap.EntryID != "" {
		fmt.Fprintf(errOut, "Saved to history as %s\n", snap.EntryID)
	}
	return nil
}

func resolveView(cfg domain.Config, flags askFlags, ascendingSet bool) (helpers.View, error) {
	raw := flags.sortField
	if raw == "" {
		raw = cfg.Preferences.DefaultSort
	}
	field, err := ranking.ParseField(raw)
	if err != nil {
		return helpers.View{}, err
	}
	ascending := cfg.Preferences.Ascending
	if ascendingSet {
		ascending = flags.ascending
	}
	return helpers.View{Field: field, Ascending: ascending, Documents: !flags.noDocs}, nil
}
