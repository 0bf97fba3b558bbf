package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/pmpilot/internal/app"
	"github.com/doeshing/pmpilot/internal/domain"
	configinfra "github.com/doeshing/pmpilot/internal/infrastructure/config"
)

// NewStagesCommand creates the stages command
func NewStagesCommand(lazy *app.Lazy) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Show the pipeline stages animated during an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configinfra.NewFileLoader(lazy.Options.ConfigPath).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return displayStages(cmd.OutOrStdout(), cfg)
		},
	}
}

// displayStages prints each stage with the time it stays active
func displayStages(out io.Writer, cfg domain.Config) error {
	schedule, err := cfg.StageSchedule()
	if err != nil {
		return err
	}
	stages := cfg.PipelineStages()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tLABEL\tACTIVE FOR\tDESCRIPTION")
	for i, stage := range stages {
		active := "until done"
		if i < len(schedule) && i < len(stages)-1 {
			active = schedule[i].String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, stage.ID, stage.Label, active, stage.Description)
	}
	return tw.Flush()
}
