package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/pmpilot/internal/app"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/infrastructure/cli/helpers"
	"github.com/doeshing/pmpilot/internal/ports"
)

// NewFilesCommand creates the files command for the documents used as query context
func NewFilesCommand(lazy *app.Lazy) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Manage documents available to the pipeline",
	}

	filesCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded documents",
			RunE: func(cmd *cobra.Command, args []string) error {
				container, err := lazy.Get(cmd.Context())
				if err != nil {
					return err
				}
				return listDocuments(cmd.Context(), cmd.OutOrStdout(), documentService(container))
			},
		},
		&cobra.Command{
			Use:   "upload <path>...",
			Short: "Upload PDF or DOCX documents",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				container, err := lazy.Get(cmd.Context())
				if err != nil {
					return err
				}
				for _, path := range args {
					if err := uploadDocument(cmd.Context(), cmd.OutOrStdout(), documentService(container), path); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)

	return filesCmd
}

func documentService(container *app.Container) ports.DocumentService {
	if container.Pipeline == nil {
		return nil
	}
	return container.Pipeline
}

// listDocuments prints the documents the pipeline knows about
func listDocuments(ctx context.Context, out io.Writer, docs ports.DocumentService) error {
	if docs == nil {
		return errors.New(ErrDocumentsUnavailable)
	}

	files, err := docs.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, MsgNoDocuments)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, helpers.FormatSize(f.Size), helpers.FormatTimestamp(f.ModifiedAt()))
	}
	return tw.Flush()
}

// uploadDocument sends the file at path to the document service
func uploadDocument(ctx context.Context, out io.Writer, docs ports.DocumentService, path string) error {
	if docs == nil {
		return errors.New(ErrDocumentsUnavailable)
	}

	name := filepath.Base(path)
	if !domain.IsSupportedDocument(name) {
		return fmt.Errorf("%s: only PDF and DOCX files are supported", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result, err := docs.Upload(ctx, name, f)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}

	fmt.Fprintf(out, "Uploaded %s", result.Filename)
	switch {
	case result.NumPages > 0:
		fmt.Fprintf(out, " (%s, %d pages)", result.FileType, result.NumPages)
	case result.NumParagraphs > 0:
		fmt.Fprintf(out, " (%s, %d paragraphs)", result.FileType, result.NumParagraphs)
	case result.FileType != "":
		fmt.Fprintf(out, " (%s)", result.FileType)
	}
	fmt.Fprintln(out)
	return nil
}
