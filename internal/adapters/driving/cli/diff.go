package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff [original.docx] [revised.docx]",
	Short: "Detect changes between two docx files",
	Long: `Compares two .docx files paragraph by paragraph and stores the
detected changes as a workflow. When the original file is indexed the
workflow is linked to its document for review and apply.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	workflow, err := revisionService.Diff(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	if len(workflow.Changes) == 0 {
		cmd.Println("No changes detected.")
		return nil
	}

	cmd.Printf("Workflow %s: %d detected changes\n\n", workflow.ID, len(workflow.Changes))
	printChanges(cmd, workflow.Changes)
	return nil
}
