package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reviseCmd = &cobra.Command{
	Use:   "revise [document-id] [instruction]",
	Short: "Propose LLM revisions to a document",
	Long: `Asks the LLM to revise an indexed document according to the
instruction. The proposed changes are stored as a workflow for review
with the changes commands; nothing is written to the file until
accepted changes are applied.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRevise,
}

func init() {
	rootCmd.AddCommand(reviseCmd)
}

func runRevise(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	documentID := args[0]
	instruction := strings.Join(args[1:], " ")

	ctx := context.Background()
	workflow, err := revisionService.Propose(ctx, documentID, instruction)
	if err != nil {
		return fmt.Errorf("revise failed: %w", err)
	}

	cmd.Printf("Workflow %s: %d proposed changes\n\n", workflow.ID, len(workflow.Changes))
	printChanges(cmd, workflow.Changes)
	cmd.Printf("Review with: soprev changes show %s\n", workflow.ID)
	return nil
}
