package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Review and apply proposed document changes",
	Long: `Manage change workflows produced by revise and diff.
Each change is accepted or rejected individually; apply writes all
accepted changes back to the document file.`,
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change workflows",
	Args:  cobra.NoArgs,
	RunE:  runChangesList,
}

var changesShowCmd = &cobra.Command{
	Use:   "show [workflow-id]",
	Short: "Show a workflow and its changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesShow,
}

var changesAcceptCmd = &cobra.Command{
	Use:   "accept [workflow-id] [change-id]",
	Short: "Accept a proposed change",
	Args:  cobra.ExactArgs(2),
	RunE:  runChangesAccept,
}

var changesRejectCmd = &cobra.Command{
	Use:   "reject [workflow-id] [change-id]",
	Short: "Reject a proposed change",
	Args:  cobra.ExactArgs(2),
	RunE:  runChangesReject,
}

var changesApplyCmd = &cobra.Command{
	Use:   "apply [workflow-id]",
	Short: "Write accepted changes to the document",
	Long: `Writes all accepted changes in the workflow to the document file.
By default the document is edited in place; use --out to write the
revised document elsewhere.`,
	Args: cobra.ExactArgs(1),
	RunE: runChangesApply,
}

var changesCancelCmd = &cobra.Command{
	Use:   "cancel [workflow-id]",
	Short: "Abandon a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesCancel,
}

// applyOut is the --out flag for the apply command.
var applyOut string

func init() {
	changesApplyCmd.Flags().StringVarP(&applyOut, "out", "o", "", "path to write the revised document")

	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesShowCmd)
	changesCmd.AddCommand(changesAcceptCmd)
	changesCmd.AddCommand(changesRejectCmd)
	changesCmd.AddCommand(changesApplyCmd)
	changesCmd.AddCommand(changesCancelCmd)
	rootCmd.AddCommand(changesCmd)
}

func runChangesList(cmd *cobra.Command, _ []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	workflows, err := revisionService.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	if len(workflows) == 0 {
		cmd.Println("No change workflows found.")
		return nil
	}

	for i := range workflows {
		w := &workflows[i]
		cmd.Printf("  %s  [%s]  %s\n", w.ID, w.Status, w.Instruction)
		cmd.Printf("      Document: %s, %d changes, updated %s\n",
			w.DocumentID, len(w.Changes), w.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("\nTotal: %d workflows\n", len(workflows))
	return nil
}

func runChangesShow(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	workflow, err := revisionService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get workflow: %w", err)
	}

	cmd.Printf("Workflow: %s\n\n", workflow.ID)
	cmd.Printf("  Document:    %s\n", workflow.DocumentID)
	cmd.Printf("  Status:      %s\n", workflow.Status)
	cmd.Printf("  Instruction: %s\n", workflow.Instruction)
	cmd.Printf("  Created:     %s\n\n", workflow.CreatedAt.Format("2006-01-02 15:04:05"))

	printChanges(cmd, workflow.Changes)
	return nil
}

func runChangesAccept(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	if err := revisionService.Accept(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to accept change: %w", err)
	}

	cmd.Printf("Change %s accepted.\n", args[1])
	return nil
}

func runChangesReject(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	if err := revisionService.Reject(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to reject change: %w", err)
	}

	cmd.Printf("Change %s rejected.\n", args[1])
	return nil
}

func runChangesApply(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	report, err := revisionService.Apply(ctx, args[0], applyOut)
	if err != nil {
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	cmd.Printf("Applied %d changes (%d failed) to %s\n",
		report.Applied, report.Failed, report.OutPath)
	if report.Remaining > 0 {
		cmd.Printf("%d changes still await review.\n", report.Remaining)
	}
	return nil
}

func runChangesCancel(cmd *cobra.Command, args []string) error {
	if revisionService == nil {
		return errors.New("revision service not configured")
	}

	ctx := context.Background()
	if err := revisionService.Cancel(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to cancel workflow: %w", err)
	}

	cmd.Printf("Workflow %s cancelled.\n", args[0])
	return nil
}

// printChanges renders a change list with location and before/after
// values.
func printChanges(cmd *cobra.Command, changes []domain.DocumentChange) {
	for i := range changes {
		c := &changes[i]
		cmd.Printf("  %s  [%s] %s at %s\n", c.ID, c.Status, c.Type, describeLocation(c.Location))
		if c.Description != "" {
			cmd.Printf("      %s\n", c.Description)
		}
		if c.OldValue != "" {
			cmd.Printf("      - %s\n", c.OldValue)
		}
		if c.NewValue != "" {
			cmd.Printf("      + %s\n", c.NewValue)
		}
		if c.Error != "" {
			cmd.Printf("      error: %s\n", c.Error)
		}
		cmd.Println()
	}
}

func describeLocation(loc domain.ChangeLocation) string {
	switch loc.Kind {
	case "paragraph":
		if loc.Paragraph != nil {
			return fmt.Sprintf("paragraph %d", loc.Paragraph.Index)
		}
	case "table":
		if loc.Table != nil {
			return fmt.Sprintf("table %d cell (%d,%d)",
				loc.Table.Table, loc.Table.Row, loc.Table.Column)
		}
	case "section":
		if loc.Section != nil {
			return fmt.Sprintf("section %q", loc.Section.HeadingText)
		}
	}
	return loc.Kind
}
