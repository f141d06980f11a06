package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your SOPs",
	Long: `Answers a question using retrieval-augmented generation over the
indexed documents. The answer cites the SOPs it was grounded on.

Pass --session to continue an earlier conversation; otherwise a new
session is started and its ID printed for follow-up questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID to continue")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	ctx := context.Background()
	answer, err := chatService.Ask(ctx, askSession, args[0])
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		seen := make(map[string]bool)
		for _, c := range answer.Citations {
			label := c.Document.Title
			if label == "" {
				label = c.Document.URI
			}
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			cmd.Printf("  - %s\n", label)
		}
	}

	cmd.Println()
	cmd.Printf("Session: %s\n", answer.SessionID)
	return nil
}
