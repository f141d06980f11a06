// Command soprev is a locally-run RAG assistant for SOP documents.
package main

import (
	"os"

	"github.com/soprev-labs/soprev-cli/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
