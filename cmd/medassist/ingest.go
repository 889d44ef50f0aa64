package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents from the configured folder into memory",
	Long: `Ingest documents from the configured folder into similarity memory.

Each document is stripped of personal identifiers, summarized into a short
clinical summary, stored as a memory entry, and used to pre-fetch related
open-access literature.`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Ingest(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Ingestion complete.")
	return nil
}
