// Package main implements the medassist CLI: a personal health
// question-answering assistant backed by the user's own documents and
// open-access medical literature.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional YAML config file.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	// A local .env is convenient in development; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "medassist",
	Short: "Personal health question-answering assistant",
	Long: `medassist answers personal health questions from the user's own uploaded
documents and open-access medical literature.

Questions pass a moderation gate, then are answered from similarity memory
when a prior document or article matches, falling back to a Europe PMC
literature search otherwise.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
}
