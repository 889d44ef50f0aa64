package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var askStream bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single health question from the command line",
	Long: `Ask a single health question from the command line.

Examples:
  medassist ask "Is ibuprofen safe to take with lisinopril?"
  medassist ask --stream "What are common statin side effects?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	reply, err := a.engine.Ask(cmd.Context(), args[0], nil, askStream)
	if err != nil {
		return err
	}

	if reply.Stream != nil {
		defer reply.Stream.Close()
		for {
			fragment, err := reply.Stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			fmt.Print(fragment)
		}
		fmt.Println()
		return nil
	}

	fmt.Println(reply.Text)
	return nil
}
