package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askNoRAG bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question from the terminal",
	Long: `Answer a single question from the terminal.

Runs the same retrieval-augmented flow as the HTTP API against a throwaway
session, prints the answer, and exits. Useful for smoke-testing a corpus
after ingestion.`,
	Example: `  nova ask "What is your warranty?"
  nova ask --no-rag "Introduce yourself"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askNoRAG, "no-rag", false, "skip retrieval and answer from the persona alone")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, question string) error {
	logger := initLogger(false)

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	if err := a.seedIfEmpty(ctx); err != nil {
		return err
	}

	sessionID := uuid.NewString()

	var text string
	if askNoRAG {
		reply, err := a.pipe.AnswerDirect(ctx, sessionID, question)
		if err != nil {
			return fmt.Errorf("answering: %w", err)
		}
		text = reply.Text
	} else {
		reply, err := a.pipe.Answer(ctx, sessionID, question)
		if err != nil {
			return fmt.Errorf("answering: %w", err)
		}
		text = reply.Text
	}

	fmt.Println(text)
	return nil
}
