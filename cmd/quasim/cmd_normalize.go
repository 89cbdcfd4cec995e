package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quasim/internal/normalize"
)

var normalizeOut string

// normalizeCmd flattens a ChatGPT export
var normalizeCmd = &cobra.Command{
	Use:   "normalize [conversations.json]",
	Short: "Flatten a ChatGPT export into linear JSONL conversations",
	Long: `Reads a ChatGPT conversations.json export, recovers the canonical branch of
each conversation's mapping tree, and writes one normalized conversation per
JSONL line. Conversations that cannot be linearized are dropped and counted.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeOut, "out", "o", "", "Output path (default: stdout)")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer in.Close()

	convs, stats, err := normalize.Reader(in)
	if err != nil {
		rt.recorder.Failure("", "normalize", err)
		return err
	}

	out := os.Stdout
	if normalizeOut != "" {
		f, err := os.Create(normalizeOut)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := normalize.WriteJSONL(out, convs); err != nil {
		return err
	}
	rt.recorder.NormalizeComplete(args[0], stats.Conversations, stats.Messages)

	fmt.Fprintf(os.Stderr, "Normalized %d conversations (%d messages); skipped %d conversations, %d messages\n",
		stats.Conversations, stats.Messages, stats.SkippedConversations, stats.SkippedMessages)
	return nil
}
