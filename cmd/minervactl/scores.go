package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexelgier/minerva/internal/config"
	"github.com/alexelgier/minerva/internal/domain"
	"github.com/alexelgier/minerva/internal/graphstore"
)

var scoresCmd = &cobra.Command{
	Use:   "scores <journal-id>",
	Short: "Print a committed journal's four psychometric vectors",
	Long: `Reads a committed JournalEntry node back from the graph store and
prints its PANAS positive/negative, BPNS, and Flourishing vectors.
Mirrors the original extract_journal_scores.py script's output shape.`,
	Args: cobra.ExactArgs(1),
	RunE: runScores,
}

func init() {
	rootCmd.AddCommand(scoresCmd)
}

func runScores(cmd *cobra.Command, args []string) error {
	journalID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("minervactl: load config: %w", err)
	}

	ctx := context.Background()
	graph, err := graphstore.New(ctx, cfg.GraphURI, cfg.GraphUser, cfg.GraphPassword)
	if err != nil {
		return fmt.Errorf("minervactl: connect graph store: %w", err)
	}
	defer graph.Close(ctx)

	entry, ok, err := graph.GetJournalEntry(ctx, journalID)
	if err != nil {
		return fmt.Errorf("minervactl: read journal entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("minervactl: no committed journal entry %s", journalID)
	}

	printVector("panas_positive", entry.PANASPositive)
	printVector("panas_negative", entry.PANASNegative)
	printVector("bpns", entry.BPNS)
	printVector("flourishing", entry.Flourishing)
	return nil
}

func printVector(name string, v domain.PsychVector) {
	if len(v) == 0 {
		fmt.Printf("%s: (absent)\n", name)
		return
	}
	fmt.Printf("%s: %v\n", name, []int(v))
}
