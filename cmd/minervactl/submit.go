package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alexelgier/minerva/internal/config"
	"github.com/alexelgier/minerva/internal/orchestrator"
	"github.com/alexelgier/minerva/internal/store"
)

var submitJournalID string

var submitCmd = &cobra.Command{
	Use:   "submit <date> <file>",
	Short: "Submit a journal's raw text for pipeline processing",
	Long: `Submit registers a new workflow for the given date and raw text file,
checkpointing it at SUBMITTED so minervad's worker pool (or its next
poll) picks it up. Submitting the same --journal-id again is a no-op:
it returns the existing workflow ID without resetting progress.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitJournalID, "journal-id", "", "journal UUID (default: a freshly generated one)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	date, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("minervactl: read %s: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("minervactl: load config: %w", err)
	}

	checkpoints, err := store.OpenCheckpointStore(cfg.CheckpointDBPath)
	if err != nil {
		return fmt.Errorf("minervactl: open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	journalID := submitJournalID
	if journalID == "" {
		journalID = uuid.NewString()
	}

	orch := orchestrator.New(nil, nil, checkpoints, nil, nil, nil, nil, nil, nil)

	ctx := context.Background()
	workflowID, err := orch.Submit(ctx, journalID, date, string(raw))
	if err != nil {
		return fmt.Errorf("minervactl: submit: %w", err)
	}

	fmt.Printf("workflow_id: %s\njournal_id: %s\n", workflowID, journalID)
	return nil
}
