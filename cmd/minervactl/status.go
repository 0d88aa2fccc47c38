package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexelgier/minerva/internal/config"
	"github.com/alexelgier/minerva/internal/curation"
	"github.com/alexelgier/minerva/internal/orchestrator"
	"github.com/alexelgier/minerva/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Print a workflow's current stage, error state, and counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	workflowID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("minervactl: load config: %w", err)
	}

	checkpoints, err := store.OpenCheckpointStore(cfg.CheckpointDBPath)
	if err != nil {
		return fmt.Errorf("minervactl: open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	curationStore, err := curation.Open(cfg.CurationDBPath)
	if err != nil {
		return fmt.Errorf("minervactl: open curation store: %w", err)
	}
	defer curationStore.Close()

	orch := orchestrator.New(nil, curationStore, checkpoints, nil, nil, nil, nil, nil, nil)

	status, err := orch.Status(context.Background(), workflowID)
	if err != nil {
		return fmt.Errorf("minervactl: status: %w", err)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("minervactl: encode status: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
