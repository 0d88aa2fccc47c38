package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexelgier/minerva/internal/config"
	"github.com/alexelgier/minerva/internal/curation"
	"github.com/alexelgier/minerva/internal/domain"
)

var curationCmd = &cobra.Command{
	Use:   "curation",
	Short: "Inspect curation items",
}

var curationListCmd = &cobra.Command{
	Use:   "list <journal-id> <phase>",
	Short: "List pending curation items for a journal and phase (entity|relation)",
	Args:  cobra.ExactArgs(2),
	RunE:  runCurationList,
}

func init() {
	rootCmd.AddCommand(curationCmd)
	curationCmd.AddCommand(curationListCmd)
}

func runCurationList(cmd *cobra.Command, args []string) error {
	journalID, phaseArg := args[0], args[1]

	var phase domain.CurationPhase
	switch phaseArg {
	case "entity":
		phase = domain.PhaseEntity
	case "relation":
		phase = domain.PhaseRelation
	default:
		return fmt.Errorf("minervactl: unknown phase %q (want entity or relation)", phaseArg)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("minervactl: load config: %w", err)
	}

	curationStore, err := curation.Open(cfg.CurationDBPath)
	if err != nil {
		return fmt.Errorf("minervactl: open curation store: %w", err)
	}
	defer curationStore.Close()

	items, err := curationStore.Pending(context.Background(), journalID, phase)
	if err != nil {
		return fmt.Errorf("minervactl: list pending curation items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("no pending items")
		return nil
	}
	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("minervactl: encode curation items: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
