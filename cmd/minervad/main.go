// Command minervad runs the orchestrator worker pool: it resumes every
// in-flight journal workflow from its last checkpoint, then serves new
// submissions until terminated. Flags follow the jra3-linear-fuse
// mount command's shape: cobra for parsing, a RunE that wires the real
// dependencies and blocks on an OS signal for graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alexelgier/minerva/internal/config"
	"github.com/alexelgier/minerva/internal/curation"
	"github.com/alexelgier/minerva/internal/extraction"
	"github.com/alexelgier/minerva/internal/graphstore"
	"github.com/alexelgier/minerva/internal/llmgateway"
	"github.com/alexelgier/minerva/internal/orchestrator"
	"github.com/alexelgier/minerva/internal/span"
	"github.com/alexelgier/minerva/internal/store"
	"github.com/alexelgier/minerva/internal/vault"
)

var rootCmd = &cobra.Command{
	Use:   "minervad",
	Short: "Run the Minerva journal pipeline worker pool",
	RunE:  run,
}

func init() {
	rootCmd.Flags().Int("workers", 0, "worker pool size (default: config WORKERS)")
	rootCmd.Flags().Bool("debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("minervad: load config: %w", err)
	}

	log := logrus.New()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	graph, err := graphstore.New(ctx, cfg.GraphURI, cfg.GraphUser, cfg.GraphPassword)
	if err != nil {
		return fmt.Errorf("minervad: connect graph store: %w", err)
	}
	defer graph.Close(ctx)

	curationStore, err := curation.Open(cfg.CurationDBPath)
	if err != nil {
		return fmt.Errorf("minervad: open curation store: %w", err)
	}
	defer curationStore.Close()

	checkpoints, err := store.OpenCheckpointStore(cfg.CheckpointDBPath)
	if err != nil {
		return fmt.Errorf("minervad: open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	embeddingCache, err := store.OpenEmbeddingCache(cfg.EmbeddingCachePath, cfg.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("minervad: open embedding cache: %w", err)
	}
	defer embeddingCache.Close()

	vaultIndex := vault.New(cfg.VaultPath)
	if err := vaultIndex.Reload(); err != nil {
		return fmt.Errorf("minervad: index vault: %w", err)
	}

	gateway := llmgateway.New(llmgateway.Config{
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxConcurrent:  cfg.LLMMaxConcurrent,
		CacheEnabled:   cfg.LLMCacheEnabled,
		HardTokenCap:   cfg.LLMHardTokenCap,
		WallClockCap:   cfg.LLMWallClockCap,
	}, &http.Client{}, log)

	search := orchestrator.NewFallbackGraphSearch(
		orchestrator.NewGraphSearch(graph),
		orchestrator.NewCacheGraphSearch(embeddingCache),
	)

	orch := orchestrator.New(graph, curationStore, checkpoints, extraction.NewRegistry(),
		gateway, vaultIndex, search, span.New(), log)

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Workers
	}

	pool := orchestrator.NewPool(orch, workers*4)
	if err := pool.ResumeActive(ctx); err != nil {
		return fmt.Errorf("minervad: resume active workflows: %w", err)
	}
	pool.Start(ctx, workers)
	go pool.PollForWork(ctx, 10*time.Second)

	log.WithField("workers", workers).Info("minervad: started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("minervad: shutting down")
	cancel()
	pool.Stop()
	return nil
}
