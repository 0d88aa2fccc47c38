// Package config loads Minerva's process configuration from the environment.
// Adapted from eve.evalgo.org's EnvConfig loader: a thin, prefix-aware
// wrapper over os.Getenv with typed accessors and fail-fast Must* variants.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alexelgier/minerva/internal/domain"
)

// Config holds every environment-sourced setting the pipeline needs.
type Config struct {
	GraphURI           string
	GraphUser          string
	GraphPassword      string
	LLMBaseURL         string
	LLMModel           string
	EmbeddingModel     string
	EmbeddingDim       int
	CurationDBPath     string
	CheckpointDBPath   string
	EmbeddingCachePath string
	VaultPath          string
	WorkflowQueue      string

	LLMMaxConcurrent int
	LLMCacheEnabled  bool
	LLMHardTokenCap  int
	LLMWallClockCap  time.Duration

	// Workers bounds the orchestrator worker pool minervad starts.
	Workers int
}

// env is a minimal typed environment reader, in the style of
// eve.evalgo.org/config.EnvConfig.
type env struct{ prefix string }

func (e env) key(k string) string {
	if e.prefix == "" {
		return k
	}
	return e.prefix + "_" + k
}

func (e env) str(k, def string) string {
	if v := os.Getenv(e.key(k)); v != "" {
		return v
	}
	return def
}

func (e env) mustStr(k string) (string, error) {
	v := os.Getenv(e.key(k))
	if v == "" {
		return "", domain.NewPipelineError(domain.ErrConfig,
			fmt.Sprintf("config: required environment variable %s not set", e.key(k)), nil)
	}
	return v, nil
}

func (e env) int(k string, def int) int {
	if v := os.Getenv(e.key(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (e env) bool(k string, def bool) bool {
	if v := os.Getenv(e.key(k)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Load reads Config from the environment. Missing GRAPH_URI, GRAPH_USER,
// GRAPH_PASSWORD, CURATION_DB_PATH, or VAULT_PATH is a fatal config error:
// the process cannot run without a graph store, curation store, or vault
// to write to.
func Load() (*Config, error) {
	e := env{}

	graphURI, err := e.mustStr("GRAPH_URI")
	if err != nil {
		return nil, err
	}
	graphUser, err := e.mustStr("GRAPH_USER")
	if err != nil {
		return nil, err
	}
	graphPassword, err := e.mustStr("GRAPH_PASSWORD")
	if err != nil {
		return nil, err
	}
	curationDBPath, err := e.mustStr("CURATION_DB_PATH")
	if err != nil {
		return nil, err
	}
	vaultPath, err := e.mustStr("VAULT_PATH")
	if err != nil {
		return nil, err
	}

	return &Config{
		GraphURI:           graphURI,
		GraphUser:          graphUser,
		GraphPassword:      graphPassword,
		LLMBaseURL:         e.str("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:           e.str("LLM_MODEL", "qwen2.5:14b"),
		EmbeddingModel:     e.str("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:       e.int("EMBEDDING_DIM", 768),
		CurationDBPath:     curationDBPath,
		CheckpointDBPath:   e.str("CHECKPOINT_DB_PATH", curationDBPath+".checkpoints"),
		EmbeddingCachePath: e.str("EMBEDDING_CACHE_PATH", curationDBPath+".embeddings"),
		VaultPath:          vaultPath,
		WorkflowQueue:      e.str("WORKFLOW_QUEUE_NAME", "minerva-journal"),
		LLMMaxConcurrent:   e.int("LLM_MAX_CONCURRENT", 4),
		LLMCacheEnabled:    e.bool("LLM_CACHE_ENABLED", true),
		LLMHardTokenCap:    e.int("LLM_HARD_TOKEN_CAP", 8192),
		LLMWallClockCap:    time.Duration(e.int("LLM_WALL_CLOCK_CAP_SECONDS", 1800)) * time.Second,
		Workers:            e.int("WORKERS", 4),
	}, nil
}
