// Package llmgateway is the single-flight, cached, retrying, streaming
// caller that turns a prompt+schema pair into a validated structured
// value. Every extraction stage goes through here rather than calling an
// LLM endpoint directly.
package llmgateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/alexelgier/minerva/internal/domain"
)

// Config holds the gateway's tunables, sourced from internal/config.Config.
type Config struct {
	BaseURL          string
	Model            string
	EmbeddingModel   string
	MaxConcurrent    int
	CacheEnabled     bool
	HardTokenCap     int
	WallClockCap     time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
}

// DefaultRetries and backoff bounds match the gateway's documented policy:
// up to 3 attempts, exponential backoff capped at 30s.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 30 * time.Second
)

// Gateway is the LLM Gateway. It is safe for concurrent use.
type Gateway struct {
	cfg    Config
	http   *http.Client
	log    logrus.FieldLogger
	sem    *semaphore.Weighted
	flight singleflight.Group

	cacheMu sync.RWMutex
	cache   map[string]json.RawMessage
}

// New builds a Gateway. log may be nil, in which case a disabled logger is
// used.
func New(cfg Config, httpClient *http.Client, log logrus.FieldLogger) *Gateway {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Gateway{
		cfg:   cfg,
		http:  httpClient,
		log:   log,
		sem:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cache: make(map[string]json.RawMessage),
	}
}

// cacheKey is SHA-256({model, prompt, system_prompt, schema_name, options}).
func cacheKey(model, prompt, systemPrompt, schemaName string, options map[string]any) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(struct {
		Model        string         `json:"model"`
		Prompt       string         `json:"prompt"`
		SystemPrompt string         `json:"system_prompt"`
		SchemaName   string         `json:"schema_name"`
		Options      map[string]any `json:"options"`
	}{model, prompt, systemPrompt, schemaName, options})
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Gateway) cacheGet(key string) (json.RawMessage, bool) {
	if !g.cfg.CacheEnabled {
		return nil, false
	}
	g.cacheMu.RLock()
	defer g.cacheMu.RUnlock()
	v, ok := g.cache[key]
	return v, ok
}

func (g *Gateway) cachePut(key string, v json.RawMessage) {
	if !g.cfg.CacheEnabled {
		return
	}
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.cache[key] = v
}

// acquire blocks until a request slot is free or ctx is done.
func (g *Gateway) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return domain.NewPipelineError(domain.ErrCancelled, "acquire llm gateway slot", err)
	}
	return nil
}

func (g *Gateway) release() { g.sem.Release(1) }
