package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alexelgier/minerva/internal/domain"
)

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text using the gateway's
// configured embedding model.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding vector per input text, preserving
// order. Each text is sent as its own request and retried on its own
// under the gateway's retry policy; the first text that exhausts its
// attempts fails the whole batch.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := g.embedOnceWithRetry(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed_batch: item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (g *Gateway) embedOnceWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		vec, err := g.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			return nil, err
		}
	}
	return nil, domain.NewPipelineError(domain.KindOf(lastErr),
		fmt.Sprintf("embed: exhausted %d attempts", g.cfg.MaxRetries), lastErr)
}

func (g *Gateway) embedOnce(ctx context.Context, text string) ([]float32, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()

	body, err := json.Marshal(map[string]any{
		"model":  g.cfg.EmbeddingModel,
		"prompt": text,
	})
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "embed: marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "embed: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrTransport, "embed: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewPipelineError(domain.ErrTransport, fmt.Sprintf("embed: unexpected status %d", resp.StatusCode), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewPipelineError(domain.ErrSchema, "embed: malformed response", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, domain.NewPipelineError(domain.ErrSchema, "embed: empty embedding returned", nil)
	}
	return parsed.Embedding, nil
}
