package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/alexelgier/minerva/internal/domain"
)

// Validator is implemented by schema target types that need more than
// "did it unmarshal" to count as valid.
type Validator interface {
	Validate() error
}

// GenerateRequest is one call to the gateway's generate contract.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	SchemaName   string         // empty means no schema validation is performed
	Target       any            // pointer the response JSON decodes into; required when SchemaName is set
	Options      map[string]any // passed through to the model (temperature, etc.)
}

// Generate calls the configured model with prompt+system_prompt and, if a
// schema is named, validates the response by decoding it into req.Target
// (and calling Validate() if Target implements Validator). Identical
// requests (by cache key) hit the single-flight cache instead of calling
// the model again.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.SchemaName != "" && req.Target == nil {
		return "", domain.NewPipelineError(domain.ErrSchema, "generate: schema named without a target to decode into", nil)
	}

	key := cacheKey(g.cfg.Model, req.Prompt, req.SystemPrompt, req.SchemaName, req.Options)
	if cached, ok := g.cacheGet(key); ok {
		if req.Target != nil {
			if err := json.Unmarshal(cached, req.Target); err != nil {
				return "", domain.NewPipelineError(domain.ErrSchema, "generate: cached response failed to decode", err)
			}
		}
		return string(cached), nil
	}

	v, err, _ := g.flight.Do(key, func() (any, error) {
		return g.generateWithRetry(ctx, req)
	})
	if err != nil {
		return "", err
	}
	raw := v.(string)

	// req.Target was decoded and validated by the winning generateWithRetry
	// call; for callers that joined an in-flight singleflight call, decode
	// again into their own Target now (each caller may pass a distinct
	// pointer even for an identical cache key).
	if req.Target != nil {
		if err := decodeAndValidate(raw, req.Target); err != nil {
			return "", err
		}
	}

	g.cachePut(key, json.RawMessage(raw))
	return raw, nil
}

func decodeAndValidate(raw string, target any) error {
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return domain.NewPipelineError(domain.ErrSchema, "generate: response failed schema decode", err)
	}
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return domain.NewPipelineError(domain.ErrSchema, "generate: response failed schema validation", err)
		}
	}
	return nil
}

func (g *Gateway) generateWithRetry(ctx context.Context, req GenerateRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		raw, err := g.generateOnce(ctx, req)
		if err == nil {
			if req.Target != nil {
				if verr := decodeAndValidate(raw, req.Target); verr != nil {
					lastErr = verr
					g.log.WithError(verr).WithField("attempt", attempt+1).Warn("llmgateway: generate attempt failed schema validation, retrying")
					continue
				}
			}
			return raw, nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			return "", err
		}
		g.log.WithError(err).WithField("attempt", attempt+1).Warn("llmgateway: generate attempt failed, retrying")
	}
	return "", domain.NewPipelineError(domain.KindOf(lastErr),
		fmt.Sprintf("generate: exhausted %d attempts", g.cfg.MaxRetries), lastErr)
}

func (g *Gateway) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := g.cfg.BackoffBase << uint(attempt-1)
	if backoff > g.cfg.BackoffCap || backoff <= 0 {
		backoff = g.cfg.BackoffCap
	}
	jittered := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2+1)))
	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.NewPipelineError(domain.ErrCancelled, "generate: cancelled during backoff", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (g *Gateway) generateOnce(ctx context.Context, req GenerateRequest) (string, error) {
	if err := g.acquire(ctx); err != nil {
		return "", err
	}
	defer g.release()

	callCtx := ctx
	var cancel context.CancelFunc
	if g.cfg.WallClockCap > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.WallClockCap)
		defer cancel()
	}

	body, err := json.Marshal(map[string]any{
		"model":  g.cfg.Model,
		"prompt": req.Prompt,
		"system": req.SystemPrompt,
		"stream": true,
		"options": req.Options,
	})
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrTransport, "generate: marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrTransport, "generate: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", domain.NewPipelineError(domain.ErrTransport, "generate: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewPipelineError(domain.ErrTransport, fmt.Sprintf("generate: unexpected status %d", resp.StatusCode), nil)
	}

	return g.consumeStream(callCtx, resp.Body)
}
