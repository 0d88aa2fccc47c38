package llmgateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/alexelgier/minerva/internal/domain"
)

// ollamaChunk is one line of an Ollama-compatible streaming response.
type ollamaChunk struct {
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

// repetitionWindow is how much trailing text the repetition detector
// inspects for the unique-character-ratio check.
const repetitionWindow = 100

// minRepeatLen is the minimum substring length the detector treats as a
// meaningful repetition.
const minRepeatLen = 20

// repetitionDetector aborts a stream that is looping: either the same
// ≥20-char substring repeats ≥3 times in a row, or the trailing 100
// characters have fewer than 15% unique characters.
type repetitionDetector struct {
	tail         strings.Builder
	lastChunk    string
	repeatStreak int
}

func (d *repetitionDetector) observe(chunk string) bool {
	if chunk == "" {
		return false
	}
	if len(chunk) >= minRepeatLen && chunk == d.lastChunk {
		d.repeatStreak++
	} else {
		d.repeatStreak = 0
	}
	d.lastChunk = chunk

	d.tail.WriteString(chunk)
	tail := d.tail.String()
	if len(tail) > repetitionWindow {
		tail = tail[len(tail)-repetitionWindow:]
		d.tail.Reset()
		d.tail.WriteString(tail)
	}

	if d.repeatStreak >= 3 {
		return true
	}
	if len(tail) >= repetitionWindow && uniqueCharRatio(tail) < 0.15 {
		return true
	}
	return false
}

func uniqueCharRatio(s string) float64 {
	seen := make(map[rune]struct{})
	n := 0
	for _, r := range s {
		seen[r] = struct{}{}
		n++
	}
	if n == 0 {
		return 1
	}
	return float64(len(seen)) / float64(n)
}

// approxTokenCount is a cheap stand-in for a tokenizer: whitespace-split
// word count, which is within the right order of magnitude for capping
// runaway generations without pulling in a full tokenizer dependency.
func approxTokenCount(s string) int {
	return len(strings.Fields(s))
}

// consumeStream reads newline-delimited Ollama chunks from r, enforcing
// the hard token cap, the wall-clock cap (via ctx), and the repetition
// detector. It returns the fully assembled response text.
func (g *Gateway) consumeStream(ctx context.Context, r io.Reader) (string, error) {
	deadline := time.Now().Add(g.cfg.WallClockCap)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out strings.Builder
	detector := &repetitionDetector{}
	tokens := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return "", domain.NewPipelineError(domain.ErrBudget, "llm stream cancelled", ctx.Err())
		default:
		}
		if g.cfg.WallClockCap > 0 && time.Now().After(deadline) {
			return "", domain.NewPipelineError(domain.ErrBudget, "llm stream exceeded wall-clock cap", nil)
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", domain.NewPipelineError(domain.ErrTransport, "malformed llm stream chunk", err)
		}

		if detector.observe(chunk.Response) {
			return "", domain.NewPipelineError(domain.ErrBudget, "llm stream aborted: repetition detected", nil)
		}

		out.WriteString(chunk.Response)
		tokens += approxTokenCount(chunk.Response)
		if g.cfg.HardTokenCap > 0 && tokens > g.cfg.HardTokenCap {
			return "", domain.NewPipelineError(domain.ErrBudget, "llm stream exceeded hard token cap", nil)
		}

		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", domain.NewPipelineError(domain.ErrTransport, "llm stream read failed", err)
	}
	if out.Len() == 0 {
		return "", domain.NewPipelineError(domain.ErrSchema, "llm stream produced empty response", nil)
	}
	return out.String(), nil
}
