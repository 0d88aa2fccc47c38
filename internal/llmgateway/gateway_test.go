package llmgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type personTarget struct {
	Name string `json:"name"`
}

func writeChunks(w http.ResponseWriter, chunks []string) {
	fl, _ := w.(http.Flusher)
	for i, c := range chunks {
		enc := ollamaChunk{Response: c, Done: i == len(chunks)-1}
		data, _ := json.Marshal(enc)
		w.Write(data)
		w.Write([]byte("\n"))
		if fl != nil {
			fl.Flush()
		}
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:       srv.URL,
		Model:         "qwen2.5:14b",
		MaxConcurrent: 2,
		CacheEnabled:  true,
		HardTokenCap:  8192,
		WallClockCap:  5 * time.Second,
		MaxRetries:    3,
		BackoffBase:   1 * time.Millisecond,
		BackoffCap:    5 * time.Millisecond,
	}, srv.Client(), logrus.New())
}

func TestGenerate_SchemaDecodeSuccess(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, []string{`{"name":`, `"Ana"}`})
	})

	var target personTarget
	_, err := gw.Generate(context.Background(), GenerateRequest{
		Prompt:     "extract person",
		SchemaName: "person",
		Target:     &target,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", target.Name)
}

func TestGenerate_CacheHitSkipsSecondCall(t *testing.T) {
	var calls int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeChunks(w, []string{`{"name":"Ana"}`})
	})

	req := GenerateRequest{Prompt: "extract person", SchemaName: "person", Target: &personTarget{}}
	_, err := gw.Generate(context.Background(), req)
	require.NoError(t, err)

	req2 := GenerateRequest{Prompt: "extract person", SchemaName: "person", Target: &personTarget{}}
	_, err = gw.Generate(context.Background(), req2)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerate_RepetitionAbortIsRetriedThenExhausted(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		chunk := "aaaaaaaaaaaaaaaaaaaaaaaa"
		writeChunks(w, []string{chunk, chunk, chunk, chunk})
	})

	_, err := gw.Generate(context.Background(), GenerateRequest{Prompt: "loop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestGenerate_EmptyResponseIsRetryable(t *testing.T) {
	var calls int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeChunks(w, []string{""})
	})

	_, err := gw.Generate(context.Background(), GenerateRequest{Prompt: "empty"})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "expected all 3 attempts to be used")
}

func TestGenerate_MalformedSchemaRetriesThenFails(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, []string{"not json"})
	})

	var target personTarget
	_, err := gw.Generate(context.Background(), GenerateRequest{
		Prompt:     "extract person",
		SchemaName: "person",
		Target:     &target,
	})
	require.Error(t, err)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		prompt := req["prompt"].(string)
		resp := embedResponse{Embedding: []float32{float32(len(prompt))}}
		json.NewEncoder(w).Encode(resp)
	})

	vectors, err := gw.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, float32(3), vectors[2][0])
}

func TestRepetitionDetector_UniqueCharRatio(t *testing.T) {
	d := &repetitionDetector{}
	aborted := false
	for i := 0; i < 120; i++ {
		if d.observe("x") {
			aborted = true
			break
		}
	}
	assert.True(t, aborted, "expected low-diversity trailing window to trip the detector")
}

func TestRepetitionDetector_AllowsDiverseText(t *testing.T) {
	d := &repetitionDetector{}
	aborted := false
	text := "the quick brown fox jumps over the lazy dog and then wanders off into the forest looking for food"
	for _, word := range []string{text} {
		if d.observe(word) {
			aborted = true
		}
	}
	assert.False(t, aborted)
}
