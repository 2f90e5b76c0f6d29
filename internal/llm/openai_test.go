package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus-kb/campusqa/config"
)

func testProvider(baseURL string) *OpenAIProvider {
	return NewOpenAIProvider(config.LLMProvider{
		Type:    "openai",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Models: map[string]config.LLMModel{
			"answering": {
				Name:            "gpt-4o-mini",
				MaxTokens:       512,
				Temperature:     0.2,
				CostPer1K:       0.00015,
				CostPer1KOutput: 0.0006,
			},
		},
	})
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"CS101 is taught by Professor Rossi."}}],"usage":{"prompt_tokens":20,"completion_tokens":8}}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	text, in, out, err := p.GenerateWithTokens(context.Background(), "Who teaches CS101?", "answering", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "CS101 is taught by Professor Rossi." {
		t.Fatalf("unexpected text %q", text)
	}
	if in != 20 || out != 8 {
		t.Fatalf("unexpected token usage %d/%d", in, out)
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	p := testProvider("http://unused")
	if _, err := p.Generate(context.Background(), "hi", "missing", nil); err == nil {
		t.Fatal("expected error for unconfigured model")
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	if _, err := p.Generate(context.Background(), "hi", "answering", nil); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestGenerateRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	p.config.MaxRetries = 1
	text, err := p.Generate(context.Background(), "hi", "answering", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "ok" || calls != 2 {
		t.Fatalf("expected retry to succeed on second call, got %q after %d calls", text, calls)
	}
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"CS101 \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"is great.\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	ch, err := p.GenerateStream(context.Background(), "tell me about CS101", "answering", nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var text string
	var done bool
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		text += chunk.Text
		if chunk.Done {
			done = true
		}
	}
	if text != "CS101 is great." {
		t.Fatalf("unexpected streamed text %q", text)
	}
	if !done {
		t.Fatal("expected a done chunk")
	}
}

func TestGenerateStreamFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"done\"},\"finish_reason\":\"stop\"}]}\n\n")
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	ch, err := p.GenerateStream(context.Background(), "q", "answering", nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	last := StreamChunk{}
	for chunk := range ch {
		last = chunk
	}
	if !last.Done || last.Text != "done" {
		t.Fatalf("expected finish_reason to close the stream, got %+v", last)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-small" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2],"index":0},{"embedding":[0.3,0.4],"index":1}]}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	vecs, err := p.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected embeddings %v", vecs)
	}
	if vecs[1][0] != 0.3 {
		t.Fatalf("unexpected embedding value %f", vecs[1][0])
	}
}

func TestEmbedRealignsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.3,0.4],"index":1},{"embedding":[0.1,0.2],"index":0}]}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	vecs, err := p.Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Fatalf("expected vectors realigned to input order, got %v", vecs)
	}
}

func TestEmbedRejectsOutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.1],"index":5}]}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	if _, err := p.Embed(context.Background(), "text-embedding-3-small", []string{"a"}); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	p := testProvider("http://unused")
	vecs, err := p.Embed(context.Background(), "text-embedding-3-small", nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs != nil {
		t.Fatalf("expected nil for empty input, got %v", vecs)
	}
}

func TestCalculateCost(t *testing.T) {
	p := testProvider("http://unused")
	got := p.CalculateCost(2000, 1000, "answering")
	want := 2*0.00015 + 1*0.0006
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("cost: got %f, want %f", got, want)
	}
	if c := p.CalculateCost(1000, 1000, "missing"); c != 0 {
		t.Fatalf("expected zero cost for unknown model, got %f", c)
	}
}
