package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campus-kb/campusqa/config"
)

func TestScoreAlignsWithInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req rerankReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "how many credits is CS101" {
			t.Errorf("unexpected query %q", req.Query)
		}
		// Return results out of order to check index realignment.
		json.NewEncoder(w).Encode([]rerankResult{
			{Index: 1, Score: 0.2},
			{Index: 0, Score: 0.9},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(config.RerankerConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	scores, err := r.Score(context.Background(), "how many credits is CS101", []string{"CS101 is 6 credits", "library opening hours"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[0] != 0.9 || scores[1] != 0.2 {
		t.Fatalf("scores misaligned: %v", scores)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	r := NewHTTPReranker(config.RerankerConfig{BaseURL: "http://unused"})
	scores, err := r.Score(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores, got %v", scores)
	}
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPReranker(config.RerankerConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if _, err := r.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error from 503 response")
	}
}

func TestScoreRejectsBadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResult{{Index: 5, Score: 0.5}})
	}))
	defer srv.Close()

	r := NewHTTPReranker(config.RerankerConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if _, err := r.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}
