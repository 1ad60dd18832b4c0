package steps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/infra/fetch"
	"github.com/vietddude/enrich/internal/infra/ollama"
)

func TestExtractArticle(t *testing.T) {
	html := []byte(`<html><head>
		<title>  A   Great
		Read </title>
		<style>body { color: red }</style>
		<script>var x = "<ignored>";</script>
	</head><body><h1>A Great Read</h1><p>First paragraph.</p><p>Second one.</p></body></html>`)

	r := ExtractArticle(html)
	if r.Title != "A Great Read" {
		t.Errorf("title = %q", r.Title)
	}
	if strings.Contains(r.Text, "color: red") || strings.Contains(r.Text, "var x") {
		t.Errorf("script/style leaked into text: %q", r.Text)
	}
	if !strings.Contains(r.Text, "First paragraph.") || !strings.Contains(r.Text, "Second one.") {
		t.Errorf("body text missing: %q", r.Text)
	}
}

func TestExtractArticleTruncates(t *testing.T) {
	html := []byte("<body>" + strings.Repeat("words ", 5000) + "</body>")
	r := ExtractArticle(html)
	if len(r.Text) > maxArticleChars {
		t.Errorf("text length %d exceeds cap %d", len(r.Text), maxArticleChars)
	}
}

func TestArticleStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><title>Hello</title><body>World</body></html>"))
	}))
	defer srv.Close()

	step := NewArticle(fetch.NewClient(5 * time.Second))
	b := domain.Bookmark{ID: "bm-1", URL: srv.URL}

	value, err := step.Compute(context.Background(), b)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := step.Apply(&b, value); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b.Analysis["articleTitle"] != "Hello" {
		t.Errorf("title = %v", b.Analysis["articleTitle"])
	}
}

func TestArticleStepServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	step := NewArticle(fetch.NewClient(5 * time.Second))
	_, err := step.Compute(context.Background(), domain.Bookmark{ID: "bm-1", URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for HTTP 503")
	}
	// The status code must survive into the error text for the retry
	// classifier.
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error %q does not carry the status code", err)
	}
}

func TestExpandStepFollowsRedirects(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/article", http.StatusMovedPermanently)
	}))
	defer short.Close()

	step := NewExpand(fetch.NewClient(5 * time.Second))
	b := domain.Bookmark{ID: "bm-1", URL: short.URL}

	value, err := step.Compute(context.Background(), b)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := step.Apply(&b, value); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := b.Analysis["expandedUrl"]; got != final.URL+"/article" {
		t.Errorf("expandedUrl = %v, want %s/article", got, final.URL)
	}
}

func TestSummarizeStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "llama3" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "A short summary."})
	}))
	defer srv.Close()

	client := ollama.NewClient(ollama.Config{URL: srv.URL})
	step := NewSummarize(client, "llama3")

	b := domain.Bookmark{ID: "bm-1", Text: "long interesting content"}
	value, err := step.Compute(context.Background(), b)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := step.Apply(&b, value); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b.Analysis["summary"] != "A short summary." {
		t.Errorf("summary = %v", b.Analysis["summary"])
	}
}

func TestSummarizeStepEmptyTextSkipsInference(t *testing.T) {
	// No server: a call would fail, so an empty bookmark must not call out.
	client := ollama.NewClient(ollama.Config{URL: "http://127.0.0.1:1"})
	step := NewSummarize(client, "llama3")

	value, err := step.Compute(context.Background(), domain.Bookmark{ID: "bm-1"})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	var r SummarizeResult
	if err := json.Unmarshal(value, &r); err != nil {
		t.Fatal(err)
	}
	if r.Summary != "" {
		t.Errorf("summary = %q, want empty", r.Summary)
	}
}

func TestPersonaStepKeyFieldsIncludePersona(t *testing.T) {
	client := ollama.NewClient(ollama.Config{URL: "http://127.0.0.1:1"})
	step := NewPersona(client, "llama3", "security engineer")

	found := false
	for _, f := range step.KeyFields {
		if f.Name == "persona" && f.Value == "security engineer" {
			found = true
		}
	}
	if !found {
		t.Errorf("persona missing from key fields: %+v", step.KeyFields)
	}
}
