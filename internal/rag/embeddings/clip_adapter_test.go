package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Muninn/internal/rag/ragerr"
)

// pngHeader is the magic prefix of a PNG file, enough for content
// detection without a real image.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestClipAdapterEmbedImage(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		fmt.Fprint(w, `[0.1, 0.2, 0.3]`)
	}))
	defer srv.Close()

	a := NewClipAdapter("clip-vit-b-32", "test-key", srv.URL+"/", 3)
	v, err := a.EmbedImage(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if len(v) != 3 {
		t.Fatalf("expected 3 components, got %d", len(v))
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if !strings.HasPrefix(gotContentType, "image/png") {
		t.Errorf("expected detected image content type, got %q", gotContentType)
	}
}

func TestClipAdapterEmbedQueryBatchShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json query payload, got %q", ct)
		}
		// Some deployments wrap the vector in a batch.
		fmt.Fprint(w, `[[0.5, 0.6]]`)
	}))
	defer srv.Close()

	a := NewClipAdapter("clip-vit-b-32", "k", srv.URL+"/", 2)
	v, err := a.EmbedQuery(context.Background(), "a red bicycle")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	if len(v) != 2 || v[0] != 0.5 {
		t.Errorf("unexpected vector %v", v)
	}
}

func TestClipAdapterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewClipAdapter("clip-vit-b-32", "k", srv.URL+"/", 2)
	_, err := a.EmbedImage(context.Background(), pngHeader)
	var ee *ragerr.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestClipAdapterDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[0.1, 0.2, 0.3]`)
	}))
	defer srv.Close()

	a := NewClipAdapter("clip-vit-b-32", "k", srv.URL+"/", 512)
	_, err := a.EmbedImage(context.Background(), pngHeader)
	var ee *ragerr.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if ee.WantDim != 512 || ee.GotDim != 3 {
		t.Errorf("expected dims 512/3, got %d/%d", ee.WantDim, ee.GotDim)
	}
}
