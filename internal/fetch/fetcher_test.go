package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/dedup"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/stream"
	"github.com/sunovault/sunovault/internal/tagging"
)

func testFetcher(t *testing.T, apiHandler http.Handler, opts Options) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(apiHandler)
	t.Cleanup(srv.Close)
	client := catalog.New(srv.URL, "token", nil)
	f := New(client, stream.NewResolver(client, nil), nil, dedup.NewIndex(), opts, nil)
	f.retryBackoff = time.Millisecond
	return f
}

func audioRecord(id, title, audioURL string) *domain.Record {
	return &domain.Record{
		ID:        id,
		Title:     title,
		CreatedAt: "2026-03-14T10:00:00Z",
		AudioURL:  audioURL,
		Raw:       map[string]any{},
	}
}

func TestFetchDownloadsAsset(t *testing.T) {
	content := []byte("audio-bytes-go-here")
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(content)
	}))
	defer cdn.Close()

	dir := t.TempDir()
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: dir})

	var lastPercent float64
	rec := audioRecord("a1", "My Song", cdn.URL+"/a1.mp3")
	out := f.Fetch(context.Background(), rec, func(p float64) { lastPercent = p })

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s), want downloaded", out.Status, out.Error)
	}
	want := filepath.Join(dir, "My Song.mp3")
	if out.FilePath != want {
		t.Errorf("FilePath = %q, want %q", out.FilePath, want)
	}
	got, err := os.ReadFile(out.FilePath)
	if err != nil || string(got) != string(content) {
		t.Errorf("file content mismatch: %v", err)
	}
	if lastPercent != 100 {
		t.Errorf("final progress = %v, want 100", lastPercent)
	}
	if !f.index.Contains("a1") {
		t.Error("downloaded asset not registered in index")
	}
}

func TestFetchSendsAuthorization(t *testing.T) {
	var gotAuth string
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("audio"))
	}))
	defer cdn.Close()

	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: t.TempDir()})
	out := f.Fetch(context.Background(), audioRecord("a1", "Authed", cdn.URL+"/a1.mp3"), nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s), want downloaded", out.Status, out.Error)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token")
	}
}

func TestFetchSkipsKnownDuplicate(t *testing.T) {
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: t.TempDir()})
	f.index.Add("a1")

	out := f.Fetch(context.Background(), audioRecord("a1", "Dup", "https://unreachable.invalid/a.mp3"), nil)
	if out.Status != domain.OutcomeDuplicate {
		t.Errorf("status = %q, want duplicate", out.Status)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer cdn.Close()

	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: t.TempDir()})
	out := f.Fetch(context.Background(), audioRecord("a1", "Flaky", cdn.URL+"/a.mp3"), nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s), want downloaded", out.Status, out.Error)
	}
	if calls.Load() != 3 {
		t.Errorf("cdn hit %d times, want 3", calls.Load())
	}
}

func TestFetchFailsAfterRetriesExhausted(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer cdn.Close()

	dir := t.TempDir()
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: dir})
	out := f.Fetch(context.Background(), audioRecord("a1", "Broken", cdn.URL+"/a.mp3"), nil)

	if out.Status != domain.OutcomeFailed {
		t.Fatalf("status = %q, want failed", out.Status)
	}
	if !strings.Contains(out.Error, "3 attempts") {
		t.Errorf("error = %q, want retry count mentioned", out.Error)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestFetchCancelledMidDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte("partial"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		cancel()
		time.Sleep(50 * time.Millisecond)
	}))
	defer cdn.Close()

	dir := t.TempDir()
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: dir})
	out := f.Fetch(ctx, audioRecord("a1", "Halted", cdn.URL+"/a.mp3"), nil)

	if out.Status != domain.OutcomeCancelled {
		t.Fatalf("status = %q, want cancelled", out.Status)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestFetchOrganizesByMonth(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer cdn.Close()

	dir := t.TempDir()
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: dir, OrganizeByMonth: true})
	out := f.Fetch(context.Background(), audioRecord("a1", "Dated", cdn.URL+"/a.mp3"), nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s)", out.Status, out.Error)
	}
	want := filepath.Join(dir, "2026-03", "Dated.mp3")
	if out.FilePath != want {
		t.Errorf("FilePath = %q, want %q", out.FilePath, want)
	}
}

func TestFetchStemSubfolder(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer cdn.Close()

	dir := t.TempDir()
	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: dir, StemSubfolders: true})
	rec := audioRecord("a1", "My Song (Vocals)", cdn.URL+"/a.mp3")
	rec.Metadata.Type = "gen_stem"
	out := f.Fetch(context.Background(), rec, nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s)", out.Status, out.Error)
	}
	want := filepath.Join(dir, "My Song", "My Song (Vocals).mp3")
	if out.FilePath != want {
		t.Errorf("FilePath = %q, want %q", out.FilePath, want)
	}
}

func TestFetchSavesLyricsSidecar(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer cdn.Close()

	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: t.TempDir(), SaveLyrics: true})
	rec := audioRecord("a1", "Sung", cdn.URL+"/a.mp3")
	rec.Metadata.Lyrics = "la la la"
	out := f.Fetch(context.Background(), rec, nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s)", out.Status, out.Error)
	}
	sidecar := strings.TrimSuffix(out.FilePath, ".mp3") + ".txt"
	got, err := os.ReadFile(sidecar)
	if err != nil || string(got) != "la la la" {
		t.Errorf("lyrics sidecar = %q, %v", got, err)
	}
}

func TestFetchRefetchesThinMetadata(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer cdn.Close()

	var detailHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/clip/a1", func(w http.ResponseWriter, _ *http.Request) {
		detailHits.Add(1)
		w.Write([]byte(`{"id": "a1", "title": "Thin", "metadata": {"prompt": "dream pop"}}`))
	})

	f := testFetcher(t, mux, Options{OutputDir: t.TempDir(), SaveLyrics: true})
	rec := audioRecord("a1", "Thin", cdn.URL+"/a.mp3")
	out := f.Fetch(context.Background(), rec, nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s)", out.Status, out.Error)
	}
	if detailHits.Load() != 1 {
		t.Errorf("detail endpoint hit %d times, want 1", detailHits.Load())
	}
	if rec.Metadata.Prompt != "dream pop" {
		t.Errorf("metadata not refreshed: %+v", rec.Metadata)
	}
}

func TestFetchEmbedsMarker(t *testing.T) {
	// Minimal MPEG frame header so the tag writer has a valid target.
	stub := append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 413)...)
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(stub)
	}))
	defer cdn.Close()

	f := testFetcher(t, http.NotFoundHandler(), Options{OutputDir: t.TempDir(), EmbedMetadata: true})
	rec := audioRecord("a1", "Tagged", cdn.URL+"/a.mp3")
	rec.Metadata.Prompt = "synthwave"
	out := f.Fetch(context.Background(), rec, nil)

	if out.Status != domain.OutcomeDownloaded {
		t.Fatalf("status = %q (%s)", out.Status, out.Error)
	}
	marker, err := tagging.ReadMarker(out.FilePath)
	if err != nil {
		t.Fatalf("ReadMarker() error = %v", err)
	}
	if marker != "a1" {
		t.Errorf("marker = %q, want %q", marker, "a1")
	}
}
