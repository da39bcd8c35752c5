package status

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EgorLis/clanbattlebot/internal/doccache"
)

func newTestServer(t *testing.T) (*httptest.Server, *doccache.Cache) {
	t.Helper()
	docs := doccache.New()
	srv := httptest.NewServer(New(docs, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler())
	t.Cleanup(srv.Close)
	return srv, docs
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := get(t, srv.URL+"/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz = %d %q", code, body)
	}
}

func TestDocument(t *testing.T) {
	srv, docs := newTestServer(t)
	text, err := docs.Apply(context.Background(), "m1", "1:Boss 残りHP(万):100\n------", func(lines []string) ([]string, error) {
		return append(lines, "line"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	code, body := get(t, srv.URL+"/documents/m1")
	if code != http.StatusOK || body != text {
		t.Fatalf("document = %d %q, want %q", code, body, text)
	}

	code, _ = get(t, srv.URL+"/documents/unknown")
	if code != http.StatusNotFound {
		t.Fatalf("unknown document = %d", code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/healthz", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /healthz = %d", resp.StatusCode)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(doccache.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("Run = %v", err)
	}
}
