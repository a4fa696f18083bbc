// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	gotar "archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/elliotnunn/tarmount/internal/config"
	"github.com/elliotnunn/tarmount/internal/etag"
)

var testTime = time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC)

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := gotar.NewWriter(&buf)
	for name, body := range files {
		hdr := &gotar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), ModTime: testTime, Typeflag: gotar.TypeReg}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

var bigText = strings.Repeat("all work and no play makes jack a dull boy\n", 100)

func testMux(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "docs.tar"), map[string]string{
		"big.txt":   bigText,
		"small.txt": "tiny",
	})
	writeArchive(t, filepath.Join(dir, "root-a.tar"), map[string]string{
		"index.html": "<h1>a</h1>",
		"key.pem":    "private",
	})
	writeArchive(t, filepath.Join(dir, "root-b.tar"), map[string]string{
		"index.html": "<h1>b</h1>",
		"extra.txt":  "only in b",
	})

	cfg := config.Default()
	cfg.RelativeTo = dir
	cfg.ETagCache.Dir = filepath.Join(dir, "cache")
	cfg.Routes = []config.Route{
		{Prefix: "/docs", Archives: []string{"docs.tar"}, Compress: true}, // mounted at /docs/
		{Prefix: "/", Archives: []string{"root-*.tar"}, Hide: []string{"**/*.pem", "*.pem"}, ETag: "simple"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	h, closeStores, err := buildMux(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(closeStores)
	return h
}

func request(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutePrefix(t *testing.T) {
	h := testMux(t)

	cases := []struct {
		target string
		status int
		body   string
	}{
		{"/docs/small.txt", http.StatusOK, "tiny"},
		{"/index.html", http.StatusOK, "<h1>a</h1>"}, // first glob match wins
		{"/extra.txt", http.StatusOK, "only in b"},
		{"/key.pem", http.StatusNotFound, ""},
		{"/docs/index.html", http.StatusNotFound, ""},
		{"/small.txt", http.StatusNotFound, ""},
		{"/docs/", http.StatusForbidden, ""},
		{"/docs", http.StatusMovedPermanently, ""},
	}
	for _, c := range cases {
		rec := request(h, c.target)
		if rec.Code != c.status {
			t.Errorf("%s: expected status %d, got %d", c.target, c.status, rec.Code)
			continue
		}
		if c.body != "" && rec.Body.String() != c.body {
			t.Errorf("%s: expected body %q, got %q", c.target, c.body, rec.Body.String())
		}
	}
}

func TestRouteETagMethod(t *testing.T) {
	h := testMux(t)

	rec := request(h, "/extra.txt")
	if want := etag.Simple(int64(len("only in b")), testTime); rec.Header().Get("ETag") != want {
		t.Errorf("expected simple ETag %s, got %s", want, rec.Header().Get("ETag"))
	}

	rec = request(h, "/docs/small.txt")
	tag := rec.Header().Get("ETag")
	if len(tag) != 34 {
		t.Errorf("expected a quoted 32-digit hash ETag, got %s", tag)
	}
	if again := request(h, "/docs/small.txt").Header().Get("ETag"); again != tag {
		t.Errorf("ETag changed between requests: %s then %s", tag, again)
	}
}

func TestRouteCompression(t *testing.T) {
	h := testMux(t)

	rec := request(h, "/docs/big.txt", "Accept-Encoding", "gzip")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if enc := rec.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", enc)
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != bigText {
		t.Errorf("decompressed body differs: %d bytes, want %d", len(got), len(bigText))
	}

	identity := request(h, "/docs/big.txt").Header().Get("ETag")
	if gz := rec.Header().Get("ETag"); gz == "" || identity == "" || gz == identity {
		t.Errorf("expected distinct ETags for gzip and identity bodies, got %s and %s", gz, identity)
	}

	// Below the minimum size, and on routes without compression.
	for _, target := range []string{"/docs/small.txt", "/extra.txt"} {
		rec := request(h, target, "Accept-Encoding", "gzip")
		if enc := rec.Header().Get("Content-Encoding"); enc != "" {
			t.Errorf("%s: expected no encoding, got %q", target, enc)
		}
	}
}

func TestLoadConfigArchiveArgs(t *testing.T) {
	cfg, err := loadConfig("", []string{"a.tar", "b.tar"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Routes) != 1 || cfg.Routes[0].Prefix != "/" || len(cfg.Routes[0].Archives) != 2 {
		t.Errorf("unexpected routes %+v", cfg.Routes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected a valid config, got %v", err)
	}

	if _, err := loadConfig("tarmount.yaml", []string{"a.tar"}); err == nil {
		t.Error("expected --config with archive arguments to fail")
	}
}

func TestNewLoggerJSON(t *testing.T) {
	cfg := config.Default()
	cfg.Log = config.LogConfig{Level: "warn", Format: "json"}

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	logger.Warn("memberServeError", "path", "x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "memberServeError" || rec["path"] != "x" {
		t.Errorf("unexpected record %v", rec)
	}
}
