package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clique-kr/episodes/internal/config"
	"github.com/clique-kr/episodes/internal/db/dial"
	"github.com/clique-kr/episodes/internal/repository/index"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSubmit(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		_, _ = io.WriteString(w, "ok")
	}))
	defer ts.Close()

	out, err := run(t, "", "--server", ts.URL, "submit", "--data", `{"ep":7}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("output = %q", out)
	}
	if got != `{"ep":7}` {
		t.Errorf("server got %q", got)
	}

	if _, err := run(t, "from stdin", "--server", ts.URL, "submit", "--file", "-"); err != nil {
		t.Fatalf("stdin submit: %v", err)
	}
	if got != "from stdin" {
		t.Errorf("server got %q", got)
	}
}

func TestSubmit_DataAndFile(t *testing.T) {
	if _, err := run(t, "", "submit", "--data", "x", "--file", "y"); err == nil {
		t.Fatal("expected error for --data with --file")
	}
}

func TestIndex_NotPublished(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"index_not_found","message":"index not found"}`)
	}))
	defer ts.Close()

	_, err := run(t, "", "--server", ts.URL, "index")
	if err == nil || !strings.Contains(err.Error(), "no index list published") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIndex_Pretty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[1,2]`)
	}))
	defer ts.Close()

	out, err := run(t, "", "--server", ts.URL, "index", "--pretty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[\n  1,\n  2\n]\n" {
		t.Errorf("output = %q", out)
	}
}

func TestSeed_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "seed.db")
	cfgPath := filepath.Join(dir, "seed.yaml")
	cfgYAML := "database:\n  driver: sqlite\n  path: " + dbPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, `["a", 2, 3.5]`, "seed", "--config", cfgPath)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "published us_index.list") {
		t.Errorf("output = %q", out)
	}

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := dial.New(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer store.Close()

	list, err := index.New(store, cfg.Index.Location()).Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	values, ok := list.Value.([]any)
	if !ok || len(values) != 3 || values[0] != "a" {
		t.Errorf("list = %#v", list.Value)
	}
}

func TestSeed_EmptyInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "seed.yaml")
	cfgYAML := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "x.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := run(t, "", "seed", "--config", cfgPath); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestNormalize(t *testing.T) {
	got := normalize(map[string]any{
		"n": json.Number("3"),
		"f": json.Number("2.5"),
		"l": []any{json.Number("1"), "x"},
	}).(map[string]any)

	if got["n"] != int64(3) {
		t.Errorf("n = %#v", got["n"])
	}
	if got["f"] != 2.5 {
		t.Errorf("f = %#v", got["f"])
	}
	if l := got["l"].([]any); l[0] != int64(1) || l[1] != "x" {
		t.Errorf("l = %#v", l)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "--version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "episodectl") {
		t.Errorf("version output = %q", out)
	}
}
