package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/version"
)

func sampleGraph() *git.CommitGraph {
	g := git.NewCommitGraph("v1.0.0")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g.Add(&git.Commit{Hash: "b", Parents: []string{"a"}, Author: "Alice", Date: base, Subject: "FEATURE: b", Body: "body", Version: "v1.0.0 +1"})
	g.Add(&git.Commit{Hash: "c", Parents: []string{"b"}, Author: "Bob", Date: base.Add(time.Hour), Subject: "FIX: c", Version: "v1.1.0"})
	g.Add(&git.Commit{Hash: "r", Author: "Root", Date: base, Subject: "root", Version: "v1.0.0 +1"})
	g.Refs.Tags["v1.1.0"] = "c"
	g.Refs.Branches["main"] = "c"
	g.AllTags["v1.0.0"] = "a"
	g.AllTags["v1.1.0"] = "c"
	return g
}

func TestFromGraph_Keys(t *testing.T) {
	doc := FromGraph(sampleGraph(), map[string]version.Provisional{"v1.1.1": {Branch: "main"}}, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"commits", "refs", "baseTag", "baseCommit", "provisionalVersions", "generatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var commit map[string]json.RawMessage
	var commits map[string]json.RawMessage
	if err := json.Unmarshal(raw["commits"], &commits); err != nil {
		t.Fatalf("Unmarshal commits: %v", err)
	}
	if err := json.Unmarshal(commits["r"], &commit); err != nil {
		t.Fatalf("Unmarshal commit: %v", err)
	}
	if string(commit["parents"]) != "[]" {
		t.Errorf("root parents = %s, expected []", commit["parents"])
	}
	if string(commit["date"]) != `"2025-03-01T12:00:00Z"` {
		t.Errorf("date = %s", commit["date"])
	}

	if _, ok := doc.Refs.Tags["v1.0.0"]; ok {
		t.Error("tags outside the retained window must not be serialized")
	}
}

func TestDocument_GraphRoundTrip(t *testing.T) {
	original := sampleGraph()
	doc := FromGraph(original, nil, time.Time{})
	if doc.GeneratedAt != "" {
		t.Errorf("GeneratedAt = %q, expected empty", doc.GeneratedAt)
	}

	g, err := doc.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Commits) != len(original.Commits) {
		t.Fatalf("commits = %d, expected %d", len(g.Commits), len(original.Commits))
	}
	for hash, want := range original.Commits {
		got := g.Commits[hash]
		if got.Subject != want.Subject || got.Version != want.Version || !got.Date.Equal(want.Date) {
			t.Errorf("commit %s = %+v, expected %+v", hash, got, want)
		}
	}
	if g.Refs.Branches["main"] != "c" || g.Refs.Tags["v1.1.0"] != "c" || g.BaseTag != "v1.0.0" {
		t.Errorf("refs = %+v base = %q", g.Refs, g.BaseTag)
	}
	if g.AllTags["v1.0.0"] != "a" {
		t.Errorf("base commit not restored: %v", g.AllTags)
	}
}

func TestDocument_GraphRejectsBadDate(t *testing.T) {
	doc := &Document{Commits: map[string]Commit{"x": {Hash: "x", Date: "yesterday"}}}
	if _, err := doc.Graph(); err == nil {
		t.Fatal("expected error for invalid date")
	}
}

func TestDocument_GraphRejectsKeyMismatch(t *testing.T) {
	doc := &Document{Commits: map[string]Commit{"x": {Hash: "y"}}}
	if _, err := doc.Graph(); err == nil {
		t.Fatal("expected error for mismatched key")
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "commits.json")

	if err := Write(path, FromGraph(sampleGraph(), nil, time.Now())); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Commits) != 3 || doc.BaseTag != "v1.0.0" {
		t.Fatalf("loaded doc = %+v", doc)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteIndented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version-support.json")
	if err := WriteIndented(path, []byte(`{"3.4":{"released":true}}`)); err != nil {
		t.Fatalf("WriteIndented: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"3.4\"") {
		t.Errorf("output not indented: %q", data)
	}

	if err := WriteIndented(path, []byte(`{broken`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	data2, _ := os.ReadFile(path)
	if string(data2) != string(data) {
		t.Error("failed write must leave the previous file intact")
	}
}

func TestDecode_EmptyDocument(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Commits == nil || doc.Refs.Tags == nil || doc.Refs.Branches == nil {
		t.Fatal("expected maps to be initialised")
	}
	if _, err := Decode(strings.NewReader(`nope`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
