package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/output"
	"github.com/discourse/discourse-releases/internal/snapshot"
)

type cliEnv struct {
	t          *testing.T
	dir        string
	configPath string
}

// newCLIEnv isolates config discovery and writes a config pointing the data
// files at a temp directory.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")

	cfg := fmt.Sprintf(`{"output":{"dir":%q},"log":{"level":"error"}}`, filepath.Join(dir, "data"))
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{t: t, dir: dir, configPath: configPath}
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var buf bytes.Buffer
	app := App()
	app.Writer = &buf
	app.ErrWriter = &buf
	full := append([]string{"discourse-releases", "--quiet", "--config", e.configPath,
		"--env-file", filepath.Join(e.dir, "missing.env")}, args...)
	err := app.Run(full)
	return buf.String(), err
}

// buildRepo creates A (v1.0.0) <- B <- C (v1.1.0) <- D with main and latest at D.
func buildRepo(t *testing.T) (string, map[string]plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	hashes := map[string]plumbing.Hash{}
	for i, step := range []struct{ id, msg string }{
		{"A", "initial"},
		{"B", "FEATURE: add sidebar"},
		{"C", "FIX: crash on load"},
		{"D", "DEV: cleanup"},
	} {
		if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte(step.id), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("file.txt"); err != nil {
			t.Fatalf("Add: %v", err)
		}
		sig := &object.Signature{Name: "Test", Email: "test@example.com", When: now.Add(time.Duration(i) * time.Hour)}
		h, err := wt.Commit(step.msg, &gogit.CommitOptions{Author: sig, Committer: sig})
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		hashes[step.id] = h
	}
	for tag, id := range map[string]string{"v1.0.0": "A", "v1.1.0": "C"} {
		if _, err := repo.CreateTag(tag, hashes[id], nil); err != nil {
			t.Fatalf("CreateTag(%s): %v", tag, err)
		}
	}
	for _, branch := range []string{"main", "latest"} {
		ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hashes["D"])
		if err := repo.Storer.SetReference(ref); err != nil {
			t.Fatalf("SetReference(%s): %v", branch, err)
		}
	}
	return dir, hashes
}

func TestIngestThenQuery(t *testing.T) {
	env := newCLIEnv(t)
	repoDir, hashes := buildRepo(t)
	outDir := filepath.Join(env.dir, "data")

	if _, err := env.run("ingest", "--repo", repoDir, "--origin", "", "--base-tag", "v1.0.0", "--skip-fetch"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	snapPath := filepath.Join(outDir, "commits.json")
	doc, err := snapshot.Load(snapPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Commits) != 3 {
		t.Fatalf("commits = %d, want 3", len(doc.Commits))
	}
	if got := doc.Commits[hashes["D"].String()].Version; got != "v1.1.0 +1" {
		t.Errorf("D version = %q, want v1.1.0 +1", got)
	}

	t.Run("changelog", func(t *testing.T) {
		reportPath := filepath.Join(env.dir, "report.json")
		if _, err := env.run("changelog", "--format", "json", "--output", reportPath, "v1.0.0..main"); err != nil {
			t.Fatalf("changelog: %v", err)
		}
		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		var report output.JSONRangeReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if report.Total != 3 || len(report.Commits) != 3 {
			t.Errorf("total = %d, commits = %d, want 3", report.Total, len(report.Commits))
		}
		if report.Commits[0].Hash != hashes["D"].String() {
			t.Errorf("first commit = %s, want D", report.Commits[0].Hash)
		}
	})

	t.Run("changelog kind filter", func(t *testing.T) {
		reportPath := filepath.Join(env.dir, "fixes.json")
		if _, err := env.run("changelog", "--start", "v1.0.0", "--end", "main", "--kind", "fix", "--format", "json", "--output", reportPath); err != nil {
			t.Fatalf("changelog: %v", err)
		}
		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		var report output.JSONRangeReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(report.Commits) != 1 || report.Commits[0].Hash != hashes["C"].String() {
			t.Errorf("commits = %+v, want only C", report.Commits)
		}
	})

	t.Run("resolve", func(t *testing.T) {
		out, err := env.run("resolve", "v1.1.0")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !strings.HasPrefix(out, hashes["C"].String()+" v1.1.0 FIX: crash on load") {
			t.Errorf("resolve output = %q", out)
		}
	})

	t.Run("resolve unknown", func(t *testing.T) {
		_, err := env.run("resolve", "nope")
		if !errors.Is(err, changelog.ErrUnknownRef) {
			t.Errorf("err = %v, want ErrUnknownRef", err)
		}
	})

	t.Run("previous", func(t *testing.T) {
		out, err := env.run("previous", "main")
		if err != nil {
			t.Fatalf("previous: %v", err)
		}
		if !strings.HasPrefix(out, "v1.1.0 ") {
			t.Errorf("previous output = %q", out)
		}
	})

	t.Run("refs", func(t *testing.T) {
		reportPath := filepath.Join(env.dir, "refs.json")
		if _, err := env.run("refs", "--format", "json", "--output", reportPath); err != nil {
			t.Fatalf("refs: %v", err)
		}
		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		var report output.JSONRefsReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if report.BaseTag != "v1.0.0" || report.DefaultStart != "v1.1.0" || report.DefaultEnd != "latest" {
			t.Errorf("refs report = %+v", report)
		}
	})
}

func TestChangelog_RangeArgumentConflicts(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "Range and start", args: []string{"changelog", "--start", "v1", "a..b"}},
		{name: "Two ranges", args: []string{"changelog", "a..b", "c..d"}},
		{name: "Three dots", args: []string{"changelog", "a...b"}},
		{name: "Unknown kind", args: []string{"changelog", "--kind", "bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.run(tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestResolve_RequiresOneArgument(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run("resolve"); err == nil {
		t.Error("expected error without a ref")
	}
}
