package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/version"
)

func fullHash(id string) string {
	return id + strings.Repeat("0", git.HashLength-len(id))
}

// newTestServer serves A(v1.0.0) <- B <- C(v1.1.0) <- D with main and latest at D,
// release/1.0 at B, and two commits sharing the "ab" prefix.
func newTestServer(t *testing.T) (*httptest.Server, map[string]string) {
	t.Helper()
	h := map[string]string{
		"A": fullHash("a1"),
		"B": fullHash("ab1"),
		"C": fullHash("ab2"),
		"D": fullHash("d4"),
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g := git.NewCommitGraph("v1.0.0")
	g.Add(&git.Commit{Hash: h["A"], Date: base, Subject: "initial"})
	g.Add(&git.Commit{Hash: h["B"], Parents: []string{h["A"]}, Date: base.Add(time.Hour), Subject: "FEATURE: sidebar"})
	g.Add(&git.Commit{Hash: h["C"], Parents: []string{h["B"]}, Date: base.Add(2 * time.Hour), Subject: "FIX: crash"})
	g.Add(&git.Commit{Hash: h["D"], Parents: []string{h["C"]}, Date: base.Add(3 * time.Hour), Subject: "DEV: cleanup"})
	for name, hash := range map[string]string{"v1.0.0": h["A"], "v1.1.0": h["C"]} {
		g.Refs.Tags[name] = hash
		g.AllTags[name] = hash
	}
	g.Refs.Branches["main"] = h["D"]
	g.Refs.Branches["latest"] = h["D"]
	g.Refs.Branches["release/1.0"] = h["B"]
	require.NoError(t, version.NewAssigner(g, nil).AssignAll())

	engine := changelog.NewFromGraph(g, changelog.Options{
		Features:   []feeds.Feature{{ID: 1, Title: "Sidebar", DiscourseVersion: "1.1.0"}},
		Advisories: []feeds.Advisory{{GHSAID: "GHSA-1", PatchedVersions: []string{"1.1.0"}}},
	})
	ts := httptest.NewServer(New(engine, nil))
	t.Cleanup(ts.Close)
	return ts, h
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestRefs(t *testing.T) {
	ts, _ := newTestServer(t)

	var got refsResponse
	status := getJSON(t, ts.URL+"/api/refs", &got)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v1.1.0", got.DefaultStart)
	assert.Equal(t, "latest", got.DefaultEnd)
	assert.Equal(t, "v1.0.0", got.BaseTag)
	assert.Equal(t, 4, got.TotalCommits)
	require.Len(t, got.Refs, 5)
	assert.Equal(t, changelog.Ref{Name: "main", Type: changelog.RefBranch}, got.Refs[0])
	assert.Equal(t, changelog.Ref{Name: "v1.1.0", Type: changelog.RefTag}, got.Refs[3])
}

func TestResolve(t *testing.T) {
	ts, h := newTestServer(t)

	t.Run("Tag", func(t *testing.T) {
		var got resolveResponse
		status := getJSON(t, ts.URL+"/api/resolve/v1.1.0", &got)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, h["C"], got.Hash)
		require.NotNil(t, got.Commit)
		assert.Equal(t, "FIX", got.Commit.Kind)
		assert.Equal(t, "v1.1.0", got.Commit.Version)
	})

	t.Run("Branch with slash", func(t *testing.T) {
		var got resolveResponse
		status := getJSON(t, ts.URL+"/api/resolve/release/1.0", &got)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, h["B"], got.Hash)
		assert.Equal(t, "release/1.0", got.Ref)
	})

	t.Run("Unknown", func(t *testing.T) {
		var got errorResponse
		status := getJSON(t, ts.URL+"/api/resolve/ffff", &got)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "unknown", got.Kind)
		assert.Contains(t, got.Error, "unknown ref 'ffff'")
	})

	t.Run("Ambiguous", func(t *testing.T) {
		var got errorResponse
		status := getJSON(t, ts.URL+"/api/resolve/ab", &got)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "ambiguous", got.Kind)
		assert.ElementsMatch(t, []string{h["B"], h["C"]}, got.Matches)
	})
}

func TestPrevious(t *testing.T) {
	ts, _ := newTestServer(t)

	var got previousResponse
	status := getJSON(t, ts.URL+"/api/previous/main", &got)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, got.Found)
	assert.Equal(t, "v1.1.0", got.Previous)

	status = getJSON(t, ts.URL+"/api/previous/v1.0.0", &got)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, got.Found)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/previous/nope", nil))
}

func TestChangelog(t *testing.T) {
	ts, h := newTestServer(t)

	t.Run("Explicit range", func(t *testing.T) {
		var got changelogResponse
		status := getJSON(t, ts.URL+"/api/changelog?start=v1.0.0&end=main", &got)
		require.Equal(t, http.StatusOK, status)

		assert.Equal(t, 3, got.Total)
		require.Len(t, got.Commits, 3)
		assert.Equal(t, h["D"], got.Commits[0].Hash)
		assert.Equal(t, 1, got.Counts["FEATURE"])
		require.NotNil(t, got.Range)
		assert.Equal(t, "v1.0.0", got.Range.Oldest)
		assert.Equal(t, "v1.1.0", got.Range.Newest)
		assert.Len(t, got.Features, 1)
		assert.Len(t, got.Advisories, 1)
	})

	t.Run("Defaults", func(t *testing.T) {
		var got changelogResponse
		status := getJSON(t, ts.URL+"/api/changelog", &got)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "latest", got.End)
		assert.Equal(t, "v1.1.0", got.Start)
		require.Len(t, got.Commits, 1)
		assert.Equal(t, h["D"], got.Commits[0].Hash)
	})

	t.Run("Kind and search", func(t *testing.T) {
		var got changelogResponse
		status := getJSON(t, ts.URL+"/api/changelog?start=v1.0.0&end=main&kind=fix&q=CRASH", &got)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, got.Commits, 1)
		assert.Equal(t, h["C"], got.Commits[0].Hash)
		assert.Equal(t, 3, got.Total)
	})

	t.Run("Invalid kind", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/changelog?kind=bogus", nil))
	})

	t.Run("Unknown ref", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/changelog?end=nope", nil))
	})
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t)
	getJSON(t, ts.URL+"/api/refs", nil)

	// The request is counted after its response is flushed.
	assert.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK &&
			strings.Contains(string(body), `changelog_http_requests_total{route="/api/refs",status="200"}`)
	}, 2*time.Second, 20*time.Millisecond)
}
