package server

import (
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/version"
)

type commitView struct {
	Hash    string   `json:"hash"`
	Parents []string `json:"parents"`
	Author  string   `json:"author"`
	Date    string   `json:"date"`
	Subject string   `json:"subject"`
	Body    string   `json:"body,omitempty"`
	Version string   `json:"version"`
	Kind    string   `json:"kind"`
}

func (s *Server) viewOf(c git.Commit) commitView {
	parents := c.Parents
	if parents == nil {
		parents = []string{}
	}
	return commitView{
		Hash:    c.Hash,
		Parents: parents,
		Author:  c.Author,
		Date:    c.Date.UTC().Format(time.RFC3339),
		Subject: c.Subject,
		Body:    c.Body,
		Version: c.Version,
		Kind:    string(s.engine.Classifier().Classify(c.Subject)),
	}
}

type refsResponse struct {
	Refs                []changelog.Ref                `json:"refs"`
	DefaultStart        string                         `json:"defaultStart"`
	DefaultEnd          string                         `json:"defaultEnd"`
	BaseTag             string                         `json:"baseTag"`
	TotalCommits        int                            `json:"totalCommits"`
	GeneratedAt         string                         `json:"generatedAt,omitempty"`
	ProvisionalVersions map[string]version.Provisional `json:"provisionalVersions,omitempty"`
}

func (s *Server) handleRefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, refsResponse{
		Refs:                s.engine.SortedRefs(),
		DefaultStart:        s.engine.DefaultStartRef(),
		DefaultEnd:          s.engine.DefaultEndRef(),
		BaseTag:             s.engine.BaseTag(),
		TotalCommits:        s.engine.TotalCommits(),
		GeneratedAt:         s.engine.GeneratedAt(),
		ProvisionalVersions: s.engine.ProvisionalVersions(),
	})
}

type resolveResponse struct {
	Ref    string      `json:"ref"`
	Hash   string      `json:"hash"`
	Commit *commitView `json:"commit,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	res := s.engine.Resolve(ref)
	resolveTotal.WithLabelValues(res.Kind.String()).Inc()
	if err := res.Err(); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	resp := resolveResponse{Ref: ref, Hash: res.Hash}
	// The base tag resolves to a commit outside the retained window.
	if c, ok := s.engine.Commit(res.Hash); ok {
		v := s.viewOf(c)
		resp.Commit = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

type previousResponse struct {
	Ref      string `json:"ref"`
	Previous string `json:"previous,omitempty"`
	Found    bool   `json:"found"`
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	prev, ok, err := s.engine.PreviousVersion(ref)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, previousResponse{Ref: ref, Previous: prev, Found: ok})
}

type changelogResponse struct {
	Start      string           `json:"start"`
	End        string           `json:"end"`
	StartHash  string           `json:"startHash,omitempty"`
	EndHash    string           `json:"endHash"`
	Total      int              `json:"total"`
	Counts     map[string]int   `json:"counts"`
	Range      *changelog.Range `json:"range,omitempty"`
	Commits    []commitView     `json:"commits"`
	Features   []feeds.Feature  `json:"features"`
	Advisories []feeds.Advisory `json:"advisories"`
}

// handleChangelog serves /api/changelog?start=&end=&kind=&q=.
func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := commitkind.ParseKind(q.Get("kind"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid kind: %w", err))
		return
	}

	res, err := s.engine.Changelog(changelog.Query{
		Start:  q.Get("start"),
		End:    q.Get("end"),
		Filter: commitkind.Filter{Kind: kind, Search: q.Get("q")},
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rangeCommits.Observe(float64(len(res.Commits)))

	resp := changelogResponse{
		Start:      res.Start,
		End:        res.End,
		StartHash:  res.StartHash,
		EndHash:    res.EndHash,
		Total:      res.Total,
		Counts:     make(map[string]int, len(res.Counts)),
		Range:      res.Range,
		Commits:    make([]commitView, 0, len(res.Commits)),
		Features:   res.Features,
		Advisories: res.Advisories,
	}
	for k, n := range res.Counts {
		resp.Counts[string(k)] = n
	}
	for _, c := range res.Commits {
		resp.Commits = append(resp.Commits, s.viewOf(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
