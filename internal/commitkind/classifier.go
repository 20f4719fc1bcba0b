// Package commitkind classifies commits by their subject prefix.
package commitkind

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/discourse/discourse-releases/internal/git"
)

// Kind identifies a commit category.
type Kind string

const (
	Feature      Kind = "FEATURE"
	Fix          Kind = "FIX"
	Perf         Kind = "PERF"
	UX           Kind = "UX"
	A11y         Kind = "A11Y"
	Security     Kind = "SECURITY"
	Translations Kind = "TRANSLATIONS"
	Dev          Kind = "DEV"
	Deps         Kind = "DEPS"
	Other        Kind = "OTHER"
)

// Type describes a Kind for display.
type Type struct {
	Kind   Kind
	Label  string
	Prefix string
}

// Types lists every kind in display order. OTHER is last and has no prefix.
var Types = []Type{
	{Kind: Feature, Label: "Feature", Prefix: "FEATURE"},
	{Kind: Fix, Label: "Fix", Prefix: "FIX"},
	{Kind: Perf, Label: "Performance", Prefix: "PERF"},
	{Kind: UX, Label: "UX", Prefix: "UX"},
	{Kind: A11y, Label: "Accessibility", Prefix: "A11Y"},
	{Kind: Security, Label: "Security", Prefix: "SECURITY"},
	{Kind: Translations, Label: "Translations", Prefix: "I18N"},
	{Kind: Dev, Label: "Dev", Prefix: "DEV"},
	{Kind: Deps, Label: "Dependencies", Prefix: "DEPS"},
	{Kind: Other, Label: "Other"},
}

// LabelOf returns the display label for k.
func LabelOf(k Kind) string {
	for _, t := range Types {
		if t.Kind == k {
			return t.Label
		}
	}
	return string(k)
}

// ParseKind parses a kind name case-insensitively. "" and "all" yield "" (no filter).
func ParseKind(s string) (Kind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "ALL" {
		return "", nil
	}
	for _, t := range Types {
		if string(t.Kind) == s {
			return t.Kind, nil
		}
	}
	return "", fmt.Errorf("unknown commit kind %q", s)
}

// DefaultPatterns returns the legacy subject formats that predate prefixes.
func DefaultPatterns() map[Kind][]string {
	return map[Kind][]string{
		Translations: {`^Update translations`},
		Deps:         {`^Build\(deps`},
	}
}

type rule struct {
	kind Kind
	re   *regexp.Regexp
}

// Classifier maps commit subjects to kinds. Prefix rules are checked first in Types
// order, then the extra patterns.
type Classifier struct {
	extra []rule
}

// NewClassifier creates a Classifier with extra regex patterns per kind. Patterns are
// compiled case-insensitive. Returns an error if any pattern fails to compile.
func NewClassifier(patterns map[Kind][]string) (*Classifier, error) {
	for k := range patterns {
		if !known(k) {
			return nil, fmt.Errorf("unknown commit kind %q in patterns", k)
		}
	}

	c := &Classifier{}
	// Iterate Types so rule order does not depend on map order.
	for _, t := range Types {
		for _, p := range patterns[t.Kind] {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, "(?i)") {
				p = "(?i)" + p
			}
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("kind %s: %w", t.Kind, err)
			}
			c.extra = append(c.extra, rule{kind: t.Kind, re: re})
		}
	}
	return c, nil
}

func known(k Kind) bool {
	for _, t := range Types {
		if t.Kind == k {
			return true
		}
	}
	return false
}

// Default returns a Classifier using DefaultPatterns.
func Default() *Classifier {
	c, err := NewClassifier(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the kind of a commit subject.
func (c *Classifier) Classify(subject string) Kind {
	for _, t := range Types {
		if t.Prefix != "" && strings.HasPrefix(subject, t.Prefix+":") {
			return t.Kind
		}
	}
	for _, r := range c.extra {
		if r.re.MatchString(subject) {
			return r.kind
		}
	}
	return Other
}

// Count returns the number of commits per kind. Every kind is present.
func (c *Classifier) Count(commits []git.Commit) map[Kind]int {
	counts := make(map[Kind]int, len(Types))
	for _, t := range Types {
		counts[t.Kind] = 0
	}
	for _, commit := range commits {
		counts[c.Classify(commit.Subject)]++
	}
	return counts
}

// Filter selects commits by kind and case-insensitive subject search.
type Filter struct {
	Kind   Kind
	Search string
}

// Apply returns the commits matching f, preserving order.
func (c *Classifier) Apply(commits []git.Commit, f Filter) []git.Commit {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if f.Kind == "" && term == "" {
		return commits
	}
	out := make([]git.Commit, 0, len(commits))
	for _, commit := range commits {
		if f.Kind != "" && c.Classify(commit.Subject) != f.Kind {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(commit.Subject), term) {
			continue
		}
		out = append(out, commit)
	}
	return out
}
