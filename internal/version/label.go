// Package version assigns release labels to commits and orders version strings.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/discourse/discourse-releases/internal/git"
)

var (
	distanceSuffix = regexp.MustCompile(`\s*\+(\d+)$`)
	betaSuffix     = regexp.MustCompile(`\.beta(\d+)$`)
	semverShape    = regexp.MustCompile(`^v?\d+\.\d+\.\d+`)
)

// Label is a derived version: the nearest tag and the number of untagged commits
// between the labelled commit and that tag.
type Label struct {
	Tag      string
	Distance int
}

// String renders "tag" or "tag +N".
func (l Label) String() string {
	if l.Distance == 0 {
		return l.Tag
	}
	return fmt.Sprintf("%s +%d", l.Tag, l.Distance)
}

// ParseLabel parses the String form of a Label.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Label{}, fmt.Errorf("empty version label")
	}
	m := distanceSuffix.FindStringSubmatchIndex(s)
	if m == nil {
		return Label{Tag: s}, nil
	}
	n, err := strconv.Atoi(s[m[2]:m[3]])
	if err != nil {
		return Label{}, fmt.Errorf("invalid distance in %q: %w", s, err)
	}
	tag := strings.TrimSpace(s[:m[0]])
	if tag == "" {
		return Label{}, fmt.Errorf("missing tag in %q", s)
	}
	return Label{Tag: tag, Distance: n}, nil
}

// IsReleaseTag reports whether tag has the strict vMAJOR.MINOR.PATCH shape.
func IsReleaseTag(tag string) bool {
	return git.IsReleaseTag(tag)
}

// StripDistance removes a trailing " +N" distance suffix.
func StripDistance(s string) string {
	return distanceSuffix.ReplaceAllString(strings.TrimSpace(s), "")
}

// Normalize rewrites the legacy "X.Y.Z.betaN" notation as "X.Y.Z-beta.N".
// Only used for comparison; display strings keep their original form.
func Normalize(v string) string {
	return betaSuffix.ReplaceAllString(v, "-beta.$1")
}

// Canonical returns the comparable semver form ("vX.Y.Z[-pre]") of a tag, label or
// plain version string, and false when it does not parse.
func Canonical(v string) (string, bool) {
	v = Normalize(StripDistance(v))
	if !semverShape.MatchString(v) {
		return "", false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return semver.Canonical(v), true
}

// Compare compares two version strings after canonicalisation. Strings that do not
// parse sort below every valid version and compare lexicographically among themselves.
func Compare(a, b string) int {
	ca, okA := Canonical(a)
	cb, okB := Canonical(b)
	switch {
	case okA && okB:
		return semver.Compare(ca, cb)
	case okA:
		return 1
	case okB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// MinorPatch splits a release tag into its "MAJOR.MINOR" line and patch number.
func MinorPatch(tag string) (string, int, bool) {
	if !IsReleaseTag(tag) {
		return "", 0, false
	}
	i := strings.LastIndexByte(tag, '.')
	patch, err := strconv.Atoi(tag[i+1:])
	if err != nil {
		return "", 0, false
	}
	return tag[1:i], patch, true
}
