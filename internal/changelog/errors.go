package changelog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/discourse/discourse-releases/internal/git"
)

var (
	// ErrUnknownRef matches a RefError for a ref that resolves to nothing.
	ErrUnknownRef = errors.New("unknown ref")
	// ErrAmbiguousRef matches a RefError for a hash prefix with several matches.
	ErrAmbiguousRef = errors.New("ambiguous ref")
)

const (
	maxShownMatches = 5
	shownHashLength = 12
)

// ResolutionKind discriminates the outcome of Resolve.
type ResolutionKind int

const (
	Resolved ResolutionKind = iota
	Unknown
	Ambiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Unknown:
		return "unknown"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// Resolution is the result of resolving a ref. Hash is set when Kind is Resolved;
// Matches holds every candidate when Kind is Ambiguous.
type Resolution struct {
	Kind    ResolutionKind
	Ref     string
	Hash    string
	Matches []string
}

// OK reports whether the ref resolved to a single commit.
func (r Resolution) OK() bool {
	return r.Kind == Resolved
}

// Err returns nil for a resolved ref and a *RefError otherwise.
func (r Resolution) Err() error {
	if r.Kind == Resolved {
		return nil
	}
	return &RefError{Kind: r.Kind, Ref: r.Ref, Matches: r.Matches}
}

// RefError is the error form of an unresolved Resolution.
type RefError struct {
	Kind    ResolutionKind
	Ref     string
	Matches []string
}

func (e *RefError) Error() string {
	if e.Kind == Ambiguous {
		return fmt.Sprintf("ambiguous ref '%s' matches %d commits: %s. Use more characters to be specific.",
			e.Ref, len(e.Matches), FormatMatches(e.Matches))
	}
	return fmt.Sprintf("unknown ref '%s'. No matching tag, branch, or commit found.", e.Ref)
}

// Is lets errors.Is match ErrUnknownRef and ErrAmbiguousRef.
func (e *RefError) Is(target error) bool {
	switch target {
	case ErrUnknownRef:
		return e.Kind == Unknown
	case ErrAmbiguousRef:
		return e.Kind == Ambiguous
	}
	return false
}

// FormatMatches shows the first five matches shortened to 12 characters, followed by
// the number of remaining matches.
func FormatMatches(matches []string) string {
	n := min(len(matches), maxShownMatches)
	short := make([]string, n)
	for i := 0; i < n; i++ {
		short[i] = git.ShortHash(matches[i], shownHashLength)
	}
	list := strings.Join(short, ", ")
	if more := len(matches) - maxShownMatches; more > 0 {
		list += fmt.Sprintf(" and %d more", more)
	}
	return list
}
