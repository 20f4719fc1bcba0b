package changelog

import (
	"sort"
	"strings"

	"github.com/discourse/discourse-releases/internal/git"
)

// Resolve maps a ref to a commit hash. Lookup order: tag name, branch name, then
// hash. Refs shorter than a full hash are prefixes; full-length refs must exist
// verbatim.
func (e *Engine) Resolve(ref string) Resolution {
	if hash, ok := e.graph.Refs.Tags[ref]; ok {
		return Resolution{Kind: Resolved, Ref: ref, Hash: hash}
	}
	if hash, ok := e.graph.Refs.Branches[ref]; ok {
		return Resolution{Kind: Resolved, Ref: ref, Hash: hash}
	}
	// The base tag targets a commit just below the retained window.
	if ref != "" && ref == e.graph.BaseTag {
		if hash, ok := e.graph.AllTags[ref]; ok {
			return Resolution{Kind: Resolved, Ref: ref, Hash: hash}
		}
	}

	if ref == "" {
		return Resolution{Kind: Unknown, Ref: ref}
	}

	if len(ref) < git.HashLength {
		matches := e.prefixMatches(ref)
		switch len(matches) {
		case 0:
			return Resolution{Kind: Unknown, Ref: ref}
		case 1:
			return Resolution{Kind: Resolved, Ref: ref, Hash: matches[0]}
		default:
			return Resolution{Kind: Ambiguous, Ref: ref, Matches: matches}
		}
	}

	if _, ok := e.graph.Commits[ref]; !ok {
		return Resolution{Kind: Unknown, Ref: ref}
	}
	return Resolution{Kind: Resolved, Ref: ref, Hash: ref}
}

// ResolveRef is Resolve in (hash, error) form. The error is a *RefError.
func (e *Engine) ResolveRef(ref string) (string, error) {
	r := e.Resolve(ref)
	if err := r.Err(); err != nil {
		return "", err
	}
	return r.Hash, nil
}

// prefixMatches returns every retained hash starting with prefix, in sorted order.
func (e *Engine) prefixMatches(prefix string) []string {
	i := sort.SearchStrings(e.hashes, prefix)
	var matches []string
	for ; i < len(e.hashes) && strings.HasPrefix(e.hashes[i], prefix); i++ {
		matches = append(matches, e.hashes[i])
	}
	return matches
}
