package changelog

import (
	"fmt"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/discourse/discourse-releases/internal/git"
)

// --- Generators ---

// genEngine draws a random DAG over hex hashes. Parents always point at earlier
// nodes, with an occasional dangling parent outside the snapshot.
func genEngine() *rapid.Generator[*Engine] {
	return rapid.Custom(func(t *rapid.T) *Engine {
		n := rapid.IntRange(1, 30).Draw(t, "n")
		g := git.NewCommitGraph("v0.0.0")
		hashes := make([]string, n)
		for i := 0; i < n; i++ {
			// A shared two-character stem makes ambiguous prefixes likely.
			stem := rapid.SampledFrom([]string{"aa", "ab", "ba"}).Draw(t, fmt.Sprintf("stem%d", i))
			hashes[i] = fullHash(fmt.Sprintf("%s%04x", stem, i))

			var parents []string
			if i > 0 {
				np := rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("np%d", i))
				for p := 0; p < np; p++ {
					parents = append(parents, hashes[rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("p%d_%d", i, p))])
				}
			}
			if rapid.IntRange(0, 9).Draw(t, fmt.Sprintf("dangling%d", i)) == 0 {
				parents = append(parents, fullHash("ffff"))
			}
			g.Add(&git.Commit{Hash: hashes[i], Parents: parents})
		}
		return NewFromGraph(g, Options{})
	})
}

func drawHash(t *rapid.T, e *Engine, label string) string {
	return rapid.SampledFrom(e.hashes).Draw(t, label)
}

// --- Property Tests ---

func TestRapidTraverse_ClosedUnderParents(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := genEngine().Draw(t, "engine")
		r := drawHash(t, e, "r")

		closure := e.TraverseParents(r)
		if !closure.Contains(r) {
			t.Fatalf("closure of %s does not contain itself", r)
		}
		closure.Each(func(h string) bool {
			for _, p := range e.graph.Commits[h].Parents {
				if !closure.IsSuperset(e.TraverseParents(p)) {
					t.Fatalf("closure(%s) is not a superset of closure(%s)", r, p)
				}
			}
			return false
		})
	})
}

func TestRapidBetween_SelfIsEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := genEngine().Draw(t, "engine")
		r := drawHash(t, e, "r")

		got, err := e.CommitsBetween(r, r)
		if err != nil {
			t.Fatalf("CommitsBetween: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("CommitsBetween(%s, %s) returned %d commits", r, r, len(got))
		}
	})
}

func TestRapidBetween_AncestorPartition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := genEngine().Draw(t, "engine")
		b := drawHash(t, e, "b")
		ancestors := e.TraverseParents(b).ToSlice()
		sort.Strings(ancestors)
		a := rapid.SampledFrom(ancestors).Draw(t, "a")

		between, err := e.CommitsBetween(a, b)
		if err != nil {
			t.Fatalf("CommitsBetween: %v", err)
		}
		reachA := e.TraverseParents(a)
		reachB := e.TraverseParents(b)

		union := reachA.Clone()
		for _, c := range between {
			if reachA.Contains(c.Hash) {
				t.Fatalf("%s is in both reachable(a) and between(a, b)", c.Hash)
			}
			union.Add(c.Hash)
		}
		if !union.Equal(reachB) {
			t.Fatalf("reachable(a) + between(a, b) != reachable(b): %v vs %v", union, reachB)
		}
	})
}

func TestRapidResolve_FullHashIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := genEngine().Draw(t, "engine")
		h := drawHash(t, e, "h")

		got, err := e.ResolveRef(h)
		if err != nil || got != h {
			t.Fatalf("ResolveRef(%s) = %s, %v", h, got, err)
		}
		again, err := e.ResolveRef(got)
		if err != nil || again != got {
			t.Fatalf("second ResolveRef(%s) = %s, %v", got, again, err)
		}
	})
}

func TestRapidResolve_PrefixOutcome(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := genEngine().Draw(t, "engine")
		h := drawHash(t, e, "h")
		n := rapid.IntRange(1, 8).Draw(t, "prefixLen")
		prefix := h[:n]

		var matches []string
		for _, candidate := range e.hashes {
			if len(candidate) >= n && candidate[:n] == prefix {
				matches = append(matches, candidate)
			}
		}

		r := e.Resolve(prefix)
		switch len(matches) {
		case 1:
			if r.Kind != Resolved || r.Hash != matches[0] {
				t.Fatalf("Resolve(%s) = %+v, expected %s", prefix, r, matches[0])
			}
		default:
			if r.Kind != Ambiguous || len(r.Matches) != len(matches) {
				t.Fatalf("Resolve(%s) = %+v, expected %d matches", prefix, r, len(matches))
			}
		}

		if miss := e.Resolve("fe" + prefix); miss.Kind != Unknown {
			t.Fatalf("Resolve(fe%s) = %+v, expected unknown", prefix, miss)
		}
	})
}
