package git

import "regexp"

var releaseTagPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// IsReleaseTag reports whether tag has the strict vMAJOR.MINOR.PATCH shape.
func IsReleaseTag(tag string) bool {
	return releaseTagPattern.MatchString(tag)
}

// PreferTag reports whether candidate should name a commit already named current.
// A strict release tag wins; remaining ties go to the smallest name.
func PreferTag(candidate, current string) bool {
	cr, pr := IsReleaseTag(candidate), IsReleaseTag(current)
	if cr != pr {
		return cr
	}
	return candidate < current
}

// TagsByCommit builds the commit -> tag reverse map using PreferTag.
func TagsByCommit(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for name, hash := range tags {
		if prev, ok := out[hash]; !ok || PreferTag(name, prev) {
			out[hash] = name
		}
	}
	return out
}
