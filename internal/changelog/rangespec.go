package changelog

import (
	"fmt"
	"strings"
)

// ParseRangeSpec splits "start..end" into its refs. "..end" leaves start empty and
// "start.." leaves end empty, deferring to the Query defaults. A spec without ".."
// is a single end ref. The three-dot form is rejected since the range is always
// reachable(end) minus reachable(start).
func ParseRangeSpec(spec string) (start, end string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("empty range spec")
	}
	if strings.Contains(spec, "...") {
		return "", "", fmt.Errorf("invalid range spec %q: use 'start..end'", spec)
	}

	idx := strings.Index(spec, "..")
	if idx == -1 {
		return "", spec, nil
	}
	start = strings.TrimSpace(spec[:idx])
	end = strings.TrimSpace(spec[idx+2:])
	if strings.Contains(end, "..") {
		return "", "", fmt.Errorf("invalid range spec %q: more than one '..'", spec)
	}
	if start == "" && end == "" {
		return "", "", fmt.Errorf("invalid range spec %q: missing refs", spec)
	}
	return start, end, nil
}
