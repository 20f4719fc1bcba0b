// Package feeds fetches and loads the auxiliary feature and advisory documents.
package feeds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Feature is a new-feature announcement. DiscourseVersion holds either a version
// string or a ref resolvable against the snapshot.
type Feature struct {
	ID               int    `json:"id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	DiscourseVersion string `json:"discourse_version"`
	Link             string `json:"link,omitempty"`
}

// Advisory is a published security advisory with its patched versions.
type Advisory struct {
	GHSAID          string   `json:"ghsa_id"`
	CVEID           *string  `json:"cve_id"`
	Summary         string   `json:"summary"`
	Severity        string   `json:"severity"`
	PublishedAt     string   `json:"published_at"`
	HTMLURL         string   `json:"html_url"`
	PatchedVersions []string `json:"patched_versions"`
}

// rawAdvisory is the subset of the GitHub repository advisory payload we read.
type rawAdvisory struct {
	GHSAID          string  `json:"ghsa_id"`
	CVEID           *string `json:"cve_id"`
	Summary         string  `json:"summary"`
	Severity        string  `json:"severity"`
	PublishedAt     string  `json:"published_at"`
	HTMLURL         string  `json:"html_url"`
	Vulnerabilities []struct {
		PatchedVersions *string `json:"patched_versions"`
	} `json:"vulnerabilities"`
}

// transformAdvisory flattens the patched versions of every vulnerability, splitting
// on commas and dropping blanks and duplicates while keeping first-seen order.
func transformAdvisory(raw rawAdvisory) Advisory {
	seen := make(map[string]struct{})
	patched := []string{}
	for _, v := range raw.Vulnerabilities {
		if v.PatchedVersions == nil {
			continue
		}
		for _, part := range strings.Split(*v.PatchedVersions, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			patched = append(patched, part)
		}
	}
	return Advisory{
		GHSAID:          raw.GHSAID,
		CVEID:           raw.CVEID,
		Summary:         raw.Summary,
		Severity:        raw.Severity,
		PublishedAt:     raw.PublishedAt,
		HTMLURL:         raw.HTMLURL,
		PatchedVersions: patched,
	}
}

// LoadFeatures reads a features document. A missing file wraps fs.ErrNotExist.
func LoadFeatures(path string) ([]Feature, error) {
	var features []Feature
	if err := loadJSON(path, &features); err != nil {
		return nil, err
	}
	return features, nil
}

// LoadAdvisories reads an advisories document. A missing file wraps fs.ErrNotExist.
func LoadAdvisories(path string) ([]Advisory, error) {
	var advisories []Advisory
	if err := loadJSON(path, &advisories); err != nil {
		return nil, err
	}
	return advisories, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
