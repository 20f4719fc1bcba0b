package git

import "testing"

func TestPreferTag(t *testing.T) {
	tests := []struct {
		candidate, current string
		want               bool
	}{
		{candidate: "v1.0.0", current: "beta-latest", want: true},
		{candidate: "beta-latest", current: "v1.0.0", want: false},
		{candidate: "v1.0.0", current: "v1.0.1", want: true},
		{candidate: "v3.5.0.beta1", current: "v3.5.0", want: false},
		{candidate: "alpha", current: "beta", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.candidate+"_over_"+tt.current, func(t *testing.T) {
			if got := PreferTag(tt.candidate, tt.current); got != tt.want {
				t.Fatalf("PreferTag(%q, %q) = %v, expected %v", tt.candidate, tt.current, got, tt.want)
			}
		})
	}
}

func TestTagsByCommit(t *testing.T) {
	got := TagsByCommit(map[string]string{
		"beta-latest":  "c1",
		"v3.5.0":       "c1",
		"v3.5.0.beta2": "c2",
		"latest-beta":  "c2",
	})
	if got["c1"] != "v3.5.0" {
		t.Errorf("c1 = %q, expected v3.5.0", got["c1"])
	}
	if got["c2"] != "latest-beta" {
		t.Errorf("c2 = %q, expected latest-beta", got["c2"])
	}
}
