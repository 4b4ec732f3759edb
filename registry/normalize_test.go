package registry

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "Node Code Analyzer", "Node Code Analyzer"},
		{"double space collapses", "Node  Code Analyzer", "Node Code Analyzer"},
		{"tab and newline collapse", "Node\tCode\nAnalyzer", "Node Code Analyzer"},
		{"leading and trailing trimmed", "  Security Scanner  ", "Security Scanner"},
		{"non-breaking space", "Test Generator", "Test Generator"},
		{"mixed whitespace run", "Test  \t Generator", "Test Generator"},
		{"fullwidth compatibility form", "Ｎode Code Analyzer", "Node Code Analyzer"},
		{"empty", "", ""},
		{"whitespace only", " \t  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Node  Code Analyzer",
		"  Dependency\tAnalyzer ",
		"Test Generator",
		"",
		"already normal",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		atLeast float64
		below   float64
	}{
		{"identical", "Node Code Analyzer", "Node Code Analyzer", 1, 1.01},
		{"both empty", "", "", 1, 1.01},
		{"one dropped letter", "Node Cod Analyzer", "Node Code Analyzer", 0.9, 1},
		{"unrelated", "Totally Unknown Tool", "Node Code Analyzer", 0, suggestCutoff},
		{"empty versus name", "", "Node Code Analyzer", 0, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.a, tt.b)
			if got < tt.atLeast || got >= tt.below {
				t.Errorf("similarity(%q, %q) = %v, want in [%v, %v)", tt.a, tt.b, got, tt.atLeast, tt.below)
			}
		})
	}
}
