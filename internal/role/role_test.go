package role

import "testing"

func TestParse_Known(t *testing.T) {
	for _, r := range All {
		got, err := Parse(string(r))
		if err != nil {
			t.Fatalf("Parse(%q): %v", r, err)
		}
		if got != r {
			t.Errorf("Parse(%q) = %q", r, got)
		}
	}
}

func TestParse_RejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "root", "ADMIN", "technician "} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}
