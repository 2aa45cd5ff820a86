package version

import (
	"strings"
	"testing"
)

func TestString_ContainsNameAndVersion(t *testing.T) {
	t.Parallel()

	s := String()
	if !strings.Contains(s, "askdb") {
		t.Errorf("expected binary name in version string, got %q", s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("expected version %q in version string, got %q", Version, s)
	}
}
