package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	defer func() { Version = old }()
	Version = "1.2.3"
	if got := String(); !strings.HasPrefix(got, "stackexplorer version 1.2.3 (") {
		t.Errorf("String() = %q", got)
	}
}
