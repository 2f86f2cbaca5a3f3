package monitoring

import (
	"fmt"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)
	Logf("saved report %s", "r-1")
	if len(*lines) != 1 || (*lines)[0] != "saved report r-1" {
		t.Fatalf("lines = %q", *lines)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("nil logger still delivered: %q", *lines)
	}
}

func TestComponent(t *testing.T) {
	dbLog := Component("db")
	lines := captureLogs(t)

	dbLog("busy, retry %d", 2)
	Component("migrate")("no change")

	want := []string{"[db] busy, retry 2", "[migrate] no change"}
	if len(*lines) != len(want) {
		t.Fatalf("lines = %q, want %q", *lines, want)
	}
	for i := range want {
		if (*lines)[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, (*lines)[i], want[i])
		}
	}
}
