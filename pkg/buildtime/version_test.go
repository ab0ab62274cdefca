package buildtime_test

import (
	"strings"
	"testing"

	"github.com/opst/somigrate/pkg/buildtime"
)

func TestVersionString(t *testing.T) {
	if v := buildtime.VERSION(); v == "" || strings.ContainsAny(v, " \n") {
		t.Errorf("VERSION is not trimmed: %q", v)
	}
	if r := buildtime.GIT_REVISION(); r == "" || strings.ContainsAny(r, " \n") {
		t.Errorf("revision is not trimmed: %q", r)
	}
	want := buildtime.VERSION() + " (commit: " + buildtime.GIT_REVISION() + ")"
	if got := buildtime.VersionString(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
