// Package buildtime exposes build metadata embedded at build time.
//
// VERSION and revision are rewritten by the release build. revision is "unknown" in development.
package buildtime

import (
	_ "embed"
	"strings"
)

var (
	//go:embed VERSION
	rawVersion string

	//go:embed revision
	rawRevision string
)

// VERSION is the release version, like "v0.1.0".
func VERSION() string {
	return strings.TrimSpace(rawVersion)
}

// GIT_REVISION is the commit hash which the binary is built from.
func GIT_REVISION() string {
	return strings.TrimSpace(rawRevision)
}

// VersionString is for `version` commands.
func VersionString() string {
	return VERSION() + " (commit: " + GIT_REVISION() + ")"
}
