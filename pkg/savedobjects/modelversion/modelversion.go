package modelversion

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/opst/somigrate/pkg/savedobjects"
	"golang.org/x/mod/semver"
)

// Zero is the version of a type without any migration.
const Zero = "0.0.0"

// virtual versions of model versions are "10.{model version}.0".
const virtualMajor = 10

var ErrNotModelVersion = errors.New("modelversion: not a virtual model version")

var strict = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

// Valid reports whether v is a semantic version "MAJOR.MINOR.PATCH".
//
// No prefix, prerelease nor build metadata is allowed.
func Valid(v string) bool {
	return strict.MatchString(v) && semver.IsValid("v"+v)
}

// Compare returns -1, 0 or 1 when a < b, a == b or a > b.
//
// Invalid versions are smaller than any valid versions and equal to each other.
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

func canonical(v string) string {
	if !Valid(v) {
		return ""
	}
	return "v" + v
}

// FromModelVersion converts a model version number to the virtual version.
func FromModelVersion(n int) string {
	return fmt.Sprintf("%d.%d.0", virtualMajor, n)
}

// ToModelVersion converts a virtual version back to its model version number.
//
// # Returns
//
// - int: model version.
//
// - error: wraps ErrNotModelVersion if v is not "10.N.0".
func ToModelVersion(v string) (int, error) {
	if !Valid(v) {
		return 0, fmt.Errorf("%w: %q is not a semantic version", ErrNotModelVersion, v)
	}
	if semver.Major("v"+v) != "v"+strconv.Itoa(virtualMajor) {
		return 0, fmt.Errorf("%w: %s", ErrNotModelVersion, v)
	}
	mm := semver.MajorMinor("v" + v)
	if "v"+v != mm+".0" {
		return 0, fmt.Errorf("%w: %s has patch version", ErrNotModelVersion, v)
	}
	_, minor, _ := strings.Cut(mm, ".")
	n, err := strconv.Atoi(minor)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotModelVersion, v)
	}
	return n, nil
}

// Latest returns the highest valid version in versions.
//
// If no valid version is passed, it returns Zero.
func Latest(versions ...string) string {
	latest := Zero
	for _, v := range versions {
		if Valid(v) && Compare(latest, v) < 0 {
			latest = v
		}
	}
	return latest
}

// Status is the result of comparing app versions against index versions.
type Status string

const (
	// Equal: every type has same version in the app and in the index.
	Equal Status = "equal"

	// Greater: the app is newer than the index for some types, and never older.
	Greater Status = "greater"

	// Lesser: the app is older than the index for some types, and never newer.
	Lesser Status = "lesser"

	// Conflict: the app is newer for some types and older for the others.
	Conflict Status = "conflict"
)

type TypeComparison struct {
	Type         savedobjects.Type `json:"type"`
	AppVersion   string            `json:"appVersion"`
	IndexVersion string            `json:"indexVersion"`
	Result       int               `json:"result"`
}

type Comparison struct {
	Status  Status           `json:"status"`
	Details []TypeComparison `json:"details"`
}

// CompareMaps compares versions per type.
//
// Only types found in both of app and index are considered.
// Details are sorted by type name.
func CompareMaps(app, index map[savedobjects.Type]string) Comparison {
	details := []TypeComparison{}
	greater, lesser := false, false
	for t, av := range app {
		iv, ok := index[t]
		if !ok {
			continue
		}
		r := Compare(av, iv)
		switch {
		case r > 0:
			greater = true
		case r < 0:
			lesser = true
		}
		details = append(details, TypeComparison{
			Type: t, AppVersion: av, IndexVersion: iv, Result: r,
		})
	}
	slices.SortFunc(details, func(a, b TypeComparison) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})

	status := Equal
	switch {
	case greater && lesser:
		status = Conflict
	case greater:
		status = Greater
	case lesser:
		status = Lesser
	}
	return Comparison{Status: status, Details: details}
}
