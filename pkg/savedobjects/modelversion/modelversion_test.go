package modelversion_test

import (
	"errors"
	"testing"

	"github.com/opst/somigrate/pkg/cmp"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/modelversion"
)

func TestValid(t *testing.T) {
	for v, want := range map[string]bool{
		"10.2.0":       true,
		"8.7.0":        true,
		"0.0.0":        true,
		"v10.2.0":      false,
		"10.2":         false,
		"10.02.0":      false,
		"10.2.0-beta1": false,
		"":             false,
		"latest":       false,
	} {
		if got := modelversion.Valid(v); got != want {
			t.Errorf("Valid(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestCompare(t *testing.T) {
	type When struct{ a, b string }

	theory := func(when When, then int) func(*testing.T) {
		return func(t *testing.T) {
			if got := modelversion.Compare(when.a, when.b); got != then {
				t.Errorf("Compare(%s, %s) = %d, want %d", when.a, when.b, got, then)
			}
		}
	}

	t.Run("equal", theory(When{"10.1.0", "10.1.0"}, 0))
	t.Run("minor is compared numerically", theory(When{"10.10.0", "10.9.0"}, 1))
	t.Run("legacy version is older than model versions", theory(When{"8.8.0", "10.0.0"}, -1))
	t.Run("invalid is smaller than valid", theory(When{"broken", "0.0.0"}, -1))
}

func TestModelVersionConversion(t *testing.T) {
	for n := range 12 {
		v := modelversion.FromModelVersion(n)
		got, err := modelversion.ToModelVersion(v)
		if err != nil {
			t.Fatalf("ToModelVersion(%s): %v", v, err)
		}
		if got != n {
			t.Errorf("ToModelVersion(FromModelVersion(%d)) = %d", n, got)
		}
	}

	if got := modelversion.FromModelVersion(2); got != "10.2.0" {
		t.Errorf("FromModelVersion(2) = %s, want 10.2.0", got)
	}

	for _, v := range []string{"8.7.0", "10.2.1", "11.0.0", "nope"} {
		if _, err := modelversion.ToModelVersion(v); !errors.Is(err, modelversion.ErrNotModelVersion) {
			t.Errorf("ToModelVersion(%s): want ErrNotModelVersion, got %v", v, err)
		}
	}
}

func TestLatest(t *testing.T) {
	if got := modelversion.Latest(); got != modelversion.Zero {
		t.Errorf("Latest() = %s, want %s", got, modelversion.Zero)
	}
	if got := modelversion.Latest("7.14.0", "8.7.0", "broken", "8.10.0"); got != "8.10.0" {
		t.Errorf("Latest(...) = %s, want 8.10.0", got)
	}
}

func TestCompareMaps(t *testing.T) {
	type When struct {
		app   map[savedobjects.Type]string
		index map[savedobjects.Type]string
	}
	type Then struct {
		status modelversion.Status
		types  []savedobjects.Type
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			got := modelversion.CompareMaps(when.app, when.index)
			if got.Status != then.status {
				t.Errorf("status\n- got: %s\n- want: %s", got.Status, then.status)
			}
			types := []savedobjects.Type{}
			for _, d := range got.Details {
				types = append(types, d.Type)
			}
			if !cmp.SliceEq(types, then.types) {
				t.Errorf("detail types\n- got: %v\n- want: %v", types, then.types)
			}
		}
	}

	t.Run("same versions are equal", theory(
		When{
			app:   map[savedobjects.Type]string{"dashboard": "10.2.0", "task": "10.1.0"},
			index: map[savedobjects.Type]string{"dashboard": "10.2.0", "task": "10.1.0"},
		},
		Then{status: modelversion.Equal, types: []savedobjects.Type{"dashboard", "task"}},
	))
	t.Run("newer app is greater", theory(
		When{
			app:   map[savedobjects.Type]string{"dashboard": "10.3.0", "task": "10.1.0"},
			index: map[savedobjects.Type]string{"dashboard": "10.2.0", "task": "10.1.0"},
		},
		Then{status: modelversion.Greater, types: []savedobjects.Type{"dashboard", "task"}},
	))
	t.Run("older app is lesser", theory(
		When{
			app:   map[savedobjects.Type]string{"dashboard": "10.1.0"},
			index: map[savedobjects.Type]string{"dashboard": "10.2.0"},
		},
		Then{status: modelversion.Lesser, types: []savedobjects.Type{"dashboard"}},
	))
	t.Run("mixed is conflict", theory(
		When{
			app:   map[savedobjects.Type]string{"dashboard": "10.3.0", "task": "10.0.0"},
			index: map[savedobjects.Type]string{"dashboard": "10.2.0", "task": "10.1.0"},
		},
		Then{status: modelversion.Conflict, types: []savedobjects.Type{"dashboard", "task"}},
	))
	t.Run("types on one side only are ignored", theory(
		When{
			app:   map[savedobjects.Type]string{"dashboard": "10.2.0", "lens": "10.1.0"},
			index: map[savedobjects.Type]string{"dashboard": "10.2.0", "map": "10.9.0"},
		},
		Then{status: modelversion.Equal, types: []savedobjects.Type{"dashboard"}},
	))
}
