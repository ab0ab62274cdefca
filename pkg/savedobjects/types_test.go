package savedobjects_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/opst/somigrate/pkg/cmp"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/utils/try"
)

func TestIndexTypesMap_IndexOf(t *testing.T) {
	testee := savedobjects.IndexTypesMap{
		".kibana":              {"dashboard", "config"},
		".kibana_task_manager": {"task"},
	}

	type Then struct {
		index string
		ok    bool
	}
	theory := func(when savedobjects.Type, then Then) func(*testing.T) {
		return func(t *testing.T) {
			index, ok := testee.IndexOf(when)
			if index != then.index || ok != then.ok {
				t.Errorf(
					"IndexOf(%s)\n- got: (%s, %v)\n- want: (%s, %v)",
					when, index, ok, then.index, then.ok,
				)
			}
		}
	}

	t.Run("it finds a type in the main index", theory("dashboard", Then{index: ".kibana", ok: true}))
	t.Run("it finds a type in the task manager index", theory("task", Then{index: ".kibana_task_manager", ok: true}))
	t.Run("it reports absence for unknown type", theory("nonexistent-type", Then{index: "", ok: false}))
}

func TestIndexTypesMap_TypesIn(t *testing.T) {
	testee := savedobjects.IndexTypesMap{
		".kibana": {"dashboard", "config"},
	}

	got, ok := testee.TypesIn(".kibana")
	if !ok {
		t.Fatal("index should be found")
	}
	if !cmp.SliceEq(got, []savedobjects.Type{"dashboard", "config"}) {
		t.Errorf("unexpected types: %v", got)
	}

	// returned slice is a copy
	got[0] = "modified"
	if testee[".kibana"][0] != "dashboard" {
		t.Errorf("TypesIn leaks internal slice")
	}

	if _, ok := testee.TypesIn(".kibana_unknown"); ok {
		t.Errorf("unknown index should not be found")
	}
}

func TestIndexTypesMap_Validate(t *testing.T) {
	type When struct {
		m savedobjects.IndexTypesMap
	}
	type Then struct {
		err error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			err := when.m.Validate()
			if !errors.Is(err, then.err) {
				t.Errorf("Validate()\n- got: %v\n- want: %v", err, then.err)
			}
		}
	}

	t.Run("empty map is valid", theory(
		When{m: savedobjects.IndexTypesMap{}},
		Then{err: nil},
	))
	t.Run("types in disjoint indices are valid", theory(
		When{m: savedobjects.IndexTypesMap{
			".kibana":              {"dashboard", "config"},
			".kibana_task_manager": {"task"},
		}},
		Then{err: nil},
	))
	t.Run("a type in two indices is invalid", theory(
		When{m: savedobjects.IndexTypesMap{
			".kibana":           {"dashboard", "config"},
			".kibana_analytics": {"dashboard"},
		}},
		Then{err: savedobjects.ErrDuplicateType},
	))
	t.Run("a type twice in one index is invalid", theory(
		When{m: savedobjects.IndexTypesMap{
			".kibana": {"dashboard", "dashboard"},
		}},
		Then{err: savedobjects.ErrDuplicateType},
	))
}

func TestIndexTypesMap_CloneAndJSON(t *testing.T) {
	original := savedobjects.IndexTypesMap{
		".kibana":              {"dashboard"},
		".kibana_task_manager": {"task"},
	}

	clone := original.Clone()
	clone[".kibana"][0] = "lens"
	if original[".kibana"][0] != "dashboard" {
		t.Errorf("Clone shares backing arrays")
	}

	payload := try.To(json.Marshal(original)).OrFatal(t)
	want := `{".kibana":["dashboard"],".kibana_task_manager":["task"]}`
	if string(payload) != want {
		t.Errorf("json\n- got: %s\n- want: %s", payload, want)
	}

	if !original.Types().HasAll("dashboard", "task") || original.Types().Len() != 2 {
		t.Errorf("unexpected type set: %v", original.Types())
	}

	if !cmp.SliceEq(original.Indices(), []string{".kibana", ".kibana_task_manager"}) {
		t.Errorf("unexpected indices: %v", original.Indices())
	}
}
