package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opst/somigrate/pkg/cmp"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
	"github.com/opst/somigrate/pkg/utils/filewatch"
	"github.com/opst/somigrate/pkg/utils/try"
)

const example = `
defaultIndex: .kibana
types:
  - name: dashboard
    index: .kibana_analytics
    modelVersion: 2
  - name: config
    migrations: ["7.14.0", "8.7.0", "7.9.0"]
  - name: task
    index: .kibana_task_manager
    modelVersion: 3
    mappingsModelVersion: 1
  - name: legacy-url-alias
`

func TestUnmarshal(t *testing.T) {
	testee := try.To(registry.Unmarshal([]byte(example))).OrFatal(t)

	if got := testee.DefaultIndex(); got != ".kibana" {
		t.Errorf("default index: %s", got)
	}

	if !cmp.SliceEq(
		testee.Types(),
		[]savedobjects.Type{"config", "dashboard", "legacy-url-alias", "task"},
	) {
		t.Errorf("types: %v", testee.Types())
	}

	wantIndexTypes := savedobjects.IndexTypesMap{
		".kibana":              {"config", "legacy-url-alias"},
		".kibana_analytics":    {"dashboard"},
		".kibana_task_manager": {"task"},
	}
	if got := testee.IndexTypesMap(); !cmp.MapEqWith(got, wantIndexTypes, cmp.SliceEq[savedobjects.Type]) {
		t.Errorf("index types map\n- got: %v\n- want: %v", got, wantIndexTypes)
	}
	if err := testee.IndexTypesMap().Validate(); err != nil {
		t.Error(err)
	}

	if !cmp.SliceEq(testee.Indices(), []string{".kibana", ".kibana_analytics", ".kibana_task_manager"}) {
		t.Errorf("indices: %v", testee.Indices())
	}
	if !cmp.SliceEq(testee.TypesOf(".kibana"), []savedobjects.Type{"config", "legacy-url-alias"}) {
		t.Errorf("types of .kibana: %v", testee.TypesOf(".kibana"))
	}

	wantLatest := map[savedobjects.Type]string{
		"dashboard":        "10.2.0",
		"config":           "8.7.0",
		"task":             "10.3.0",
		"legacy-url-alias": "0.0.0",
	}
	if got := testee.LatestVersions(); !cmp.MapEq(got, wantLatest) {
		t.Errorf("latest versions\n- got: %v\n- want: %v", got, wantLatest)
	}

	wantMappings := map[savedobjects.Type]string{
		"dashboard":        "10.2.0",
		"config":           "8.7.0",
		"task":             "10.1.0",
		"legacy-url-alias": "0.0.0",
	}
	if got := testee.LatestMappingsVersions(); !cmp.MapEq(got, wantMappings) {
		t.Errorf("latest mappings versions\n- got: %v\n- want: %v", got, wantMappings)
	}

	if d, ok := testee.Get("dashboard"); !ok || d.Index != ".kibana_analytics" {
		t.Errorf("Get(dashboard) = (%+v, %v)", d, ok)
	}
	if _, ok := testee.Get("nonexistent-type"); ok {
		t.Errorf("unknown type should not be found")
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	theory := func(content string) func(*testing.T) {
		return func(t *testing.T) {
			_, err := registry.Unmarshal([]byte(content))
			if !errors.Is(err, registry.ErrInvalidRegistry) {
				t.Errorf("want ErrInvalidRegistry, but got %v", err)
			}
		}
	}

	t.Run("empty document", theory(``))
	t.Run("type without name", theory(`types: [{index: .kibana}]`))
	t.Run("duplicated type", theory(`types: [{name: dashboard}, {name: dashboard}]`))
	t.Run("negative model version", theory(`types: [{name: dashboard, modelVersion: -1}]`))
	t.Run("mappings model version ahead", theory(
		`types: [{name: dashboard, modelVersion: 1, mappingsModelVersion: 2}]`,
	))
	t.Run("mappings model version without model version", theory(
		`types: [{name: dashboard, mappingsModelVersion: 0}]`,
	))
	t.Run("broken migration version", theory(`types: [{name: config, migrations: ["8.7"]}]`))
}

func TestNew(t *testing.T) {
	two := 2
	testee := try.To(registry.New(
		"",
		registry.TypeDef{Name: "dashboard", ModelVersion: &two},
		registry.TypeDef{Name: "task", Index: ".kibana_task_manager"},
	)).OrFatal(t)

	if testee.DefaultIndex() != ".kibana" {
		t.Errorf("default index: %s", testee.DefaultIndex())
	}
	if d, _ := testee.Get("dashboard"); d.LatestMappingsVersion() != "10.2.0" {
		t.Errorf("dashboard mappings version: %s", d.LatestMappingsVersion())
	}

	if _, err := registry.New("", registry.TypeDef{Name: "a"}, registry.TypeDef{Name: "a"}); !errors.Is(err, registry.ErrInvalidRegistry) {
		t.Errorf("duplicated type: want ErrInvalidRegistry, got %v", err)
	}
}

func TestLoadAndContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte(example), 0644); err != nil {
		t.Fatal(err)
	}

	testee := try.To(registry.Load(path)).OrFatal(t)
	if len(testee.Types()) != 4 {
		t.Errorf("types: %v", testee.Types())
	}

	ctx, cancel, err := registry.Context(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if err := os.WriteFile(path, []byte(`types: []`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("context is not canceled after registry is modified")
	}
	if cause := context.Cause(ctx); !errors.Is(cause, filewatch.ErrModified) {
		t.Errorf("unexpected cause: %v", cause)
	}

	if _, err := registry.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want ErrNotExist, got %v", err)
	}
}
