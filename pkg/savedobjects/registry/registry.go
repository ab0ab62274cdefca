package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
	"github.com/opst/somigrate/pkg/savedobjects/modelversion"
	"github.com/opst/somigrate/pkg/utils/filewatch"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRegistry = errors.New("registry: invalid")

// TypeDef is a saved-object type registered in the app.
type TypeDef struct {
	Name savedobjects.Type

	// Index where documents of the type are stored.
	Index string

	// ModelVersion is the latest model version. nil if the type has no model versions.
	ModelVersion *int

	// MappingsModelVersion is the latest model version changing mappings.
	//
	// If not set in the registry file, it is same as ModelVersion.
	MappingsModelVersion *int

	// Migrations are versions of legacy migration functions.
	Migrations []string
}

// LatestVersion returns the virtual version of the latest migration of the type.
func (d TypeDef) LatestVersion() string {
	if d.ModelVersion != nil {
		return modelversion.FromModelVersion(*d.ModelVersion)
	}
	return modelversion.Latest(d.Migrations...)
}

// LatestMappingsVersion returns the virtual version of the latest mappings of the type.
func (d TypeDef) LatestMappingsVersion() string {
	if d.MappingsModelVersion != nil {
		return modelversion.FromModelVersion(*d.MappingsModelVersion)
	}
	return d.LatestVersion()
}

type typeDefMarshall struct {
	Name                 string   `yaml:"name"`
	Index                string   `yaml:"index,omitempty"`
	ModelVersion         *int     `yaml:"modelVersion,omitempty"`
	MappingsModelVersion *int     `yaml:"mappingsModelVersion,omitempty"`
	Migrations           []string `yaml:"migrations,omitempty"`
}

type registryMarshall struct {
	DefaultIndex string             `yaml:"defaultIndex,omitempty"`
	Types        []*typeDefMarshall `yaml:"types"`
}

// Registry is a set of saved-object types registered in the app.
//
// Registry is immutable after it is loaded.
type Registry struct {
	defaultIndex string
	types        map[savedobjects.Type]TypeDef
}

func (r *Registry) UnmarshalYAML(node *yaml.Node) error {
	raw := registryMarshall{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	defaultIndex := raw.DefaultIndex
	if defaultIndex == "" {
		defaultIndex = indextypes.MainIndex
	}

	types := map[savedobjects.Type]TypeDef{}
	for nth, t := range raw.Types {
		if t == nil || t.Name == "" {
			return fmt.Errorf("%w: types[%d] has no name", ErrInvalidRegistry, nth)
		}
		name := savedobjects.Type(t.Name)
		if _, ok := types[name]; ok {
			return fmt.Errorf("%w: type %s is registered twice", ErrInvalidRegistry, name)
		}
		if t.ModelVersion != nil && *t.ModelVersion < 0 {
			return fmt.Errorf("%w: type %s: negative modelVersion", ErrInvalidRegistry, name)
		}
		if t.MappingsModelVersion != nil {
			if *t.MappingsModelVersion < 0 {
				return fmt.Errorf("%w: type %s: negative mappingsModelVersion", ErrInvalidRegistry, name)
			}
			if t.ModelVersion == nil || *t.ModelVersion < *t.MappingsModelVersion {
				return fmt.Errorf(
					"%w: type %s: mappingsModelVersion is ahead of modelVersion", ErrInvalidRegistry, name,
				)
			}
		}
		for _, m := range t.Migrations {
			if !modelversion.Valid(m) {
				return fmt.Errorf("%w: type %s: migration version %q is not valid", ErrInvalidRegistry, name, m)
			}
		}

		index := t.Index
		if index == "" {
			index = defaultIndex
		}
		def := TypeDef{
			Name:         name,
			Index:        index,
			ModelVersion: t.ModelVersion,
			Migrations:   slices.Clone(t.Migrations),
		}
		def.MappingsModelVersion = t.MappingsModelVersion
		if def.MappingsModelVersion == nil {
			def.MappingsModelVersion = t.ModelVersion
		}
		types[name] = def
	}

	r.defaultIndex = defaultIndex
	r.types = types
	return nil
}

// New creates a registry from type definitions.
//
// Index of a type without index is defaultIndex.
func New(defaultIndex string, defs ...TypeDef) (*Registry, error) {
	if defaultIndex == "" {
		defaultIndex = indextypes.MainIndex
	}
	r := &Registry{defaultIndex: defaultIndex, types: map[savedobjects.Type]TypeDef{}}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: type without name", ErrInvalidRegistry)
		}
		if _, ok := r.types[d.Name]; ok {
			return nil, fmt.Errorf("%w: type %s is registered twice", ErrInvalidRegistry, d.Name)
		}
		if d.Index == "" {
			d.Index = defaultIndex
		}
		if d.MappingsModelVersion == nil {
			d.MappingsModelVersion = d.ModelVersion
		}
		d.Migrations = slices.Clone(d.Migrations)
		r.types[d.Name] = d
	}
	return r, nil
}

// Unmarshal parses registry from YAML.
func Unmarshal(content []byte) (*Registry, error) {
	r := new(Registry)
	if err := yaml.Unmarshal(content, r); err != nil {
		return nil, err
	}
	if r.types == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidRegistry)
	}
	return r, nil
}

// Load reads registry from a YAML file.
func Load(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Context returns a context which is canceled when the registry file is modified.
//
// Registries are immutable. When the file is changed, the process should be restarted.
func Context(ctx context.Context, path string) (context.Context, func(), error) {
	return filewatch.UntilModifyContext(ctx, path)
}

// DefaultIndex is the index for types without explicit index.
func (r *Registry) DefaultIndex() string {
	return r.defaultIndex
}

// Types returns registered type names, sorted.
func (r *Registry) Types() []savedobjects.Type {
	ts := make([]savedobjects.Type, 0, len(r.types))
	for t := range r.types {
		ts = append(ts, t)
	}
	slices.Sort(ts)
	return ts
}

// Get returns the definition of the type.
func (r *Registry) Get(t savedobjects.Type) (TypeDef, bool) {
	d, ok := r.types[t]
	return d, ok
}

// IndexTypesMap returns the current assignment of types to indices.
func (r *Registry) IndexTypesMap() savedobjects.IndexTypesMap {
	m := savedobjects.IndexTypesMap{}
	for _, t := range r.Types() {
		index := r.types[t].Index
		m[index] = append(m[index], t)
	}
	return m
}

// Indices returns indices having at least one type, sorted.
func (r *Registry) Indices() []string {
	return r.IndexTypesMap().Indices()
}

// TypesOf returns types stored in the index, sorted.
func (r *Registry) TypesOf(index string) []savedobjects.Type {
	ts, _ := r.IndexTypesMap().TypesIn(index)
	return ts
}

// LatestVersions returns the virtual version of the latest migration of each type.
func (r *Registry) LatestVersions() map[savedobjects.Type]string {
	m := make(map[savedobjects.Type]string, len(r.types))
	for t, d := range r.types {
		m[t] = d.LatestVersion()
	}
	return m
}

// LatestMappingsVersions returns the virtual version of the latest mappings of each type.
func (r *Registry) LatestMappingsVersions() map[savedobjects.Type]string {
	m := make(map[savedobjects.Type]string, len(r.types))
	for t, d := range r.types {
		m[t] = d.LatestMappingsVersion()
	}
	return m
}
