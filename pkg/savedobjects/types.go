package savedobjects

import (
	"errors"
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Type is the name of a saved-object type, like "dashboard" or "task".
type Type string

func (t Type) String() string {
	return string(t)
}

var ErrDuplicateType = errors.New("savedobjects: type is assigned to multiple indices")

// IndexTypesMap tells which saved-object types are stored in each index.
//
// In JSON/YAML, it is an object whose keys are index names and values are arrays of type names.
// This is the shape of `_meta.indexTypesMap` in saved-objects index mappings.
type IndexTypesMap map[string][]Type

// IndexOf returns the index where the type t is stored.
//
// # Returns
//
// - string: the index name. Empty if not found.
//
// - bool: true if found.
func (m IndexTypesMap) IndexOf(t Type) (string, bool) {
	for _, index := range m.Indices() {
		if slices.Contains(m[index], t) {
			return index, true
		}
	}
	return "", false
}

// TypesIn returns a copy of the types stored in the index.
func (m IndexTypesMap) TypesIn(index string) ([]Type, bool) {
	ts, ok := m[index]
	if !ok {
		return nil, false
	}
	return slices.Clone(ts), true
}

// Indices returns index names in this map, sorted.
func (m IndexTypesMap) Indices() []string {
	indices := make([]string, 0, len(m))
	for index := range m {
		indices = append(indices, index)
	}
	slices.Sort(indices)
	return indices
}

// Types returns all types in this map as a set.
func (m IndexTypesMap) Types() sets.Set[Type] {
	s := sets.New[Type]()
	for _, ts := range m {
		s.Insert(ts...)
	}
	return s
}

// Validate checks that each type appears in at most one index.
//
// # Returns
//
// - error: wraps ErrDuplicateType if a type is found in two indices (or twice in the same index).
func (m IndexTypesMap) Validate() error {
	seen := map[Type]string{}
	for _, index := range m.Indices() {
		for _, t := range m[index] {
			if other, ok := seen[t]; ok {
				return fmt.Errorf("%w: %s (in %s and %s)", ErrDuplicateType, t, other, index)
			}
			seen[t] = index
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m IndexTypesMap) Clone() IndexTypesMap {
	if m == nil {
		return nil
	}
	c := make(IndexTypesMap, len(m))
	for index, ts := range m {
		c[index] = slices.Clone(ts)
	}
	return c
}
