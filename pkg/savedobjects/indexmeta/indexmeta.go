package indexmeta

import (
	"maps"

	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/hashversion"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
)

// Meta is `_meta` in mappings of saved-objects indices.
type Meta struct {
	// MappingVersions are versions of mappings of each type, written by releases with model versions.
	MappingVersions map[savedobjects.Type]string `json:"mappingVersions,omitempty"`

	// MigrationMappingPropertyHashes are md5 hashes of mappings of each type, written by older releases.
	MigrationMappingPropertyHashes map[savedobjects.Type]string `json:"migrationMappingPropertyHashes,omitempty"`

	// IndexTypesMap is the assignment of types to indices, written since multiple indices are introduced.
	IndexTypesMap savedobjects.IndexTypesMap `json:"indexTypesMap,omitempty"`
}

// Source tells where versions are taken from.
type Source string

const (
	SourceNone            Source = "none"
	SourceMappingVersions Source = "mappingVersions"
	SourceHashes          Source = "migrationMappingPropertyHashes"
)

// Versions returns versions of types recorded in the index.
//
// mappingVersions has priority. If it is absent, legacy hashes are translated into versions.
//
// # Returns
//
// - map[savedobjects.Type]string: versions of types. Never nil.
//
// - Source: where the versions came from.
//
// - []savedobjects.Type: types having a legacy hash which is not recorded in the hash-to-version map.
// They should be handled as types having no record.
func (m *Meta) Versions() (map[savedobjects.Type]string, Source, []savedobjects.Type) {
	if m == nil {
		return map[savedobjects.Type]string{}, SourceNone, nil
	}
	if m.MappingVersions != nil {
		return maps.Clone(m.MappingVersions), SourceMappingVersions, nil
	}
	if m.MigrationMappingPropertyHashes != nil {
		versions, unknown := hashversion.VersionsFromHashes(m.MigrationMappingPropertyHashes)
		return versions, SourceHashes, unknown
	}
	return map[savedobjects.Type]string{}, SourceNone, nil
}

// IndexTypes returns the recorded assignment of types to indices.
//
// Indices written before multiple indices have no record. For them, the legacy layout is returned.
func (m *Meta) IndexTypes() savedobjects.IndexTypesMap {
	if m == nil || m.IndexTypesMap == nil {
		return indextypes.Default()
	}
	return m.IndexTypesMap.Clone()
}
