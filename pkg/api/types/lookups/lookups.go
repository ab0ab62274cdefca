package lookups

import "github.com/opst/somigrate/pkg/savedobjects"

// LegacyIndex is the index where a type was stored before multiple indices were introduced.
type LegacyIndex struct {
	Type  savedobjects.Type `json:"type"`
	Index string            `json:"index"`
}

// LegacyTypes are types stored in an index before multiple indices were introduced.
type LegacyTypes struct {
	Index string              `json:"index"`
	Types []savedobjects.Type `json:"types"`
}

// HashVersion is a model version translated from a legacy mappings hash.
type HashVersion struct {
	Type    savedobjects.Type `json:"type"`
	Hash    string            `json:"hash"`
	Version string            `json:"version"`
}
