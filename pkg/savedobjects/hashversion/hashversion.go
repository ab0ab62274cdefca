// Package hashversion translates legacy mapping hashes into model versions.
//
// Releases before model versions recorded the state of each type's mappings as
// md5 hashes in `_meta.migrationMappingPropertyHashes`.
// md5 is not allowed in FIPS mode, so newer releases never compute hashes:
// they look recorded hashes up in this table and compare versions instead.
//
// The table is append-only. Entries are kept forever, so that any old installation can be upgraded.
package hashversion

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/opst/somigrate/pkg/savedobjects"
)

const keySeparator = "|"

var ErrMalformedKey = errors.New("hashversion: malformed key")

// key: "{type}|{md5 of mappings}", value: the model version having the mappings.
var hashToVersion = map[string]string{
	"dashboard|b8aa800aa5e0d975c5e8dc57f03d41f8": "10.2.0",
}

type Entry struct {
	Type    savedobjects.Type `json:"type"`
	Hash    string            `json:"hash"`
	Version string            `json:"version"`
}

func (e Entry) Key() string {
	return Key(e.Type, e.Hash)
}

// Key builds a key of the table.
func Key(t savedobjects.Type, hash string) string {
	return string(t) + keySeparator + hash
}

// SplitKey splits a key into its type and hash.
//
// Type names never contain "|", so the last separator is used.
func SplitKey(key string) (savedobjects.Type, string, error) {
	i := strings.LastIndex(key, keySeparator)
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q has no separator", ErrMalformedKey, key)
	}
	t, hash := key[:i], key[i+len(keySeparator):]
	if t == "" || hash == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return savedobjects.Type(t), hash, nil
}

// Lookup returns the version for the pair of type and legacy hash.
//
// When the pair has never been recorded, it returns ("", false).
// It is not an error: callers should treat the type as having no legacy record.
func Lookup(t savedobjects.Type, hash string) (string, bool) {
	v, ok := hashToVersion[Key(t, hash)]
	return v, ok
}

// entries of hashToVersion. A malformed key stops the program at startup.
var entries = func() []Entry {
	es, err := Parse(hashToVersion)
	if err != nil {
		panic(err)
	}
	return es
}()

// Parse splits keys of a hash-to-version table into entries, sorted by key.
//
// # Returns
//
// - error: wraps ErrMalformedKey if some keys are malformed.
func Parse(table map[string]string) ([]Entry, error) {
	es := make([]Entry, 0, len(table))
	var errs []error
	for k, v := range table {
		t, h, err := SplitKey(k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		es = append(es, Entry{Type: t, Hash: h, Version: v})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortFunc(es, func(a, b Entry) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return es, nil
}

// Entries returns all entries, sorted by key.
func Entries() []Entry {
	return slices.Clone(entries)
}

// VersionsFromHashes converts `migrationMappingPropertyHashes` into versions.
//
// # Args
//
// - hashes: type to legacy hash.
//
// # Returns
//
// - map[savedobjects.Type]string: type to version, only for recorded pairs.
//
// - []savedobjects.Type: types whose hash is unknown, sorted.
func VersionsFromHashes(hashes map[savedobjects.Type]string) (map[savedobjects.Type]string, []savedobjects.Type) {
	versions := map[savedobjects.Type]string{}
	unknown := []savedobjects.Type{}
	for t, h := range hashes {
		if v, ok := Lookup(t, h); ok {
			versions[t] = v
		} else {
			unknown = append(unknown, t)
		}
	}
	slices.Sort(unknown)
	return versions, unknown
}
