package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	"github.com/opst/somigrate/pkg/api/types/lookups"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/hashversion"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
	"github.com/youta-t/flarc"
)

// ErrNotFound is returned when the table has no entry for the query.
var ErrNotFound = errors.New("not found")

const (
	ARG_TYPE  = "TYPE"
	ARG_INDEX = "INDEX"
	ARG_HASH  = "HASH"
)

func New() (flarc.Command, error) {
	index, err := flarc.NewCommand(
		"Show the index where the saved-object type was stored before multiple indices.",
		struct{}{},
		flarc.Args{
			{Name: ARG_TYPE, Required: true, Help: "saved-object type"},
		},
		common.NewTask[struct{}](IndexTask),
	)
	if err != nil {
		return nil, err
	}

	types, err := flarc.NewCommand(
		"Show saved-object types stored in the index before multiple indices.",
		struct{}{},
		flarc.Args{
			{Name: ARG_INDEX, Required: true, Help: "index name, like .kibana"},
		},
		common.NewTask[struct{}](TypesTask),
	)
	if err != nil {
		return nil, err
	}

	version, err := flarc.NewCommand(
		"Translate a legacy mappings hash of the type into a model version.",
		struct{}{},
		flarc.Args{
			{Name: ARG_TYPE, Required: true, Help: "saved-object type"},
			{Name: ARG_HASH, Required: true, Help: "md5 hash found in `_meta.migrationMappingPropertyHashes`"},
		},
		common.NewTask[struct{}](VersionTask),
		flarc.WithDescription(`
Indices written by old releases record md5 hashes of mappings per type,
instead of model versions. This command answers the model version for the hash.

Unknown hashes are not errors for migration (such types are handled as new),
but this command exits with error to tell that.
`),
	)
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Look up the static migration tables.",
		struct{}{},
		flarc.WithSubcommand("index", index),
		flarc.WithSubcommand("types", types),
		flarc.WithSubcommand("version", version),
	)
}

func dump(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func IndexTask(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	t := savedobjects.Type(cl.Args()[ARG_TYPE][0])
	index, ok := indextypes.LegacyIndexOf(t)
	if !ok {
		logger.Printf("type %s was introduced after %s", t, indextypes.MultipleIndicesVersion)
		return fmt.Errorf("%w: type %s", ErrNotFound, t)
	}
	return dump(cl.Stdout(), lookups.LegacyIndex{Type: t, Index: index})
}

func TypesTask(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	index := cl.Args()[ARG_INDEX][0]
	types, ok := indextypes.TypesIn(index)
	if !ok {
		logger.Printf("legacy indices are: %v", indextypes.Default().Indices())
		return fmt.Errorf("%w: index %s", ErrNotFound, index)
	}
	return dump(cl.Stdout(), lookups.LegacyTypes{Index: index, Types: types})
}

func VersionTask(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	t := savedobjects.Type(cl.Args()[ARG_TYPE][0])
	hash := cl.Args()[ARG_HASH][0]
	version, ok := hashversion.Lookup(t, hash)
	if !ok {
		return fmt.Errorf("%w: hash %s of type %s", ErrNotFound, hash, t)
	}
	return dump(cl.Stdout(), lookups.HashVersion{Type: t, Hash: hash, Version: version})
}
