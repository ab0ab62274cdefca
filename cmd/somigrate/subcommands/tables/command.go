package tables

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/hashversion"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
	"github.com/opst/somigrate/pkg/savedobjects/modelversion"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

var ErrBrokenTable = errors.New("broken table")

type Flags struct {
	Dump bool `flag:"dump" help:"Print the tables as YAML after checking."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Check the built-in lookup tables.",
		Flags{},
		flarc.Args{},
		common.NewTask[Flags](Task),
		flarc.WithDescription(`
Check consistency of the legacy index layout and the table of legacy mapping hashes.

- Each type should be in at most one index.
- Each hash should be a md5 hex digest, and each version should be a model version.
- Types having hashes should be in the legacy index layout.
`),
	)
}

// Dump is the YAML form of the built-in tables.
type Dump struct {
	IndexTypesMap savedobjects.IndexTypesMap `yaml:"indexTypesMap"`
	HashToVersion []hashversion.Entry        `yaml:"hashToVersion"`
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	dump := Dump{
		IndexTypesMap: indextypes.Default(),
		HashToVersion: hashversion.Entries(),
	}
	if err := Check(dump.IndexTypesMap, dump.HashToVersion); err != nil {
		return err
	}
	logger.Printf(
		"ok: %d indices, %d hashes",
		len(dump.IndexTypesMap), len(dump.HashToVersion),
	)

	if !cl.Flags().Dump {
		return nil
	}
	enc := yaml.NewEncoder(cl.Stdout())
	defer enc.Close()
	enc.SetIndent(2)
	return enc.Encode(dump)
}

// Check validates tables. Errors of all entries are joined.
func Check(layout savedobjects.IndexTypesMap, entries []hashversion.Entry) error {
	var errs []error
	if err := layout.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBrokenTable, err))
	}

	types := layout.Types()
	for _, e := range entries {
		if b, err := hex.DecodeString(e.Hash); err != nil || len(b) != 16 {
			errs = append(errs, fmt.Errorf("%w: %s: not a md5 digest", ErrBrokenTable, e.Key()))
		}
		if _, err := modelversion.ToModelVersion(e.Version); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrBrokenTable, e.Key(), err))
		}
		if !types.Has(e.Type) {
			errs = append(errs, fmt.Errorf("%w: %s: unknown type in the legacy layout", ErrBrokenTable, e.Key()))
		}
	}
	return errors.Join(errs...)
}
