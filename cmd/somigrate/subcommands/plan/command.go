package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects/indexmeta"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Meta string `flag:"meta" metavar:"FILE" help:"Plan offline with _meta in the JSON file instead of Elasticsearch. Use - for stdin."`
}

type Option struct {
	coordinator func(common.CommonFlags, *log.Logger) (common.Coordinator, error)
}

func WithCoordinator(
	coordinator func(common.CommonFlags, *log.Logger) (common.Coordinator, error),
) func(*Option) *Option {
	return func(o *Option) *Option {
		o.coordinator = coordinator
		return o
	}
}

const ARG_INDEX = "INDEX"

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{coordinator: common.NewCoordinator}
	for _, opt := range options {
		option = opt(option)
	}

	return flarc.NewCommand(
		"Show migration plans of indices.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_INDEX, Required: false, Repeatable: true,
				Help: "Index to be planned. If nothing is given, all indices in the registry are planned.",
			},
		},
		common.NewTask(Task(option.coordinator)),
		flarc.WithDescription(`
Read _meta of indices from Elasticsearch, and compare them with the type registry.

Plans are printed even when some indices have been migrated by a newer release,
but the command exits with error.

With --meta, _meta is read from the file and exactly one INDEX is required.
Elasticsearch is not accessed.
`),
	)
}

func Task(
	coordinator func(common.CommonFlags, *log.Logger) (common.Coordinator, error),
) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		indices := cl.Args()[ARG_INDEX]

		var plans []migration.Plan
		var err error
		if file := cl.Flags().Meta; file != "" {
			if len(indices) != 1 {
				return fmt.Errorf("%w: --meta requires exactly one INDEX", flarc.ErrUsage)
			}
			plans, err = planOffline(cf, cl.Stdin(), file, indices[0])
		} else {
			plans, err = planLive(ctx, cf, logger, coordinator, indices)
		}
		if plans == nil {
			return err
		}

		details := make([]apiplans.Detail, 0, len(plans))
		for _, p := range plans {
			details = append(details, apiplans.Compose(p))
		}
		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		if eerr := enc.Encode(details); eerr != nil {
			return errors.Join(err, eerr)
		}
		return err
	}
}

func planOffline(cf common.CommonFlags, stdin io.Reader, file string, index string) ([]migration.Plan, error) {
	reg, err := cf.LoadRegistry()
	if err != nil {
		return nil, err
	}

	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	meta := new(indexmeta.Meta)
	if err := json.NewDecoder(r).Decode(meta); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	plan, err := migration.NewPlanner(reg).Plan(index, true, meta, nil)
	if err != nil && !errors.Is(err, migration.ErrIndexNewer) {
		return nil, err
	}
	return []migration.Plan{plan}, err
}

func planLive(
	ctx context.Context,
	cf common.CommonFlags,
	logger *log.Logger,
	coordinator func(common.CommonFlags, *log.Logger) (common.Coordinator, error),
	indices []string,
) ([]migration.Plan, error) {
	coord, err := coordinator(cf, logger)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return coord.PlanAll(ctx)
	}

	plans := []migration.Plan{}
	var errs []error
	for _, index := range indices {
		plan, err := coord.Plan(ctx, index)
		if err != nil {
			errs = append(errs, err)
			if !errors.Is(err, migration.ErrIndexNewer) {
				logger.Printf("%s: %s", index, err)
				continue
			}
		}
		plans = append(plans, plan)
	}
	return plans, errors.Join(errs...)
}
