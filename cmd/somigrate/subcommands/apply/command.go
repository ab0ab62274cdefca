package apply

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/youta-t/flarc"
)

type Flags struct {
	DryRun bool `flag:"dry-run" alias:"n" help:"Show plans, but do not change indices."`
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
		"Bring indices up to the type registry.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_INDEX, Required: true, Repeatable: true,
				Help: "Index to be migrated.",
			},
		},
		common.NewTask(Task(option.coordinator)),
		flarc.WithDescription(`
Plan each INDEX and apply the plan.

Missing indices are created, and outdated _meta is replaced.
Indices which need reindexing, or migrated by a newer release, are not changed.

Applied plans are printed as JSON. Indices are processed in the given order,
and the command continues with the rest even if some of them fail.
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
		coord, err := coordinator(cf, logger)
		if err != nil {
			return err
		}

		op := coord.Apply
		if cl.Flags().DryRun {
			op = coord.Plan
		}

		details := []apiplans.Detail{}
		var errs []error
		for _, index := range cl.Args()[ARG_INDEX] {
			plan, err := op(ctx, index)
			if err != nil {
				logger.Printf("%s: %s", index, err)
				errs = append(errs, err)
				if plan.Index == "" {
					// failed before planning.
					continue
				}
			}
			details = append(details, apiplans.Compose(plan))
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		if err := enc.Encode(details); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
}
