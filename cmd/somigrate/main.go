//go:generate go run github.com/Songmu/gocredits/cmd/gocredits@v0.3.0 -w
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path"

	subapply "github.com/opst/somigrate/cmd/somigrate/subcommands/apply"
	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	sublic "github.com/opst/somigrate/cmd/somigrate/subcommands/license"
	"github.com/opst/somigrate/cmd/somigrate/subcommands/logger"
	sublookup "github.com/opst/somigrate/cmd/somigrate/subcommands/lookup"
	subplan "github.com/opst/somigrate/cmd/somigrate/subcommands/plan"
	subtables "github.com/opst/somigrate/cmd/somigrate/subcommands/tables"
	subtoken "github.com/opst/somigrate/cmd/somigrate/subcommands/token"
	subver "github.com/opst/somigrate/cmd/somigrate/subcommands/version"
	"github.com/opst/somigrate/pkg/utils/try"
	"github.com/youta-t/flarc"
)

//go:embed CREDITS
var CREDITS string

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	lookup := try.To(sublookup.New()).OrFatal(logger)
	plan := try.To(subplan.New()).OrFatal(logger)
	apply := try.To(subapply.New()).OrFatal(logger)
	tables := try.To(subtables.New()).OrFatal(logger)
	token := try.To(subtoken.New()).OrFatal(logger)
	license := try.To(sublic.New(CREDITS)).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	somigrate := try.To(
		flarc.NewCommandGroup(
			"Kibana saved-object index migration tool",
			common.DefaultCommonFlags(),
			flarc.WithSubcommand("lookup", lookup),
			flarc.WithSubcommand("plan", plan),
			flarc.WithSubcommand("apply", apply),
			flarc.WithSubcommand("tables", tables),
			flarc.WithSubcommand("token", token),
			flarc.WithSubcommand("license", license),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, somigrate, flarc.WithHelp(true)))
}
