package token

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/opst/somigrate/cmd/somigrate/subcommands/common"
	"github.com/opst/somigrate/pkg/auth"
	"github.com/opst/somigrate/pkg/configs/server"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Config         string        `flag:"config" metavar:"FILE" help:"Take the signing key from the server config file."`
	SigningKeyFile string        `flag:"signing-key-file" metavar:"FILE" help:"File containing the signing key."`
	Subject        string        `flag:"subject" alias:"s" help:"Who uses the token. It is recorded as appliedBy."`
	TTL            time.Duration `flag:"ttl" help:"Lifetime of the token. 0 for no expiry."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Issue a token for the migration API.",
		Flags{Subject: "somigrate", TTL: 24 * time.Hour},
		flarc.Args{},
		common.NewTask[Flags](Task),
		flarc.WithDescription(`
Issue a bearer token to apply migrations via the API server.

The signing key is taken from either --config or --signing-key-file.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	flags := cl.Flags()

	key, err := signingKey(flags)
	if err != nil {
		return err
	}
	if flags.Subject == "" {
		return fmt.Errorf("%w: --subject should not be empty", flarc.ErrUsage)
	}
	if flags.TTL < 0 {
		return fmt.Errorf("%w: --ttl should not be negative", flarc.ErrUsage)
	}

	tok, err := auth.NewToken(key, flags.Subject, flags.TTL)
	if err != nil {
		return err
	}
	if flags.TTL == 0 {
		logger.Printf("the token for %s never expires", flags.Subject)
	}
	_, err = fmt.Fprintln(cl.Stdout(), tok)
	return err
}

func signingKey(flags Flags) ([]byte, error) {
	switch {
	case flags.Config != "" && flags.SigningKeyFile != "":
		return nil, fmt.Errorf("%w: --config and --signing-key-file are exclusive", flarc.ErrUsage)
	case flags.Config != "":
		conf, err := server.Load(flags.Config)
		if err != nil {
			return nil, err
		}
		return conf.Auth.SigningKey, nil
	case flags.SigningKeyFile != "":
		b, err := os.ReadFile(flags.SigningKeyFile)
		if err != nil {
			return nil, err
		}
		key := bytes.TrimSpace(b)
		if len(key) == 0 {
			return nil, fmt.Errorf("%s: signing key is empty", flags.SigningKeyFile)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: --config or --signing-key-file is required", flarc.ErrUsage)
	}
}
