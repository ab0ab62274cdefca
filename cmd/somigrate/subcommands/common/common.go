package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/opst/somigrate/pkg/conn/es"
	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
	"github.com/youta-t/flarc"
)

const (
	ENV_ES_URL      = "ES_URL"
	ENV_ES_USER     = "ES_USER"
	ENV_ES_PASSWORD = "ES_PASSWORD"
	ENV_REGISTRY    = "SOMIGRATE_REGISTRY"
)

type CommonFlags struct {
	ESURL      string `flag:"es-url" help:"URLs of Elasticsearch, separated with comma. (env: ES_URL)"`
	ESUser     string `flag:"es-user" help:"username for Elasticsearch. (env: ES_USER)"`
	ESPassword string `flag:"es-password" help:"password for Elasticsearch. (env: ES_PASSWORD)"`
	Registry   string `flag:"registry" help:"path to the type registry file. (env: SOMIGRATE_REGISTRY)"`
}

// DefaultCommonFlags takes default values from environment variables.
func DefaultCommonFlags() CommonFlags {
	return CommonFlags{
		ESURL:      os.Getenv(ENV_ES_URL),
		ESUser:     os.Getenv(ENV_ES_USER),
		ESPassword: os.Getenv(ENV_ES_PASSWORD),
		Registry:   os.Getenv(ENV_REGISTRY),
	}
}

// LoadRegistry loads the type registry.
//
// It returns an error wrapping flarc.ErrUsage when no registry is given.
func (cf CommonFlags) LoadRegistry() (*registry.Registry, error) {
	if cf.Registry == "" {
		return nil, fmt.Errorf(
			"%w: flag `--registry` (or, envvar %s) is required", flarc.ErrUsage, ENV_REGISTRY,
		)
	}
	return registry.Load(cf.Registry)
}

// Connect creates a connection to Elasticsearch.
//
// It returns an error wrapping flarc.ErrUsage when no URL is given.
func (cf CommonFlags) Connect() (*es.Conn, error) {
	addrs := []string{}
	for _, a := range strings.Split(cf.ESURL, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf(
			"%w: flag `--es-url` (or, envvar %s) is required", flarc.ErrUsage, ENV_ES_URL,
		)
	}
	return es.New(es.Config{
		Addresses: addrs,
		Username:  cf.ESUser,
		Password:  cf.ESPassword,
	})
}

// Coordinator plans and applies migrations of indices.
type Coordinator interface {
	Plan(ctx context.Context, index string) (migration.Plan, error)
	PlanAll(ctx context.Context) ([]migration.Plan, error)
	Apply(ctx context.Context, index string) (migration.Plan, error)
}

var _ Coordinator = &migration.Coordinator{}

// NewCoordinator connects Elasticsearch with the registry.
func NewCoordinator(cf CommonFlags, logger *log.Logger) (Coordinator, error) {
	reg, err := cf.LoadRegistry()
	if err != nil {
		return nil, err
	}
	conn, err := cf.Connect()
	if err != nil {
		return nil, err
	}
	return migration.NewCoordinator(conn, reg, logger), nil
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return task(ctx, logger, commonFlag, cl, newpos)
	}
}
