//go:generate go run github.com/Songmu/gocredits/cmd/gocredits@v0.3.0 -w
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opst/somigrate/pkg/buildtime"
	"github.com/opst/somigrate/pkg/configs/server"
	"github.com/opst/somigrate/pkg/conn/es"
	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
)

//go:embed CREDITS
var CREDITS string

func main() {
	configPath := flag.String("config", "", "server config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	plic := flag.Bool("license", false, "show licenses of dependencies")
	pver := flag.Bool("version", false, "show version")
	flag.Parse()

	if *plic {
		log.Println(CREDITS)
		return
	}
	if *pver {
		log.Println(buildtime.VersionString())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.Default()
	logger.SetPrefix("[somigrated] ")
	for {
		restart, err := serve(ctx, logger, *configPath, *loglevel)
		if err != nil {
			logger.Fatalf("server stopped: %s", err)
		}
		if !restart {
			return
		}
		logger.Println("registry is updated. restarting server.")
	}
}

// serve runs the server until ctx is done or the registry file is modified.
//
// # Returns
//
// - bool: true if the server should be restarted.
//
// - error: errors on startup, or the server stopped unexpectedly.
func serve(ctx context.Context, logger *log.Logger, configPath string, loglevel string) (bool, error) {
	conf, err := server.Load(configPath)
	if err != nil {
		return false, err
	}
	reg, err := registry.Load(conf.Registry)
	if err != nil {
		return false, err
	}
	wctx, wcancel, err := registry.Context(ctx, conf.Registry)
	if err != nil {
		return false, err
	}
	defer wcancel()

	conn, err := es.New(conf.Elasticsearch.Conn())
	if err != nil {
		return false, err
	}
	coord := migration.NewCoordinator(conn, reg, logger)
	monitor := migration.NewMonitor(coord, conf.Drift.Interval, conf.Drift.Timeout, logger)

	e := newServer(loglevel, reg, coord, monitor, conf.Auth.SigningKey)
	logger.Println("registered routes:")
	for _, r := range e.Routes() {
		logger.Println(r.Method, r.Path)
	}
	logger.Printf("types: %d, indices: %v", len(reg.Types()), reg.Indices())

	if conf.Drift.Enabled() {
		logger.Printf("drift check: every %s", conf.Drift.Interval)
		go monitor.Run(wctx)
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- e.Start(":" + conf.Port)
	}()

	select {
	case err := <-stopped:
		return false, err
	case <-wctx.Done():
	}

	graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(graceful); err != nil {
		logger.Printf("error on shutdown: %s", err)
	}
	if err := <-stopped; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return false, err
	}

	return ctx.Err() == nil, nil
}
