package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hii-network/go-hns/cmd/flags"
	"github.com/hii-network/go-hns/httpserver"
	"github.com/hii-network/go-hns/ownership"
	"github.com/hii-network/go-hns/registration"
)

var serverFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	flags.IndexerURLFlag,
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "hns-server",
		Usage: "Serve the name service domain API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			stack, err := flags.SetupStack(ctx, cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up chain stack", "err", err)
				return err
			}

			registrar := registration.New(registration.Config{
				Directory: stack.Directory,
				Contracts: stack.Resolver,
				Backend:   stack.Client,
				Log:       logger,
			})

			var indexer *ownership.IndexerClient
			if url := cCtx.String(flags.IndexerURLFlag.Name); url != "" {
				indexer = ownership.NewIndexerClient(url, logger)
			} else {
				logger.Warn("No indexer configured, ownership queries rely on chain scans only")
			}
			engine := ownership.NewEngine(ownership.EngineConfig{
				Indexer:   indexer,
				Scanner:   ownership.NewScanner(stack.Caller, stack.Resolver, stack.Directory, logger),
				Caller:    stack.Caller,
				Resolver:  stack.Resolver,
				Directory: stack.Directory,
				Log:       logger,
			})

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               cCtx.String("listen-addr"),
				MetricsAddr:              cCtx.String("metrics-addr"),
				Log:                      logger,
				EnablePprof:              cCtx.Bool("pprof"),
				DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			handler := httpserver.NewHandler(engine, registrar, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
