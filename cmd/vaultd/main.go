package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vault-network/vault/internal/config"
	restservice "github.com/vault-network/vault/internal/interface/rest"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	app.Name = "vaultd"
	app.Usage = "Peg-in deposit daemon and offline transaction tools"
	app.Commands = append(
		app.Commands,
		estimateCmd,
		parseCmd,
		planCmd,
	)
	app.Action = runDaemon

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	appSvc, err := cfg.AppService()
	if err != nil {
		log.Fatal(err)
	}

	svcConfig := restservice.Config{
		Port:          cfg.Port,
		EnableMetrics: cfg.EnableMetrics,
		CorsOrigins:   cfg.CorsOrigins,
	}
	svc, err := restservice.NewService(svcConfig, appSvc)
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(func() {
		svc.Stop()
		cfg.SchedulerService().Stop()
	})

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
