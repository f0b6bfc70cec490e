package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"mongo-opcheck/internal"
	"mongo-opcheck/internal/check"
	"mongo-opcheck/internal/config"
)

// newProber builds the connection the check runs against. Tests replace it.
var newProber = func(cfg *config.Config, logger *log.Logger) (check.Prober, string) {
	database := &internal.DatabaseConnection{
		Host:       cfg.Host,
		Port:       cfg.Port,
		Username:   cfg.Username,
		Password:   cfg.Password,
		AuthSource: cfg.AuthSource,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	}
	return database, database.URI()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(stderr)

	cfg, err := config.Load(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error(err)
		}
		fmt.Fprintln(stdout, check.Prefix+check.Unknown.String()+": "+err.Error())
		return check.Unknown.ExitCode()
	}

	logger, err := internal.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(stdout, check.Prefix+check.Unknown.String()+": "+err.Error())
		return check.Unknown.ExitCode()
	}
	log.SetLevel(logger.GetLevel())
	log.SetOutput(logger.Out)

	prober, target := newProber(cfg, logger)

	checker := check.Checker{
		Prober:  prober,
		Limits:  check.Limits{Warning: cfg.Warning, Critical: cfg.Critical},
		Timeout: cfg.Timeout,
		Target:  target,
		Logger:  logger,
	}

	status := checker.Run(context.Background(), stdout)
	logger.Debugf("exiting with %d (%s)", status.ExitCode(), status)
	return status.ExitCode()
}
