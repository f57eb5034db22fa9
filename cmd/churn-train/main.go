package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"churnml/internal/artifact"
	"churnml/internal/cli"
	"churnml/internal/config"
	"churnml/internal/logging"
	"churnml/internal/train"
)

func main() {
	os.Exit(run())
}

func run() int {
	csvPath := flag.String("csv", "", "path to the churn CSV (default $CHURN_CSV_PATH, then data/telecom_churn.csv)")
	target := flag.String("target", "", "target column name (default Churn)")
	cfgPath := flag.String("config", "", "YAML config file (default $CHURN_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	if *target != "" {
		cfg.Training.Target = *target
	}
	path := *csvPath
	if path == "" {
		path = cfg.Training.CSVPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := artifact.New(artifact.WithDir(cfg.Artifacts.Dir), artifact.WithLogger(logger))
	driver := train.NewDriver(store, train.Options{
		Target:   cfg.Training.Target,
		Seed:     cfg.Training.Seed,
		Trees:    cfg.Training.Trees,
		TestSize: cfg.Training.TestSize,
		Logger:   logger,
	})
	return cli.Train(ctx, driver, train.ResolveCSVPath(path), os.Stderr)
}
