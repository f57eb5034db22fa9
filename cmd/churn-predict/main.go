package main

import (
	"context"
	"flag"
	"io"
	"os"

	"churnml/internal/artifact"
	"churnml/internal/cli"
	"churnml/internal/config"
	"churnml/internal/logging"
	"churnml/internal/predict"
)

func main() {
	os.Exit(run())
}

func run() int {
	inPath := flag.String("in", "", "read the JSON record from this file instead of stdin")
	outPath := flag.String("out", "", "write the JSON result to this file instead of stdout")
	cfgPath := flag.String("config", "", "YAML config file (default $CHURN_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return cli.Fail(os.Stderr, err.Error())
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	var in io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return cli.Fail(os.Stderr, err.Error())
		}
		defer f.Close()
		in = f
	}
	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return cli.Fail(os.Stderr, err.Error())
		}
		defer f.Close()
		out = f
	}

	store := artifact.New(artifact.WithDir(cfg.Artifacts.Dir), artifact.WithLogger(logger))
	svc := predict.NewService(predict.FromStore(store), predict.WithLogger(logger))
	return cli.Predict(context.Background(), svc, in, out, os.Stderr)
}
