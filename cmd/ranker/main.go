// ranker runs one offline retrieval experiment: it indexes a document file,
// ranks every query of a query file against it and writes one result line
// per hit. All inputs are named in a key=value parameter file:
//
//	ranker [flags] params.txt
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/knowledge-engine/ranker/internal/config"
	"github.com/knowledge-engine/ranker/internal/engine"
	"github.com/knowledge-engine/ranker/internal/metrics"
	"github.com/knowledge-engine/ranker/internal/storage"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	var (
		logLevel      string
		metricsFile   string
		reportFile    string
		includeScores bool
	)

	flagSet := pflag.NewFlagSet("ranker", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&logLevel, "log-level", "", "log level (overrides logLevel)")
	flagSet.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file (overrides metricsFile)")
	flagSet.StringVar(&reportFile, "report-file", "", "write a JSON run report to this file (overrides reportFile)")
	flagSet.BoolVar(&includeScores, "include-scores", false, "append the score to every hit line (overrides includeScores)")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "usage: ranker [flags] <parameter file>\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		// ContinueOnError leaves reporting to the caller.
		fmt.Fprintln(stderr, err)
		flagSet.Usage()
		return exitUsage
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return exitUsage
	}

	// Setup Logging
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logger.WithField("service", "ranker")

	// 1. Config
	cfg, err := config.Load(flagSet.Arg(0))
	if err != nil {
		entry.WithError(err).Error("Failed to load parameters")
		return exitUsage
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flagSet.Changed("metrics-file") {
		cfg.Output.MetricsFile = metricsFile
	}
	if flagSet.Changed("report-file") {
		cfg.Output.ReportFile = reportFile
	}
	if flagSet.Changed("include-scores") {
		cfg.Output.IncludeScores = includeScores
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		entry.WithError(err).Error("Invalid log level")
		return exitUsage
	}
	logger.SetLevel(level)

	// 2. Storage
	store, err := storage.NewFileStorage("")
	if err != nil {
		entry.WithError(err).Error("Failed to initialize storage")
		return exitError
	}

	// 3. Run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := engine.Run(ctx, cfg, entry, store, metrics.NewMetrics()); err != nil {
		entry.WithError(err).Error("Run failed")
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			return exitUsage
		}
		return exitError
	}
	return exitOK
}
