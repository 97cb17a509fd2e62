package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NodePath81/fbiperf/internal/app"
	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/util"
	"github.com/NodePath81/fbiperf/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ingest":
			ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
			configPath := ingestCmd.String("config", "config.yaml", "Path to run config file")
			manifestPath := ingestCmd.String("manifest", "capture.yaml", "Path to capture manifest")
			outPath := ingestCmd.String("out", "", "Write results JSON to this file instead of stdout")
			dbPath := ingestCmd.String("db", "", "Append result rows to this SQLite database")
			textfile := ingestCmd.String("metrics-textfile", "", "Write Prometheus metrics to this file")
			_ = ingestCmd.Parse(os.Args[2:])
			os.Exit(runIngest(*configPath, *manifestPath, app.Options{
				OutPath:         *outPath,
				DBPath:          *dbPath,
				MetricsTextfile: *textfile,
			}))
		case "check":
			checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
			configPath := checkCmd.String("config", "config.yaml", "Path to run config file")
			_ = checkCmd.Parse(os.Args[2:])
			if *configPath == "config.yaml" && checkCmd.NArg() > 0 {
				*configPath = checkCmd.Arg(0)
			}
			checkConfig(*configPath)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		case "version", "-v", "--version":
			fmt.Println(version.Version)
			return
		}
	}
	printHelp()
	os.Exit(2)
}

func runIngest(configPath, manifestPath string, opts app.Options) int {
	boot, err := util.NewLogger("")
	if err != nil {
		boot = util.NopLogger()
	}
	supervisor := app.NewSupervisor(configPath, boot)
	if err := supervisor.Start(); err != nil {
		_ = boot.Sync()
		return 1
	}
	defer supervisor.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := supervisor.Logger()
	acc, err := supervisor.Ingest(ctx, manifestPath, opts)
	switch {
	case errors.Is(err, app.ErrNoResults):
		logger.Errorw("every server failed", "failed", acc.Failed)
		return 1
	case err != nil:
		logger.Errorw("ingest failed", "error", err)
		return 1
	case len(acc.Failed) > 0:
		logger.Warnw("partial failure", "failed", acc.Failed)
		return 3
	}
	return 0
}

func checkConfig(path string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	enabled := 0
	for _, srv := range cfg.Servers {
		if srv.IsEnabled() {
			enabled++
		}
	}
	fmt.Printf("config valid: %s, %d servers (%d enabled), parallel %d\n",
		cfg.Protocol, len(cfg.Servers), enabled, cfg.ParallelCount)
	os.Exit(0)
}

func printHelp() {
	fmt.Print(`fbiperf - iperf result ingestion and statistics

Usage:
  fbiperf ingest --config <path> --manifest <path> [--out <file>] [--db <file>] [--metrics-textfile <file>]
                                  Summarize captured iperf output
  fbiperf check --config <path>   Validate config file
  fbiperf help                    Show this help
  fbiperf version                 Print version

Exit status: 0 success, 1 failure, 3 some servers failed.
`)
}
