package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/geo"
	"github.com/NodePath81/fbiperf/internal/metrics"
	"github.com/NodePath81/fbiperf/internal/report"
	"github.com/NodePath81/fbiperf/internal/result"
	"github.com/NodePath81/fbiperf/internal/store"
	"github.com/NodePath81/fbiperf/internal/util"
)

var ErrNoResults = errors.New("no server produced output")

const captureReaders = 4

// Options selects the run's outputs. Empty fields disable that output;
// an empty OutPath writes the document to Stdout.
type Options struct {
	OutPath         string
	DBPath          string
	MetricsTextfile string
	Stdout          io.Writer
}

// Document is the JSON written at the end of a run.
type Document struct {
	RunID     string           `json:"run_id"`
	Succeeded []string         `json:"succeeded"`
	Failed    []string         `json:"failed"`
	Results   []map[string]any `json:"results"`
	Charts    []report.Charts  `json:"charts"`
}

type Runtime struct {
	cfg       config.Config
	logger    util.Logger
	metrics   *metrics.Metrics
	geo       *geo.Resolver
	processor *result.Processor
}

func NewRuntime(cfg config.Config, logger util.Logger) (*Runtime, error) {
	resolver, err := geo.Open(cfg.GeoIP.Database)
	if err != nil {
		return nil, err
	}
	m := metrics.NewMetrics()
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		geo:       resolver,
		processor: result.NewProcessor(cfg, logger, m, resolver),
	}, nil
}

// Ingest processes every capture of the manifest in order. A failed server
// is logged and the run moves on; the error returned covers the outputs and
// the case where every server failed.
func (r *Runtime) Ingest(ctx context.Context, manifest config.Manifest, opts Options) (*result.RunAccumulator, error) {
	acc := result.NewRunAccumulator(r.cfg.Meta.RunID)
	r.logger.Infow("run started", "run_id", acc.RunID, "captures", len(manifest.Captures))

	captures, err := r.loadCaptures(ctx, manifest.Captures)
	if err != nil {
		return acc, err
	}
	for i, capture := range captures {
		if err := r.processor.Process(acc, capture); err != nil {
			if errors.Is(err, result.ErrServerDisabled) {
				continue
			}
			r.logger.Warnw("server skipped", "server", manifest.Captures[i].Server, "error", err)
		}
	}

	if err := r.writeDocument(acc, opts); err != nil {
		return acc, fmt.Errorf("write results: %w", err)
	}
	if opts.DBPath != "" {
		if err := r.save(ctx, acc, opts.DBPath); err != nil {
			return acc, fmt.Errorf("save results: %w", err)
		}
	}
	if opts.MetricsTextfile != "" {
		if err := r.metrics.WriteTextfile(opts.MetricsTextfile); err != nil {
			return acc, fmt.Errorf("write metrics: %w", err)
		}
	}

	r.logger.Infow("run finished",
		"run_id", acc.RunID,
		"results", len(acc.Results),
		"succeeded", len(acc.Succeeded),
		"failed", len(acc.Failed))
	if len(acc.Succeeded) == 0 {
		return acc, ErrNoResults
	}
	return acc, nil
}

// loadCaptures reads every capture's output files. Reads run concurrently;
// the returned slice keeps manifest order so servers are processed one after
// another in that order.
func (r *Runtime) loadCaptures(ctx context.Context, entries []config.CaptureEntry) ([]result.Capture, error) {
	captures := make([]result.Capture, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(captureReaders)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			captures[i] = r.loadCapture(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return captures, nil
}

func (r *Runtime) loadCapture(entry config.CaptureEntry) result.Capture {
	capture := result.Capture{
		Server:  entry.Server,
		Started: entry.Started,
		Stopped: entry.Stopped,
		Command: entry.Command,
	}
	for _, path := range entry.Outputs {
		if capture.OutputPath == "" {
			capture.OutputPath = path
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warnw("output unreadable", "server", entry.Server, "path", path, "error", err)
			continue
		}
		capture.Outputs = append(capture.Outputs, raw)
	}
	return capture
}

func (r *Runtime) writeDocument(acc *result.RunAccumulator, opts Options) error {
	doc := Document{
		RunID:     acc.RunID,
		Succeeded: nonNil(acc.Succeeded),
		Failed:    nonNil(acc.Failed),
		Results:   acc.Maps(),
		Charts:    make([]report.Charts, 0, len(acc.Results)),
	}
	for _, res := range acc.Results {
		doc.Charts = append(doc.Charts, report.BuildCharts(res, r.cfg.Interval.Seconds()))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if opts.OutPath == "" {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		_, err = out.Write(data)
		return err
	}
	return os.WriteFile(opts.OutPath, data, 0o644)
}

func (r *Runtime) save(ctx context.Context, acc *result.RunAccumulator, path string) error {
	db, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	rows := report.Rows(r.cfg, acc.Results)
	if err := db.Save(ctx, acc.RunID, rows); err != nil {
		return err
	}
	r.logger.Infow("results saved", "path", path, "rows", len(rows))
	return nil
}

func (r *Runtime) Stop() {
	if err := r.geo.Close(); err != nil {
		r.logger.Warnw("geoip close failed", "error", err)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
