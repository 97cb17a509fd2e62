package result

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/geo"
	"github.com/NodePath81/fbiperf/internal/iperf"
	"github.com/NodePath81/fbiperf/internal/metrics"
	"github.com/NodePath81/fbiperf/internal/stats"
)

var ErrServerDisabled = errors.New("server disabled")

// Capture is the raw output of one server's run. Outputs holds one entry per
// concurrently run test process.
type Capture struct {
	Server     string
	Outputs    [][]byte
	OutputPath string
	Started    time.Time
	Stopped    time.Time
	Command    string
}

// Processor turns captures into results. It holds no per-run state.
type Processor struct {
	cfg     config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	geo     *geo.Resolver
}

// NewProcessor builds a processor. metrics and resolver may be nil.
func NewProcessor(cfg config.Config, logger *zap.SugaredLogger, m *metrics.Metrics, resolver *geo.Resolver) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{cfg: cfg, logger: logger, metrics: m, geo: resolver}
}

func (p *Processor) parseOptions() iperf.ParseOptions {
	return iperf.ParseOptions{
		Datagram:   p.cfg.Datagram(),
		Interval:   p.cfg.Interval.Seconds(),
		Regression: p.cfg.DirectionRegression.Seconds(),
		Reverse:    p.cfg.Reverse,
	}
}

// Process runs one server's capture through parse, split, merge, window,
// summarize and assemble, appending results to acc. Missing output or input
// that is neither text nor JSON fails the server; acc records the failure
// and the error is returned so the caller can log it and move on.
func (p *Processor) Process(acc *RunAccumulator, capture Capture) error {
	srv, ok := p.cfg.Server(capture.Server)
	if !ok {
		p.logger.Warnw("server not in configuration, using defaults", "server", capture.Server)
		srv = config.ServerConfig{Host: capture.Server}
	}
	if !srv.IsEnabled() {
		p.logger.Infow("server disabled, skipping", "server", capture.Server)
		return ErrServerDisabled
	}

	opts := p.parseOptions()
	var (
		phaseSets  [][]iperf.Phase
		structured bool
		nonEmpty   int
	)
	for i, raw := range capture.Outputs {
		if len(bytes.TrimSpace(raw)) == 0 {
			p.logger.Warnw("empty output", "server", capture.Server, "output", i)
			continue
		}
		nonEmpty++
		format, err := iperf.SelectFormat(p.cfg.Format, raw)
		if err != nil {
			return p.failServer(acc, capture.Server, err)
		}
		if _, ok := format.(iperf.StructuredFormat); ok {
			structured = true
		}
		parsed, err := format.Parse(raw, opts)
		if err != nil {
			if !errors.Is(err, iperf.ErrMalformedStructured) {
				return p.failServer(acc, capture.Server, err)
			}
			p.logger.Warnw("malformed structured output, treating as empty",
				"server", capture.Server, "output", i, "error", err)
			p.metrics.IncMalformed()
			continue
		}
		p.metrics.ObserveParse(format.Name(), parsed.Stats.Accepted, parsed.Stats.Skipped)
		p.logger.Debugw("parsed output", "server", capture.Server, "output", i,
			"format", format.Name(), "accepted", parsed.Stats.Accepted, "skipped", parsed.Stats.Skipped)
		phaseSets = append(phaseSets, format.Phases(parsed, opts))
	}
	if nonEmpty == 0 {
		return p.failServer(acc, capture.Server, iperf.ErrEmptyOutput)
	}

	id := p.cfg.ResolveServer(srv)
	command := capture.Command
	if command == "" {
		command = p.cfg.Command(id, capture.OutputPath, structured)
	}
	window := iperf.Window{Warmup: p.cfg.Warmup.Seconds(), DropFinal: p.cfg.DropFinal}

	for _, group := range iperf.GroupPhases(phaseSets) {
		merged := window.Apply(iperf.Merge(group))
		series := merged.Series()
		if len(series.Bandwidth) < stats.MinSamples {
			p.logger.Debugw("discarding group with too few samples",
				"server", capture.Server, "direction", group.Direction.String(),
				"samples", len(series.Bandwidth), "min", stats.MinSamples)
			p.metrics.IncDiscarded(group.Direction.String())
			continue
		}
		r := p.assemble(capture, id, merged, series)
		r.Command = command
		acc.add(r)
		p.metrics.ObserveResult(capture.Server, r.Direction.String(), r.Bandwidth.Mean, r.BandwidthValues)
		p.logger.Infow("result",
			"server", capture.Server,
			"direction", r.Direction.String(),
			"samples", len(r.BandwidthValues),
			"concurrency", r.Concurrency,
			"bandwidth_mean_mbps", r.Bandwidth.Mean)
	}
	acc.succeed(capture.Server)
	return nil
}

func (p *Processor) failServer(acc *RunAccumulator, server string, err error) error {
	acc.fail(server)
	p.metrics.IncFailedServer()
	p.logger.Errorw("server test failed", "server", server, "error", err)
	return fmt.Errorf("server %s: %w", server, err)
}

func (p *Processor) assemble(capture Capture, id config.Identity, merged iperf.MergedStream, series iperf.Series) TestResult {
	if p.cfg.Datagram() {
		// Fall back to the run-level figures when intervals carried none.
		if len(series.Jitter) == 0 && merged.Summary.HasJitter {
			series.Jitter = []float64{merged.Summary.Jitter}
		}
		if len(series.Loss) == 0 && merged.Summary.HasLoss {
			series.Loss = []float64{merged.Summary.Loss}
		}
	}

	r := TestResult{
		Server:          capture.Server,
		Direction:       merged.Direction,
		Peer:            merged.Peer,
		BandwidthValues: series.Bandwidth,
		JitterValues:    series.Jitter,
		LossValues:      series.Loss,
		TransferMB:      series.TransferMB,
		Bandwidth:       stats.Summarize(series.Bandwidth, false),
		Concurrency:     merged.Concurrency,
		Identity:        id,
		Provenance:      ComputeProvenance(p.cfg.Meta, id),
		Started:         capture.Started,
		Stopped:         capture.Stopped,
		CPUClient:       merged.Summary.CPUClient,
		HasCPUClient:    merged.Summary.HasCPUClient,
		CPUServer:       merged.Summary.CPUServer,
		HasCPUServer:    merged.Summary.HasCPUServer,
	}
	if len(series.Jitter) > 0 {
		r.Jitter = stats.Summarize(series.Jitter, true)
	}
	if len(series.Loss) > 0 {
		r.Loss = stats.Summarize(series.Loss, true)
	}

	peer := r.Peer
	if peer == "" {
		peer = id.Hostname
	}
	if info, ok := p.geo.Lookup(peer); ok {
		r.PeerCountry = info.Country
		r.PeerASN = info.ASN
		r.PeerASOrg = info.ASOrg
	}
	return r
}
