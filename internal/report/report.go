// Package report shapes results for the external chart renderer and the
// results database.
package report

import (
	"math"
	"strconv"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/result"
)

const histogramBuckets = 8

// Point is one chart coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bucket is one histogram bar. It counts values in [Start, Start+Width).
type Bucket struct {
	Start float64 `json:"start"`
	Width float64 `json:"width"`
	Count int     `json:"count"`
}

// Timeline places values on a time axis spaced by interval seconds.
func Timeline(values []float64, interval float64) []Point {
	points := make([]Point, 0, len(values))
	for i, v := range values {
		points = append(points, Point{X: float64(i) * interval, Y: v})
	}
	return points
}

// MedianLine is the horizontal reference line drawn across a timeline.
func MedianLine(timeline []Point, median float64) []Point {
	if len(timeline) == 0 {
		return nil
	}
	return []Point{
		{X: timeline[0].X, Y: median},
		{X: timeline[len(timeline)-1].X, Y: median},
	}
}

// Histogram buckets values into eight bars over the range floored and ceiled
// to hundreds. A degenerate range widens to one hundred.
func Histogram(values []float64) []Bucket {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo = math.Floor(lo/100) * 100
	hi = math.Ceil(hi/100) * 100
	if hi <= lo {
		hi = lo + 100
	}
	step := math.Round((hi - lo) / histogramBuckets)
	if step < 1 {
		step = 1
	}

	var buckets []Bucket
	for start := lo; start < hi; start += step {
		b := Bucket{Start: start, Width: step}
		for _, v := range values {
			if v >= start && v < start+step {
				b.Count++
			}
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// Charts is the chart data of one result.
type Charts struct {
	Server    string   `json:"server"`
	Direction string   `json:"direction"`
	Bandwidth []Point  `json:"bandwidth"`
	Median    []Point  `json:"bandwidth_median"`
	BwHist    []Bucket `json:"bandwidth_histogram"`
	Jitter    []Point  `json:"jitter,omitempty"`
	JitHist   []Bucket `json:"jitter_histogram,omitempty"`
	Loss      []Point  `json:"loss,omitempty"`
	LossHist  []Bucket `json:"loss_histogram,omitempty"`
}

// BuildCharts prepares the timeline and histogram series of r.
func BuildCharts(r result.TestResult, interval float64) Charts {
	c := Charts{
		Server:    r.Server,
		Direction: r.Direction.String(),
		Bandwidth: Timeline(r.BandwidthValues, interval),
		BwHist:    Histogram(r.BandwidthValues),
	}
	c.Median = MedianLine(c.Bandwidth, r.Bandwidth.Median)
	if len(r.JitterValues) > 0 {
		c.Jitter = Timeline(r.JitterValues, interval)
		c.JitHist = Histogram(r.JitterValues)
	}
	if len(r.LossValues) > 0 {
		c.Loss = Timeline(r.LossValues, interval)
		c.LossHist = Histogram(r.LossValues)
	}
	return c
}

// Rows flattens results into database rows: the scalar run options merged
// with each result map, with the server identity spread into
// iperf_server_<attr> columns.
func Rows(cfg config.Config, results []result.TestResult) []map[string]any {
	base := runOptions(cfg)
	rows := make([]map[string]any, 0, len(results))
	for _, r := range results {
		row := make(map[string]any, len(base)+48)
		for k, v := range base {
			row[k] = v
		}
		for k, v := range r.Map() {
			if k == "server_identity" {
				for attr, val := range v.(map[string]any) {
					row["iperf_server_"+attr] = val
				}
				continue
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows
}

func runOptions(cfg config.Config) map[string]any {
	opts := map[string]any{
		"iperf_protocol":  cfg.Protocol,
		"iperf_interval":  cfg.Interval.Seconds(),
		"iperf_time":      cfg.Time.Seconds(),
		"iperf_warmup":    cfg.Warmup.Seconds(),
		"iperf_parallel":  cfg.ParallelCount,
		"iperf_bandwidth": cfg.Bandwidth,
		"iperf_len":       cfg.Length,
		"iperf_ttl":       cfg.TTL,
		"iperf_reverse":   cfg.Reverse,
		"iperf_tradeoff":  cfg.Tradeoff,
		"iperf_nodelay":   cfg.NoDelay,
		"iperf_zerocopy":  cfg.ZeroCopy,
	}
	if cfg.DropFinal > 0 {
		opts["iperf_drop_final"] = cfg.DropFinal
	}
	if cfg.Num != "" {
		opts["iperf_num"] = cfg.Num
	}
	if cfg.MSS > 0 {
		opts["iperf_mss"] = strconv.Itoa(cfg.MSS)
	}
	if cfg.TOS != "" {
		opts["iperf_tos"] = cfg.TOS
	}
	if cfg.Window != "" {
		opts["iperf_window"] = cfg.Window
	}
	meta := cfg.Meta
	for key, val := range map[string]string{
		"meta_provider":           meta.Provider,
		"meta_provider_id":        meta.ProviderID,
		"meta_compute_service":    meta.ComputeService,
		"meta_compute_service_id": meta.ComputeServiceID,
		"meta_region":             meta.Region,
		"meta_instance_id":        meta.InstanceID,
		"meta_os":                 meta.OS,
		"meta_cpu":                meta.CPU,
		"meta_memory":             meta.Memory,
		"meta_test_id":            meta.TestID,
		"meta_run_id":             meta.RunID,
		"meta_run_group_id":       meta.RunGroupID,
		"meta_resource_id":        meta.ResourceID,
	} {
		if val != "" {
			opts[key] = val
		}
	}
	return opts
}
