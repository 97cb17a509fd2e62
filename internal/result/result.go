// Package result assembles per-server test results from captured iperf
// output.
package result

import (
	"encoding/json"
	"time"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/iperf"
	"github.com/NodePath81/fbiperf/internal/stats"
)

// TimeFormat is the layout of test_started and test_stopped.
const TimeFormat = "2006-01-02 15:04:05"

// Provenance compares a tested server with the client host.
type Provenance struct {
	SameProvider   bool
	SameService    bool
	SameRegion     bool
	SameInstanceID bool
	SameOS         bool
}

// ComputeProvenance evaluates the provenance cascade. Service equality needs
// provider equality; region and instance equality need service equality.
// OS equality stands alone. An attribute missing on either side never
// matches.
func ComputeProvenance(meta config.MetaConfig, id config.Identity) Provenance {
	var p Provenance
	p.SameProvider = matches(id.ProviderID, meta.ProviderID)
	p.SameService = p.SameProvider && matches(id.ServiceID, meta.ComputeServiceID)
	p.SameRegion = p.SameService && matches(id.Region, meta.Region)
	p.SameInstanceID = p.SameService && matches(id.InstanceID, meta.InstanceID)
	p.SameOS = matches(id.OS, meta.OS)
	return p
}

func matches(a, b string) bool {
	return a != "" && b != "" && a == b
}

// TestResult is the reportable outcome of one server in one direction.
type TestResult struct {
	RunID     string
	Server    string
	Direction iperf.Direction
	Peer      string

	PeerCountry string
	PeerASN     uint
	PeerASOrg   string

	BandwidthValues []float64
	JitterValues    []float64
	LossValues      []float64
	TransferMB      float64

	Bandwidth stats.Summary
	Jitter    stats.Summary
	Loss      stats.Summary

	Concurrency int
	Identity    config.Identity
	Provenance

	Started time.Time
	Stopped time.Time
	Command string

	CPUClient    float64
	HasCPUClient bool
	CPUServer    float64
	HasCPUServer bool
}

// Map returns the result as nested maps of strings, numbers, booleans and
// number sequences. Jitter and loss keys are present only when the result
// carries those series.
func (r TestResult) Map() map[string]any {
	m := map[string]any{
		"run_id":              r.RunID,
		"iperf_server":        r.Server,
		"bandwidth_direction": r.Direction.String(),
		"concurrency":         r.Concurrency,
		"transfer":            r.TransferMB,
		"server_identity":     identityMap(r.Identity),
		"same_provider":       r.SameProvider,
		"same_service":        r.SameService,
		"same_region":         r.SameRegion,
		"same_instance_id":    r.SameInstanceID,
		"same_os":             r.SameOS,
		"test_started":        formatTime(r.Started),
		"test_stopped":        formatTime(r.Stopped),
		"command_used":        r.Command,
		"iperf_cmd":           r.Command,
	}
	if r.Peer != "" {
		m["peer"] = r.Peer
	}
	if r.PeerCountry != "" {
		m["peer_country"] = r.PeerCountry
	}
	if r.PeerASN != 0 {
		m["peer_asn"] = r.PeerASN
	}
	if r.PeerASOrg != "" {
		m["peer_as_org"] = r.PeerASOrg
	}
	putMetric(m, "bandwidth", r.BandwidthValues, r.Bandwidth)
	if len(r.JitterValues) > 0 {
		putMetric(m, "jitter", r.JitterValues, r.Jitter)
	}
	if len(r.LossValues) > 0 {
		putMetric(m, "loss", r.LossValues, r.Loss)
	}
	if r.HasCPUClient {
		m["cpu_client"] = r.CPUClient
	}
	if r.HasCPUServer {
		m["cpu_server"] = r.CPUServer
	}
	return m
}

func (r TestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func putMetric(m map[string]any, name string, values []float64, s stats.Summary) {
	m[name+"_values"] = append([]float64(nil), values...)
	m[name+"_min"] = s.Min
	m[name+"_max"] = s.Max
	m[name+"_mean"] = s.Mean
	m[name+"_median"] = s.Median
	m[name+"_p10"] = s.P10
	m[name+"_p25"] = s.P25
	m[name+"_p75"] = s.P75
	m[name+"_p90"] = s.P90
	m[name+"_stdev"] = s.StdDev
}

func identityMap(id config.Identity) map[string]any {
	m := map[string]any{
		"hostname":    id.Hostname,
		"provider":    id.Provider,
		"provider_id": id.ProviderID,
		"service":     id.Service,
		"service_id":  id.ServiceID,
		"region":      id.Region,
		"instance_id": id.InstanceID,
		"os":          id.OS,
	}
	if id.Port > 0 {
		m["port"] = id.Port
	}
	return m
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}
