package result

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/iperf"
	"github.com/NodePath81/fbiperf/internal/metrics"
)

const testServer = "iperf.example.net:5001"

func testConfig(t *testing.T, extra string) config.Config {
	t.Helper()
	raw := extra + `
meta:
  provider_id: aws
  compute_service_id: ec2
  region: us-east-1
  os: linux
servers:
  - host: iperf.example.net:5001
    provider_id: aws
    service_id: ec2
    region: us-west-2
    os: linux
`
	cfg, err := config.ParseConfig([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func newTestProcessor(t *testing.T, cfg config.Config) *Processor {
	return NewProcessor(cfg, zaptest.NewLogger(t).Sugar(), metrics.NewMetrics(), nil)
}

func legacyLine(start float64, peer string, conn int, bytes, bps float64) string {
	return fmt.Sprintf("20261014120000,10.0.0.2,40000,%s,5001,%d,%.1f-%.1f,%.0f,%.0f",
		peer, conn, start, start+1, bytes, bps)
}

func legacyOutput(starts []float64, peer string, conn int, bytes, bps float64) []byte {
	lines := make([]string, 0, len(starts))
	for _, s := range starts {
		lines = append(lines, legacyLine(s, peer, conn, bytes, bps))
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, float64(i))
	}
	return out
}

func TestProcessSingleConnection(t *testing.T) {
	cfg := testConfig(t, "")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run-1")

	starts := make([]float64, 10)
	started := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	err := p.Process(acc, Capture{
		Server:  testServer,
		Outputs: [][]byte{legacyOutput(starts, "10.0.0.1", 3, 125000000, 1000000000)},
		Started: started,
		Stopped: started.Add(10 * time.Second),
		Command: "iperf -c iperf.example.net",
	})
	require.NoError(t, err)
	require.Len(t, acc.Results, 1)

	r := acc.Results[0]
	assert.Equal(t, iperf.DirectionUp, r.Direction)
	assert.Len(t, r.BandwidthValues, 10)
	for _, v := range r.BandwidthValues {
		assert.Equal(t, 1000.0, v)
	}
	assert.Equal(t, 1000.0, r.Bandwidth.Mean)
	assert.Equal(t, 0.0, r.Bandwidth.StdDev)
	assert.Equal(t, 1, r.Concurrency)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "10.0.0.1", r.Peer)
	assert.Equal(t, "iperf -c iperf.example.net", r.Command)
	assert.Empty(t, r.JitterValues)
	assert.Equal(t, []string{testServer}, acc.Succeeded)
	assert.True(t, acc.Success())
}

func TestProcessWarmup(t *testing.T) {
	cfg := testConfig(t, "warmup: 5\n")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("")

	err := p.Process(acc, Capture{
		Server:  testServer,
		Outputs: [][]byte{legacyOutput(seq(0, 10), "10.0.0.1", 3, 125000000, 1000000000)},
	})
	require.NoError(t, err)
	require.Len(t, acc.Results, 1)
	assert.Len(t, acc.Results[0].BandwidthValues, 5)
	assert.InDelta(t, 5*125000000.0/(1024*1024), acc.Results[0].TransferMB, 1e-9)
	assert.NotEmpty(t, acc.RunID)
}

func TestProcessBidirectionalParallel(t *testing.T) {
	cfg := testConfig(t, "")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")

	output := func(conn int) []byte {
		var b strings.Builder
		b.Write(legacyOutput(seq(0, 6), "10.0.0.1", conn, 12500000, 100000000))
		b.Write(legacyOutput(seq(0, 6), "10.0.0.1", conn, 12500000, 100000000))
		return []byte(b.String())
	}
	err := p.Process(acc, Capture{
		Server:  testServer,
		Outputs: [][]byte{output(3), output(4)},
	})
	require.NoError(t, err)
	require.Len(t, acc.Results, 2)

	up, down := acc.Results[0], acc.Results[1]
	assert.Equal(t, iperf.DirectionUp, up.Direction)
	assert.Equal(t, iperf.DirectionDown, down.Direction)
	for _, r := range acc.Results {
		assert.Equal(t, 2, r.Concurrency)
		assert.Equal(t, []float64{200, 200, 200, 200, 200, 200}, r.BandwidthValues)
	}
}

func TestProcessStructuredDatagram(t *testing.T) {
	cfg := testConfig(t, "protocol: udp\nformat: json\n")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")

	var intervals []string
	for i := 0; i < 5; i++ {
		intervals = append(intervals, fmt.Sprintf(
			`{"sum":{"start":%d,"end":%d,"bytes":250000,"bits_per_second":2000000,"jitter_ms":1.5,"lost_percent":0.2}}`,
			i, i+1))
	}
	raw := `{"intervals":[` + strings.Join(intervals, ",") + `],` +
		`"end":{"sum":{"jitter_ms":1.4,"lost_percent":0.1},"cpu_utilization_percent":{"host_total":12.5,"remote_total":3.5}}}`

	err := p.Process(acc, Capture{Server: testServer, Outputs: [][]byte{[]byte(raw)}})
	require.NoError(t, err)
	require.Len(t, acc.Results, 1)

	r := acc.Results[0]
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, r.BandwidthValues)
	assert.InDelta(t, 1.5, r.Jitter.Mean, 1e-9)
	assert.InDelta(t, 0.2, r.Loss.Mean, 1e-9)
	assert.True(t, r.HasCPUClient)
	assert.Equal(t, 12.5, r.CPUClient)
	assert.Equal(t, 3.5, r.CPUServer)
	assert.True(t, strings.HasPrefix(r.Command, "iperf3 -J --logfile"), r.Command)
}

func TestProcessStructuredRunLevelFallback(t *testing.T) {
	cfg := testConfig(t, "protocol: udp\nreverse: true\n")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")

	var intervals []string
	for i := 0; i < 6; i++ {
		intervals = append(intervals, fmt.Sprintf(`{"sum":{"start":%d,"bytes":250000,"bits_per_second":2000000}}`, i))
	}
	raw := `{"intervals":[` + strings.Join(intervals, ",") + `],"end":{"sum":{"jitter_ms":0.8,"lost_percent":1.25}}}`

	require.NoError(t, p.Process(acc, Capture{Server: testServer, Outputs: [][]byte{[]byte(raw)}}))
	require.Len(t, acc.Results, 1)
	r := acc.Results[0]
	assert.Equal(t, iperf.DirectionDown, r.Direction)
	assert.Equal(t, []float64{0.8}, r.JitterValues)
	assert.Equal(t, []float64{1.25}, r.LossValues)
	assert.Equal(t, 0.8, r.Jitter.Mean)
}

func TestProcessSampleBoundary(t *testing.T) {
	cases := []struct {
		name    string
		samples int
		results int
	}{
		{name: "three", samples: 3, results: 0},
		{name: "four", samples: 4, results: 0},
		{name: "five", samples: 5, results: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t, "")
			p := newTestProcessor(t, cfg)
			acc := NewRunAccumulator("run")
			err := p.Process(acc, Capture{
				Server:  testServer,
				Outputs: [][]byte{legacyOutput(seq(0, tc.samples), "10.0.0.1", 3, 125000000, 1000000000)},
			})
			require.NoError(t, err)
			assert.Len(t, acc.Results, tc.results)
			assert.Equal(t, []string{testServer}, acc.Succeeded)
			assert.Empty(t, acc.Failed)
		})
	}
}

func TestProcessSkipsNonFiniteSamples(t *testing.T) {
	cfg := testConfig(t, "")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")

	lines := strings.Split(strings.TrimSpace(string(legacyOutput(seq(0, 6), "10.0.0.1", 3, 125000000, 1000000000))), "\n")
	lines[2] = "20261014120000,10.0.0.2,40000,10.0.0.1,5001,3,2.0-3.0,125000000,NaN"
	require.NoError(t, p.Process(acc, Capture{
		Server:  testServer,
		Outputs: [][]byte{[]byte(strings.Join(lines, "\n"))},
	}))
	require.Len(t, acc.Results, 1)
	assert.Equal(t, []float64{1000, 1000, 1000, 1000, 1000}, acc.Results[0].BandwidthValues)
	assert.Equal(t, 1000.0, acc.Results[0].Bandwidth.Mean)

	_, err := json.Marshal(acc.Maps())
	require.NoError(t, err)
}

func TestProcessFailures(t *testing.T) {
	cfg := testConfig(t, "")

	t.Run("empty", func(t *testing.T) {
		p := newTestProcessor(t, cfg)
		acc := NewRunAccumulator("run")
		err := p.Process(acc, Capture{Server: testServer, Outputs: [][]byte{nil, []byte("  \n")}})
		require.ErrorIs(t, err, iperf.ErrEmptyOutput)
		assert.Equal(t, []string{testServer}, acc.Failed)
		assert.False(t, acc.Success())
	})

	t.Run("no outputs", func(t *testing.T) {
		p := newTestProcessor(t, cfg)
		acc := NewRunAccumulator("run")
		require.ErrorIs(t, p.Process(acc, Capture{Server: testServer}), iperf.ErrEmptyOutput)
	})

	t.Run("binary", func(t *testing.T) {
		p := newTestProcessor(t, cfg)
		acc := NewRunAccumulator("run")
		err := p.Process(acc, Capture{Server: testServer, Outputs: [][]byte{{0x00, 0x01, 0x02}}})
		require.ErrorIs(t, err, iperf.ErrUnrecognizedInput)
		assert.Equal(t, []string{testServer}, acc.Failed)
	})

	t.Run("malformed structured", func(t *testing.T) {
		p := newTestProcessor(t, cfg)
		acc := NewRunAccumulator("run")
		err := p.Process(acc, Capture{Server: testServer, Outputs: [][]byte{[]byte(`{"intervals": [`)}})
		require.NoError(t, err)
		assert.Empty(t, acc.Results)
		assert.Equal(t, []string{testServer}, acc.Succeeded)
	})
}

func TestProcessDisabledServer(t *testing.T) {
	cfg, err := config.ParseConfig([]byte("servers:\n  - host: a.example.net\n    enabled: false\n"))
	require.NoError(t, err)
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")
	err = p.Process(acc, Capture{Server: "a.example.net", Outputs: [][]byte{[]byte("x")}})
	require.ErrorIs(t, err, ErrServerDisabled)
	assert.Empty(t, acc.Failed)
	assert.Empty(t, acc.Succeeded)
}

func TestProcessRebuildsCommand(t *testing.T) {
	cfg := testConfig(t, "")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")
	require.NoError(t, p.Process(acc, Capture{
		Server:     testServer,
		OutputPath: "/tmp/out",
		Outputs:    [][]byte{legacyOutput(seq(0, 6), "10.0.0.1", 3, 125000000, 1000000000)},
	}))
	require.Len(t, acc.Results, 1)
	assert.True(t, strings.HasPrefix(acc.Results[0].Command, "iperf -y C -o /tmp/out -c iperf.example.net -i 1"),
		acc.Results[0].Command)
	assert.Contains(t, acc.Results[0].Command, " -p 5001")
}

func TestComputeProvenance(t *testing.T) {
	meta := config.MetaConfig{
		ProviderID:       "aws",
		ComputeServiceID: "ec2",
		Region:           "us-east-1",
		InstanceID:       "c5.large",
		OS:               "linux",
	}
	cases := []struct {
		name string
		id   config.Identity
		want Provenance
	}{
		{
			name: "identical",
			id:   config.Identity{ProviderID: "aws", ServiceID: "ec2", Region: "us-east-1", InstanceID: "c5.large", OS: "linux"},
			want: Provenance{SameProvider: true, SameService: true, SameRegion: true, SameInstanceID: true, SameOS: true},
		},
		{
			name: "other provider gates everything but os",
			id:   config.Identity{ProviderID: "gcp", ServiceID: "ec2", Region: "us-east-1", InstanceID: "c5.large", OS: "linux"},
			want: Provenance{SameOS: true},
		},
		{
			name: "other service gates region and instance",
			id:   config.Identity{ProviderID: "aws", ServiceID: "lightsail", Region: "us-east-1", InstanceID: "c5.large"},
			want: Provenance{SameProvider: true},
		},
		{
			name: "other region keeps instance",
			id:   config.Identity{ProviderID: "aws", ServiceID: "ec2", Region: "eu-west-1", InstanceID: "c5.large", OS: "windows"},
			want: Provenance{SameProvider: true, SameService: true, SameInstanceID: true},
		},
		{
			name: "missing attributes never match",
			id:   config.Identity{},
			want: Provenance{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeProvenance(meta, tc.id))
		})
	}
}

func TestProcessIdentityFallback(t *testing.T) {
	cfg := testConfig(t, "")
	p := newTestProcessor(t, cfg)
	acc := NewRunAccumulator("run")
	require.NoError(t, p.Process(acc, Capture{
		Server:  testServer,
		Outputs: [][]byte{legacyOutput(seq(0, 5), "10.0.0.1", 3, 125000000, 1000000000)},
	}))
	require.Len(t, acc.Results, 1)
	r := acc.Results[0]
	assert.Equal(t, "iperf.example.net", r.Identity.Hostname)
	assert.Equal(t, 5001, r.Identity.Port)
	assert.Equal(t, config.NotSpecified, r.Identity.Provider)
	assert.True(t, r.SameService)
	assert.False(t, r.SameRegion)
	assert.True(t, r.SameInstanceID)
	assert.True(t, r.SameOS)
}

func TestTestResultMap(t *testing.T) {
	started := time.Date(2026, 10, 14, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	r := TestResult{
		RunID:           "run",
		Server:          testServer,
		Direction:       iperf.DirectionDown,
		BandwidthValues: []float64{1, 2, 3, 4, 5},
		JitterValues:    []float64{0.5},
		TransferMB:      1.5,
		Concurrency:     2,
		Identity:        config.Identity{Hostname: "iperf.example.net", Port: 5001, OS: "linux"},
		Provenance:      Provenance{SameOS: true},
		Started:         started,
		Command:         "iperf3 -c iperf.example.net",
		CPUServer:       4,
		HasCPUServer:    true,
		PeerCountry:     "DE",
		PeerASN:         64500,
		PeerASOrg:       "Example Transit",
	}
	r.Bandwidth.Mean = 3
	r.Jitter.Mean = 0.5

	m := r.Map()
	assert.Equal(t, "down", m["bandwidth_direction"])
	assert.Equal(t, testServer, m["iperf_server"])
	assert.Equal(t, "iperf3 -c iperf.example.net", m["iperf_cmd"])
	assert.Equal(t, m["iperf_cmd"], m["command_used"])
	assert.Equal(t, "2026-10-14 10:00:00", m["test_started"])
	assert.Equal(t, "", m["test_stopped"])
	assert.Equal(t, 3.0, m["bandwidth_mean"])
	assert.Equal(t, 0.5, m["jitter_mean"])
	assert.NotContains(t, m, "loss_mean")
	assert.NotContains(t, m, "cpu_client")
	assert.Equal(t, 4.0, m["cpu_server"])
	assert.Equal(t, "DE", m["peer_country"])
	assert.Equal(t, uint(64500), m["peer_asn"])
	assert.Equal(t, "Example Transit", m["peer_as_org"])
	assert.Equal(t, true, m["same_os"])
	assert.Equal(t, "linux", m["server_identity"].(map[string]any)["os"])

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "down", decoded["bandwidth_direction"])
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0, 5.0}, decoded["bandwidth_values"])
	assert.Equal(t, 5001.0, decoded["server_identity"].(map[string]any)["port"])
}
