package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
servers:
  - host: iperf.example.net:5201
`))
	require.NoError(t, err)
	assert.Equal(t, ProtocolTCP, cfg.Protocol)
	assert.Equal(t, FormatAuto, cfg.Format)
	assert.Equal(t, time.Second, cfg.Interval.Duration())
	assert.Equal(t, 10*time.Second, cfg.Time.Duration())
	assert.Equal(t, 5*time.Second, cfg.DirectionRegression.Duration())
	assert.Equal(t, "8K", cfg.Length)
	assert.Equal(t, 1, cfg.ParallelCount)
	assert.Equal(t, NotSpecified, cfg.Meta.Provider)
	assert.Equal(t, NotSpecified, cfg.Meta.ComputeService)
	assert.Equal(t, NotSpecified, cfg.Meta.InstanceID)
	assert.Equal(t, runtime.GOOS, cfg.Meta.OS)
	assert.True(t, cfg.Servers[0].IsEnabled())
	assert.False(t, cfg.Datagram())
}

func TestParseConfigUDP(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
protocol: UDP
interval: 2
warmup: 5s
drop_final: 2
bandwidth: 50M
parallel: "[cpus]*0+4"
servers:
  - host: a
  - host: b
    enabled: false
`))
	require.NoError(t, err)
	assert.True(t, cfg.Datagram())
	assert.Equal(t, "1470", cfg.Length)
	assert.Equal(t, 2*time.Second, cfg.Interval.Duration())
	assert.Equal(t, 5.0, cfg.Warmup.Seconds())
	assert.Equal(t, 2, cfg.DropFinal)
	assert.Equal(t, "50M", cfg.Bandwidth)
	assert.Equal(t, 4, cfg.ParallelCount)
	assert.False(t, cfg.Servers[1].IsEnabled())
}

func TestParseConfigValidation(t *testing.T) {
	cases := map[string]string{
		"no servers":      `protocol: tcp`,
		"bad protocol":    "protocol: sctp\nservers: [{host: a}]",
		"bad format":      "format: xml\nservers: [{host: a}]",
		"interval range":  "interval: 61\nservers: [{host: a}]",
		"negative warmup": "warmup: -1\nservers: [{host: a}]",
		"negative drop":   "drop_final: -1\nservers: [{host: a}]",
		"bad bandwidth":   "bandwidth: fast\nservers: [{host: a}]",
		"bad parallel":    "parallel: \"[cpus]-[cpus]\"\nservers: [{host: a}]",
		"duplicate host":  "servers: [{host: a}, {host: a}]",
		"empty host":      "servers: [{host: ' '}]",
	}
	for name, doc := range cases {
		_, err := ParseConfig([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestResolveServerFallbackChain(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
meta:
  provider: Acme Cloud
  provider_id: acme
  compute_service: Acme Compute
  compute_service_id: acme:compute
  region: eu-west
  os: Ubuntu 22.04
server_defaults:
  region: us-east
servers:
  - host: 10.0.0.9:5001
    provider_id: other
    instance_id: m5.large
`))
	require.NoError(t, err)
	id := cfg.ResolveServer(cfg.Servers[0])
	assert.Equal(t, Identity{
		Hostname:   "10.0.0.9",
		Port:       5001,
		Provider:   "Acme Cloud",
		ProviderID: "other",
		Service:    "Acme Compute",
		ServiceID:  "acme:compute",
		Region:     "us-east",
		InstanceID: "m5.large",
		OS:         "Ubuntu 22.04",
	}, id)
}

func TestEvaluateParallel(t *testing.T) {
	cases := []struct {
		expr string
		want int
	}{
		{"1", 1},
		{"[cpus]", 8},
		{"[cpus]*2", 16},
		{"[cpus]/3", 3},
		{"([cpus]+2)/4", 3},
		{"[cpus] - 1", 7},
		{"-2+[cpus]", 6},
		{"2.5", 3},
	}
	for _, tc := range cases {
		got, err := EvaluateParallel(tc.expr, 8)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestEvaluateParallelRejects(t *testing.T) {
	for _, expr := range []string{"", "[cpus]/0", "system('x')", "[cpus]*", "(1+2", "1 2", "[cores]"} {
		_, err := EvaluateParallel(expr, 4)
		assert.Error(t, err, expr)
	}
	_, err := EvaluateParallel("4/(2-2)", 4)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestDetectCPUs(t *testing.T) {
	assert.GreaterOrEqual(t, DetectCPUs(), 1)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
captures:
  - server: iperf.example.net
    outputs: [port1.csv, /abs/port2.csv]
    started: 2024-03-01T10:00:00Z
    stopped: 2024-03-01T10:00:12Z
    command: iperf -y C -c iperf.example.net
`), 0o644))
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Captures, 1)
	entry := m.Captures[0]
	assert.Equal(t, []string{filepath.Join(dir, "port1.csv"), "/abs/port2.csv"}, entry.Outputs)
	assert.Equal(t, 12*time.Second, entry.Stopped.Sub(entry.Started))

	require.NoError(t, os.WriteFile(path, []byte("captures: [{server: ''}]"), 0o644))
	_, err = LoadManifest(path)
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
protocol: udp
bandwidth: 10M
parallel: "2"
tradeoff: true
servers:
  - host: iperf.example.net:5001
`))
	require.NoError(t, err)
	id := cfg.ResolveServer(cfg.Servers[0])
	assert.Equal(t,
		"iperf -y C -o /tmp/out -c iperf.example.net -i 1 -b 10M -l 1470 -t 10 -p 5001 -P 2 -r -T 1 -u",
		cfg.Command(id, "/tmp/out", false))

	cfg.Reverse = true
	cfg.ZeroCopy = true
	assert.Equal(t,
		"iperf3 -J --logfile /tmp/out -c iperf.example.net -i 1 -b 10M -l 1470 -t 10 -p 5001 -P 2 -R -u -Z",
		cfg.Command(id, "/tmp/out", true))
}
