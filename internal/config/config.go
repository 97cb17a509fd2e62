package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/NodePath81/fbiperf/internal/util"
	"gopkg.in/yaml.v3"
)

const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"

	FormatAuto   = "auto"
	FormatLegacy = "legacy"
	FormatJSON   = "json"

	NotSpecified = "Not Specified"

	defaultProtocol            = ProtocolTCP
	defaultFormat              = FormatAuto
	defaultInterval            = 1 * time.Second
	defaultTime                = 10 * time.Second
	defaultParallel            = "1"
	defaultBandwidth           = "1M"
	defaultTTL                 = 1
	defaultLengthTCP           = "8K"
	defaultLengthUDP           = "1470"
	defaultDirectionRegression = 5 * time.Second
	defaultServerEnabled       = true

	minInterval = 1 * time.Second
	maxInterval = 60 * time.Second
)

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

// Config is the run configuration. It is owned by the CLI layer and only read
// by the ingestion pipeline.
type Config struct {
	Protocol            string         `yaml:"protocol"`
	Format              string         `yaml:"format"`
	Interval            Duration       `yaml:"interval"`
	Time                Duration       `yaml:"time"`
	Num                 string         `yaml:"num"`
	Warmup              Duration       `yaml:"warmup"`
	DropFinal           int            `yaml:"drop_final"`
	Parallel            string         `yaml:"parallel"`
	Reverse             bool           `yaml:"reverse"`
	Tradeoff            bool           `yaml:"tradeoff"`
	Bandwidth           string         `yaml:"bandwidth"`
	Length              string         `yaml:"length"`
	MSS                 int            `yaml:"mss"`
	NoDelay             bool           `yaml:"nodelay"`
	TOS                 string         `yaml:"tos"`
	TTL                 int            `yaml:"ttl"`
	Window              string         `yaml:"window"`
	ZeroCopy            bool           `yaml:"zerocopy"`
	DirectionRegression Duration       `yaml:"direction_regression"`
	Meta                MetaConfig     `yaml:"meta"`
	ServerDefaults      ServerMeta     `yaml:"server_defaults"`
	Servers             []ServerConfig `yaml:"servers"`
	GeoIP               GeoIPConfig    `yaml:"geoip"`
	Logging             LoggingConfig  `yaml:"logging"`

	// ParallelCount is the evaluated Parallel expression.
	ParallelCount int `yaml:"-"`
}

// MetaConfig describes the client host the test ran from.
type MetaConfig struct {
	Provider         string `yaml:"provider"`
	ProviderID       string `yaml:"provider_id"`
	ComputeService   string `yaml:"compute_service"`
	ComputeServiceID string `yaml:"compute_service_id"`
	Region           string `yaml:"region"`
	InstanceID       string `yaml:"instance_id"`
	OS               string `yaml:"os"`
	CPU              string `yaml:"cpu"`
	Memory           string `yaml:"memory"`
	TestID           string `yaml:"test_id"`
	RunID            string `yaml:"run_id"`
	RunGroupID       string `yaml:"run_group_id"`
	ResourceID       string `yaml:"resource_id"`
}

// ServerMeta holds the per-server identity overrides.
type ServerMeta struct {
	Provider   string `yaml:"provider"`
	ProviderID string `yaml:"provider_id"`
	Service    string `yaml:"service"`
	ServiceID  string `yaml:"service_id"`
	Region     string `yaml:"region"`
	InstanceID string `yaml:"instance_id"`
	OS         string `yaml:"os"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Enabled    *bool  `yaml:"enabled"`
	ServerMeta `yaml:",inline"`
}

type GeoIPConfig struct {
	Database string `yaml:"database"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func (s ServerConfig) IsEnabled() bool {
	return util.BoolValue(s.Enabled, defaultServerEnabled)
}

// Datagram reports whether the run used the datagram (UDP) protocol mode.
func (c Config) Datagram() bool {
	return c.Protocol == ProtocolUDP
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))
	if c.Protocol == "" {
		c.Protocol = defaultProtocol
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = defaultFormat
	}
	if c.Interval == 0 {
		c.Interval = Duration(defaultInterval)
	}
	if c.Time == 0 {
		c.Time = Duration(defaultTime)
	}
	if strings.TrimSpace(c.Parallel) == "" {
		c.Parallel = defaultParallel
	}
	if c.Bandwidth == "" {
		c.Bandwidth = defaultBandwidth
	}
	if c.Length == "" {
		c.Length = defaultLengthTCP
		if c.Protocol == ProtocolUDP {
			c.Length = defaultLengthUDP
		}
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.DirectionRegression == 0 {
		c.DirectionRegression = Duration(defaultDirectionRegression)
	}

	if c.Meta.Provider == "" {
		c.Meta.Provider = NotSpecified
	}
	if c.Meta.ComputeService == "" {
		c.Meta.ComputeService = NotSpecified
	}
	if c.Meta.InstanceID == "" {
		c.Meta.InstanceID = NotSpecified
	}
	if c.Meta.OS == "" {
		c.Meta.OS = runtime.GOOS
	}
}

func (c *Config) validate() error {
	switch c.Protocol {
	case ProtocolTCP, ProtocolUDP:
	default:
		return errors.New("protocol must be tcp or udp")
	}
	switch c.Format {
	case FormatAuto, FormatLegacy, FormatJSON:
	default:
		return errors.New("format must be auto, legacy or json")
	}
	if c.Interval.Duration() < minInterval || c.Interval.Duration() > maxInterval {
		return fmt.Errorf("interval must be in %v..%v", minInterval, maxInterval)
	}
	if c.Time.Duration() < time.Second {
		return errors.New("time must be >= 1s")
	}
	if c.Warmup.Duration() < 0 {
		return errors.New("warmup must be >= 0")
	}
	if c.DropFinal < 0 {
		return errors.New("drop_final must be >= 0")
	}
	if c.DirectionRegression.Duration() <= 0 {
		return errors.New("direction_regression must be > 0")
	}
	if c.MSS < 0 {
		return errors.New("mss must be >= 0")
	}
	if c.TTL < 1 {
		return errors.New("ttl must be >= 1")
	}
	if _, err := util.ParseBandwidth(c.Bandwidth); err != nil {
		return fmt.Errorf("bandwidth: %w", err)
	}
	if _, err := util.ParseBufferLength(c.Length); err != nil {
		return fmt.Errorf("length: %w", err)
	}

	parallel, err := EvaluateParallel(c.Parallel, DetectCPUs())
	if err != nil {
		return fmt.Errorf("parallel: %w", err)
	}
	if parallel < 1 {
		return fmt.Errorf("parallel must evaluate to >= 1, got %d", parallel)
	}
	c.ParallelCount = parallel

	if len(c.Servers) == 0 {
		return errors.New("servers must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Servers))
	for i := range c.Servers {
		srv := &c.Servers[i]
		srv.Host = strings.TrimSpace(srv.Host)
		if srv.Host == "" {
			return fmt.Errorf("servers[%d].host must not be empty", i)
		}
		if _, ok := seen[srv.Host]; ok {
			return fmt.Errorf("duplicate server host: %s", srv.Host)
		}
		seen[srv.Host] = struct{}{}
	}
	return nil
}

// Server returns the configured server with the given host key.
func (c Config) Server(host string) (ServerConfig, bool) {
	for _, srv := range c.Servers {
		if srv.Host == host {
			return srv, true
		}
	}
	return ServerConfig{}, false
}
