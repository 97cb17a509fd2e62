package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest lists the raw outputs captured by the test orchestration.
type Manifest struct {
	Captures []CaptureEntry `yaml:"captures"`
}

// CaptureEntry describes one server's captured run. Outputs holds one file
// per concurrently run test process ("port").
type CaptureEntry struct {
	Server  string    `yaml:"server"`
	Outputs []string  `yaml:"outputs"`
	Started time.Time `yaml:"started"`
	Stopped time.Time `yaml:"stopped"`
	Command string    `yaml:"command"`
}

// LoadManifest reads a capture manifest. Relative output paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, err
	}
	base := filepath.Dir(path)
	for i := range m.Captures {
		entry := &m.Captures[i]
		entry.Server = strings.TrimSpace(entry.Server)
		if entry.Server == "" {
			return Manifest{}, fmt.Errorf("captures[%d].server must not be empty", i)
		}
		if !entry.Stopped.IsZero() && entry.Stopped.Before(entry.Started) {
			return Manifest{}, fmt.Errorf("captures[%s].stopped is before started", entry.Server)
		}
		for j, out := range entry.Outputs {
			if !filepath.IsAbs(out) {
				entry.Outputs[j] = filepath.Join(base, out)
			}
		}
	}
	if len(m.Captures) == 0 {
		return Manifest{}, errors.New("captures must not be empty")
	}
	return m, nil
}
