package app

import (
	"context"
	"errors"
	"sync"

	"github.com/NodePath81/fbiperf/internal/config"
	"github.com/NodePath81/fbiperf/internal/result"
	"github.com/NodePath81/fbiperf/internal/util"
)

var errNotStarted = errors.New("supervisor not started")

// Supervisor owns the configuration and the runtime built from it.
type Supervisor struct {
	configPath string
	logger     util.Logger
	mu         sync.Mutex
	cfg        config.Config
	runtime    *Runtime
}

// NewSupervisor returns a supervisor for configPath. logger reports startup
// failures; once the config is loaded it is replaced by a logger at the
// configured level.
func NewSupervisor(configPath string, logger util.Logger) *Supervisor {
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Supervisor{
		configPath: configPath,
		logger:     logger,
	}
}

func (s *Supervisor) Start() error {
	boot := s.Logger()
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		boot.Errorw("config load failed", "path", s.configPath, "error", err)
		return err
	}
	logger, err := util.NewLogger(cfg.Logging.Level)
	if err != nil {
		boot.Errorw("logger setup failed", "level", cfg.Logging.Level, "error", err)
		return err
	}
	runtime, err := NewRuntime(cfg, logger)
	if err != nil {
		boot.Errorw("runtime setup failed", "path", s.configPath, "error", err)
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.logger = logger
	s.runtime = runtime
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) Logger() util.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// Ingest loads the manifest and runs it through the current runtime.
func (s *Supervisor) Ingest(ctx context.Context, manifestPath string, opts Options) (*result.RunAccumulator, error) {
	s.mu.Lock()
	runtime := s.runtime
	s.mu.Unlock()
	if runtime == nil {
		return nil, errNotStarted
	}
	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return runtime.Ingest(ctx, manifest, opts)
}

func (s *Supervisor) Stop() {
	s.mu.Lock()
	current := s.runtime
	s.runtime = nil
	s.mu.Unlock()
	if current != nil {
		current.Stop()
	}
	_ = s.Logger().Sync()
}
