package telemetry

import (
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. "http://pyroscope:4040"
	ApplicationName   string
	ProfileAlloc      bool // allocation objects and space
	ProfileInuse      bool // in-use objects and space
	ProfileGoroutines bool
}

// Profiler wraps the Pyroscope profiler with lifecycle management.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	config   ProfilerConfig
	mu       sync.Mutex
	stopped  bool
}

// NewProfiler starts a Pyroscope profiler. CPU profiles are always collected
// when enabled; a disabled config returns a no-op profiler.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler application name is required when profiling is enabled")
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:            tags,
		ProfileTypes:    p.profileTypes(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
	)
	return p, nil
}

func (p *Profiler) profileTypes() []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{pyroscope.ProfileCPU}
	if p.config.ProfileAlloc {
		types = append(types, pyroscope.ProfileAllocObjects, pyroscope.ProfileAllocSpace)
	}
	if p.config.ProfileInuse {
		types = append(types, pyroscope.ProfileInuseObjects, pyroscope.ProfileInuseSpace)
	}
	if p.config.ProfileGoroutines {
		types = append(types, pyroscope.ProfileGoroutines)
	}
	return types
}

// Stop flushes pending profiles. Safe to call more than once.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true

	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	p.logger.Info("Pyroscope profiler stopped")
	return nil
}

// IsEnabled returns whether profiling is running.
func (p *Profiler) IsEnabled() bool {
	return p.config.Enabled && p.profiler != nil
}

type pyroscopeLogger struct {
	*zap.SugaredLogger
}
