package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status values reported by Checker.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Probe checks one backing dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// Config holds health check configuration.
type Config struct {
	ProbeTimeout time.Duration
}

// MetricsRecordFunc is an optional callback for recording health check results.
type MetricsRecordFunc func(success bool)

// Report is the result of one Check.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every probe passed.
func (r Report) Healthy() bool { return r.Status == StatusOK }

// Checker probes the service's dependencies (database, cache) on demand.
type Checker struct {
	mu        sync.RWMutex
	probes    map[string]Probe
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	return &Checker{
		probes: make(map[string]Probe),
		cfg:    cfg,
		logger: logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Register adds a named probe, replacing any probe with the same name.
func (h *Checker) Register(name string, p Probe) {
	h.mu.Lock()
	h.probes[name] = p
	h.mu.Unlock()
}

// Names returns the registered probe names in sorted order.
func (h *Checker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.probes))
	for n := range h.probes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check runs every probe concurrently, each bounded by ProbeTimeout.
func (h *Checker) Check(ctx context.Context) Report {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for n, p := range h.probes {
		probes[n] = p
	}
	h.mu.RUnlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Status: StatusOK, Checks: make(map[string]string, len(probes))}
	)
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			defer cancel()

			result := StatusOK
			if err := p(pctx); err != nil {
				h.logger.Warn("health: probe failed", zap.String("probe", name), zap.Error(err))
				result = err.Error()
			}

			mu.Lock()
			report.Checks[name] = result
			if result != StatusOK {
				report.Status = StatusDegraded
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	if h.onMetrics != nil {
		h.onMetrics(report.Healthy())
	}
	return report
}
