package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCheck_allHealthy(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	checker.Register("postgres", func(context.Context) error { return nil })
	checker.Register("redis", func(context.Context) error { return nil })

	report := checker.Check(context.Background())
	if !report.Healthy() {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if len(report.Checks) != 2 || report.Checks["postgres"] != StatusOK || report.Checks["redis"] != StatusOK {
		t.Errorf("unexpected checks: %v", report.Checks)
	}
}

func TestCheck_noProbesIsHealthy(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	if report := checker.Check(context.Background()); !report.Healthy() {
		t.Errorf("expected healthy report with no probes, got %+v", report)
	}
}

func TestCheck_failingProbeDegrades(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	checker.Register("postgres", func(context.Context) error { return nil })
	checker.Register("redis", func(context.Context) error { return errors.New("connection refused") })

	report := checker.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %q", report.Status)
	}
	if report.Checks["redis"] != "connection refused" {
		t.Errorf("redis check: got %q", report.Checks["redis"])
	}
	if report.Checks["postgres"] != StatusOK {
		t.Errorf("postgres check: got %q", report.Checks["postgres"])
	}
}

func TestCheck_probeTimeout(t *testing.T) {
	checker := New(Config{ProbeTimeout: 20 * time.Millisecond}, zap.NewNop())
	checker.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	report := checker.Check(context.Background())
	if report.Healthy() {
		t.Fatal("expected slow probe to fail")
	}
	if time.Since(start) > time.Second {
		t.Errorf("probe was not bounded by timeout: %v", time.Since(start))
	}
}

func TestCheck_recordsMetrics(t *testing.T) {
	var ok, failed atomic.Int32
	checker := New(Config{}, zap.NewNop())
	checker.SetMetricsRecord(func(success bool) {
		if success {
			ok.Add(1)
		} else {
			failed.Add(1)
		}
	})

	checker.Check(context.Background())
	checker.Register("db", func(context.Context) error { return errors.New("down") })
	checker.Check(context.Background())

	if ok.Load() != 1 || failed.Load() != 1 {
		t.Errorf("metrics: ok=%d failed=%d, want 1/1", ok.Load(), failed.Load())
	}
}

func TestNames_sorted(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	checker.Register("redis", func(context.Context) error { return nil })
	checker.Register("postgres", func(context.Context) error { return nil })

	names := checker.Names()
	if len(names) != 2 || names[0] != "postgres" || names[1] != "redis" {
		t.Errorf("unexpected names %v", names)
	}
}
