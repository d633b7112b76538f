package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// OperationMonitor logs slow and failed adapter operations and keeps
// per-operation timing statistics.
type OperationMonitor struct {
	logger       *slog.Logger
	warningRatio float64 // Warn when execution reaches this share of the timeout

	mu    sync.Mutex
	stats map[string]*OperationStats
}

// OperationStats tracks executions of one named operation
type OperationStats struct {
	Operation       string
	TotalExecutions int
	FailureCount    int
	TimeoutCount    int
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

// NewOperationMonitor creates a monitor with default settings
func NewOperationMonitor(logger *slog.Logger) *OperationMonitor {
	if logger == nil {
		logger = slog.Default().With("component", "operation_monitor")
	}
	return &OperationMonitor{
		logger:       logger,
		warningRatio: 0.8,
		stats:        make(map[string]*OperationStats),
	}
}

// Observe records one finished operation and logs it
func (m *OperationMonitor) Observe(operation string, timeout, duration time.Duration, err error) {
	timedOut := errors.Is(err, context.DeadlineExceeded)
	m.record(operation, duration, err != nil, timedOut)

	switch {
	case timedOut:
		m.logger.Error("operation timed out",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", timeout.Seconds())
	case err != nil:
		m.logger.Warn("operation failed",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"error", err)
	case timeout > 0 && duration >= time.Duration(float64(timeout)*m.warningRatio):
		m.logger.Warn("operation approaching timeout",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", timeout.Seconds(),
			"percent_used", duration.Seconds()/timeout.Seconds()*100)
	default:
		m.logger.Debug("operation completed",
			"operation", operation,
			"duration_seconds", duration.Seconds())
	}
}

func (m *OperationMonitor) record(operation string, duration time.Duration, failed, timedOut bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats[operation]
	if s == nil {
		s = &OperationStats{Operation: operation}
		m.stats[operation] = s
	}
	s.TotalExecutions++
	if failed {
		s.FailureCount++
	}
	if timedOut {
		s.TimeoutCount++
	}
	total := s.AverageDuration.Nanoseconds()*int64(s.TotalExecutions-1) + duration.Nanoseconds()
	s.AverageDuration = time.Duration(total / int64(s.TotalExecutions))
	if duration > s.MaxDuration {
		s.MaxDuration = duration
	}
}

// Stats returns a copy of the statistics for one operation
func (m *OperationMonitor) Stats(operation string) (OperationStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[operation]
	if !ok {
		return OperationStats{}, false
	}
	return *s, true
}

// LogSummary logs every collected statistic
func (m *OperationMonitor) LogSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stats) == 0 {
		m.logger.Info("no operation statistics collected")
		return
	}
	for operation, s := range m.stats {
		m.logger.Info("operation stats",
			"operation", operation,
			"total_executions", s.TotalExecutions,
			"failure_count", s.FailureCount,
			"timeout_count", s.TimeoutCount,
			"avg_duration_seconds", s.AverageDuration.Seconds(),
			"max_duration_seconds", s.MaxDuration.Seconds())
	}
}
