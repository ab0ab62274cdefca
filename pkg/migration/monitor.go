package migration

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/opst/somigrate/pkg/loop"
)

// Drift is a result of planning all indices at once.
type Drift struct {
	CheckedAt time.Time
	Plans     []Plan

	// Err is the error from PlanAll. Plans may be partial.
	Err error
}

// Pending returns indices whose plan is not ActionNone, in order of Plans.
func (d Drift) Pending() []string {
	pending := []string{}
	for _, p := range d.Plans {
		if p.Action != ActionNone {
			pending = append(pending, p.Index)
		}
	}
	return pending
}

type AllPlanner interface {
	PlanAll(ctx context.Context) ([]Plan, error)
}

var _ AllPlanner = &Coordinator{}

// Monitor plans all indices periodically, and keeps the latest Drift.
//
// It never applies plans.
type Monitor struct {
	planner  AllPlanner
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu     sync.RWMutex
	latest *Drift
}

// NewMonitor creates Monitor.
//
// timeout bounds each round. Zero means no timeout. logger can be nil to discard logs.
func NewMonitor(planner AllPlanner, interval, timeout time.Duration, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Monitor{planner: planner, interval: interval, timeout: timeout, logger: logger}
}

// Run checks drift until ctx is done. It returns ctx.Err().
//
// Failures of rounds are kept in Drift.Err and do not stop Run.
func (m *Monitor) Run(ctx context.Context) error {
	opts := []loop.Option{}
	if 0 < m.timeout {
		opts = append(opts, loop.WithTimeout(m.timeout))
	}
	_, err := loop.Start(ctx, 0, func(ctx context.Context, round int) (int, loop.Next) {
		m.Check(ctx)
		return round + 1, loop.Continue(m.interval)
	}, opts...)
	return err
}

// Check runs one round, and returns its Drift.
func (m *Monitor) Check(ctx context.Context) Drift {
	plans, err := m.planner.PlanAll(ctx)
	d := Drift{CheckedAt: time.Now(), Plans: plans, Err: err}
	if err != nil {
		m.logger.Printf("drift check: %s", err)
	}
	if pending := d.Pending(); len(pending) != 0 {
		m.logger.Printf("drift check: indices to be migrated: %v", pending)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = &d
	return d
}

// Latest returns the Drift of the last round. It returns false before the first round.
func (m *Monitor) Latest() (Drift, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Drift{}, false
	}
	return *m.latest, true
}
