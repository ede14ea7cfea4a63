// Package scheduler drives unattended operation: it watches the observation
// window, runs the pipeline at the configured cadence while the window is
// open, and optionally reboots the host once a day outside the window.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/logging"
	"github.com/skymonitor/meteor-go/internal/pipeline"
)

const (
	// idleRecheck is the poll cadence while the observation window is closed.
	idleRecheck = 5 * time.Minute
	// zeroIntervalRecheck is the poll cadence inside the window when no run
	// interval is configured.
	zeroIntervalRecheck = time.Minute
	// rebootSlack is how far around the configured reboot time the daily
	// reboot may fire.
	rebootSlack = 5 * time.Minute
)

var (
	schedLogger *slog.Logger
	levelVar    = new(slog.LevelVar)
	loggerOnce  sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		schedLogger, _ = logging.ForService("scheduler", levelVar)
	})
	return schedLogger
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running         bool      `json:"running"`
	InWindow        bool      `json:"in_window"`
	Night           string    `json:"night"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	IntervalMinutes int       `json:"interval_minutes"`
	LastRunAt       time.Time `json:"last_run_at"`
	NextCheckAt     time.Time `json:"next_check_at"`
	RebootEnabled   bool      `json:"reboot_enabled"`
	RebootTime      string    `json:"reboot_time"`
}

// Scheduler runs the pipeline on a cadence bound to the observation window.
type Scheduler struct {
	cfg   *conf.Settings
	store datastore.Interface
	pipe  *pipeline.Pipeline

	mu           sync.RWMutex
	status       Status
	lastRebooted string // date of the last reboot attempt, YYYYMMDD
}

// New creates a Scheduler driving the given pipeline.
func New(cfg *conf.Settings, store datastore.Interface, pipe *pipeline.Pipeline) *Scheduler {
	return &Scheduler{cfg: cfg, store: store, pipe: pipe}
}

// Status returns the current scheduler snapshot.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) setStatus(update func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.status)
}

// Run loops until ctx is cancelled. Each cycle re-resolves the night and
// its window from the layered settings, so configuration edits apply on
// the next cycle. Inside the window the pipeline runs every interval; a
// zero interval disables scheduled runs, leaving the night to manual runs
// while the window is still polled every minute. Outside the window the
// scheduler idles, firing the daily reboot when due.
func (s *Scheduler) Run(ctx context.Context) error {
	logger().Info("Scheduler started")
	for {
		wait := s.cycle(ctx)
		s.setStatus(func(st *Status) { st.NextCheckAt = time.Now().Add(wait) })
		select {
		case <-ctx.Done():
			logger().Info("Scheduler stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// cycle performs one scheduling decision and returns how long to wait
// before the next one.
func (s *Scheduler) cycle(ctx context.Context) time.Duration {
	now := time.Now()
	night := pipeline.ResolveNight(now)
	schedule := s.pipe.Windows().Schedule()

	window, err := s.pipe.Windows().Resolve(night)
	if err != nil {
		logger().Error("Failed to resolve observation window", "night", night, "error", err)
		return idleRecheck
	}

	interval := time.Duration(schedule.IntervalMinutes) * time.Minute

	// One extra interval past the window end lets a final run pick up the
	// last clips recorded before the window closed.
	effectiveEnd := window.End.Add(interval)
	inWindow := !now.Before(window.Start) && now.Before(effectiveEnd)

	s.setStatus(func(st *Status) {
		st.Running = true
		st.InWindow = inWindow
		st.Night = night
		st.WindowStart = window.Start
		st.WindowEnd = window.End
		st.IntervalMinutes = schedule.IntervalMinutes
		st.RebootEnabled, st.RebootTime = s.rebootSettings()
	})

	if !inWindow {
		s.maybeReboot(now)
		return idleRecheck
	}

	// Interval 0 disables scheduled runs: the window is only polled so a
	// settings change takes effect on the next cycle.
	if interval <= 0 {
		return zeroIntervalRecheck
	}

	s.runOnce(ctx, night)
	return interval
}

// runOnce runs the pipeline for one night under the cross-process run lock.
// A held lock means another process (likely a manual run) is already
// working the night; the cycle is skipped with a log line, not an error.
func (s *Scheduler) runOnce(ctx context.Context, night string) {
	lock, err := AcquireLock(conf.ExpandPath(s.cfg.Paths.LockPath))
	if err != nil {
		if IsLockHeld(err) {
			logger().Info("Run lock held elsewhere, skipping cycle", "night", night)
			return
		}
		logger().Error("Failed to acquire run lock", "error", err)
		return
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger().Warn("Failed to release run lock", "error", err)
		}
	}()

	result, err := s.pipe.Run(ctx, night, false)
	s.setStatus(func(st *Status) { st.LastRunAt = time.Now() })
	if err != nil {
		logger().Error("Pipeline run failed", "night", night, "error", err)
		return
	}
	logger().Info("Cycle complete",
		"night", night,
		"processed", result.ClipsProcessed,
		"detected", result.ClipsDetected,
		"errors", result.ClipErrors)
}

// rebootSettings layers stored overrides over the YAML baseline.
func (s *Scheduler) rebootSettings() (enabled bool, clock string) {
	enabled = s.cfg.System.RebootEnabled
	clock = s.cfg.System.RebootTime
	if s.store == nil {
		return enabled, clock
	}
	if v, err := s.store.GetSetting("system.reboot_enabled"); err == nil {
		if b, err := strconv.ParseBool(v); err == nil {
			enabled = b
		}
	}
	if v, err := s.store.GetSetting("system.reboot_time"); err == nil {
		clock = v
	}
	return enabled, clock
}

// maybeReboot reboots the host at most once a day, only outside the
// observation window and only within the slack around the configured time.
// The reboot command is best effort; a failure is logged and retried the
// next day.
func (s *Scheduler) maybeReboot(now time.Time) {
	enabled, clock := s.rebootSettings()
	if !enabled || clock == "" {
		return
	}

	today := now.Format(pipeline.DateLayout)
	s.mu.RLock()
	done := s.lastRebooted == today
	s.mu.RUnlock()
	if done {
		return
	}

	var hour, minute int
	if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil {
		logger().Warn("Invalid reboot time", "value", clock)
		return
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(target.Add(-rebootSlack)) || now.After(target.Add(rebootSlack)) {
		return
	}

	s.mu.Lock()
	s.lastRebooted = today
	s.mu.Unlock()

	logger().Info("Rebooting host", "scheduled", clock)
	if out, err := exec.Command("sudo", "reboot").CombinedOutput(); err != nil {
		logger().Error("Reboot command failed", "error", err, "output", string(out))
	}
}
