package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/detection"
	"github.com/skymonitor/meteor-go/internal/downloader"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/pipeline"
)

func openTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	store := datastore.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// cycleSettings builds a fixed observation window covering the current
// instant regardless of the wall clock, with an unreachable camera so an
// unexpected pipeline run leaves visible store rows instead of real
// downloads.
func cycleSettings(t *testing.T, intervalMinutes int) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	return &conf.Settings{
		Camera: conf.CameraSettings{
			Host:       "127.0.0.1:1",
			BasePath:   "sdcard/record",
			TimeoutSec: 1,
			RetryCount: 1,
		},
		Schedule: conf.ScheduleSettings{
			StartMode:       conf.ModeFixed,
			StartTime:       "12:00",
			EndMode:         conf.ModeFixed,
			EndTime:         "11:59",
			IntervalMinutes: intervalMinutes,
		},
		Paths: conf.PathsSettings{
			DownloadDir: filepath.Join(dir, "downloads"),
			OutputDir:   filepath.Join(dir, "output"),
			LockPath:    filepath.Join(dir, "run.lock"),
		},
	}
}

func newCycleScheduler(t *testing.T, settings *conf.Settings, store datastore.Interface) *Scheduler {
	t.Helper()
	pipe := pipeline.New(
		settings,
		store,
		downloader.New(settings.Camera),
		detection.New(settings.Detection),
		nil,
		nil,
	)
	return New(settings, store, pipe)
}

func assertNightUntouched(t *testing.T, store datastore.Interface, night string) {
	t.Helper()
	_, err := store.GetNightOutput(night)
	assert.True(t, errors.IsNotFound(err), "no night row may be written")
	clips, err := store.GetClipsForNight(night)
	require.NoError(t, err)
	assert.Empty(t, clips)
}

func TestCycleZeroIntervalDoesNotFire(t *testing.T) {
	store := openTestStore(t)
	sched := newCycleScheduler(t, cycleSettings(t, 0), store)

	wait := sched.cycle(context.Background())

	assert.Contains(t, []time.Duration{zeroIntervalRecheck, idleRecheck}, wait,
		"interval 0 yields a recheck wait, never a run")
	assertNightUntouched(t, store, pipeline.ResolveNight(time.Now()))
}

func TestCycleSkipsWhileLockHeld(t *testing.T) {
	settings := cycleSettings(t, 5)
	store := openTestStore(t)
	sched := newCycleScheduler(t, settings, store)

	lock, err := AcquireLock(settings.Paths.LockPath)
	require.NoError(t, err)
	defer lock.Release() //nolint:errcheck // test cleanup

	wait := sched.cycle(context.Background())

	assert.Equal(t, 5*time.Minute, wait, "a skipped cycle still waits the interval")
	assertNightUntouched(t, store, pipeline.ResolveNight(time.Now()))
}
