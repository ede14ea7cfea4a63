package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newClip(url, date string, hour, minute int) *Clip {
	return &Clip{
		ClipURL: url,
		DateStr: date,
		Hour:    hour,
		Minute:  minute,
		Status:  StatusPending,
	}
}

func TestUpsertClipCreatesAndUpdates(t *testing.T) {
	store := openTestStore(t)

	clip := newClip("http://cam/20260815/22/05.mp4", "20260815", 22, 5)
	require.NoError(t, store.UpsertClip(clip))
	assert.NotZero(t, clip.ID)

	// Same URL again must update, not duplicate.
	again := newClip("http://cam/20260815/22/05.mp4", "20260815", 22, 5)
	again.Status = StatusDownloaded
	again.LocalPath = "/tmp/05.mp4"
	require.NoError(t, store.UpsertClip(again))
	assert.Equal(t, clip.ID, again.ID)

	stored, err := store.GetClip(clip.ClipURL)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, stored.Status)
	assert.Equal(t, "/tmp/05.mp4", stored.LocalPath)

	clips, err := store.GetClipsForNight("20260815")
	require.NoError(t, err)
	assert.Len(t, clips, 1)
}

func TestUpsertClipPreservesTerminalStatus(t *testing.T) {
	store := openTestStore(t)

	clip := newClip("http://cam/20260815/23/10.mp4", "20260815", 23, 10)
	require.NoError(t, store.UpsertClip(clip))
	require.NoError(t, store.SetClipStatus(clip.ID, StatusDetected, nil))

	// A later generic upsert must not regress the terminal status.
	again := newClip(clip.ClipURL, "20260815", 23, 10)
	require.NoError(t, store.UpsertClip(again))

	stored, err := store.GetClip(clip.ClipURL)
	require.NoError(t, err)
	assert.Equal(t, StatusDetected, stored.Status)

	// An explicit transition still overrides it.
	require.NoError(t, store.SetClipStatus(clip.ID, StatusNoDetection, nil))
	stored, err = store.GetClip(clip.ClipURL)
	require.NoError(t, err)
	assert.Equal(t, StatusNoDetection, stored.Status)
}

func TestSetClipStatusFields(t *testing.T) {
	store := openTestStore(t)

	clip := newClip("http://cam/20260815/22/30.mp4", "20260815", 22, 30)
	require.NoError(t, store.UpsertClip(clip))

	require.NoError(t, store.SetClipStatus(clip.ID, StatusDetected, map[string]any{
		"detection_image": "/out/30_detect.png",
		"line_count":      2,
		"ignored_column":  "nope",
	}))

	stored, err := store.GetClipByID(clip.ID)
	require.NoError(t, err)
	assert.Equal(t, "/out/30_detect.png", stored.DetectionImage)
	assert.Equal(t, 2, stored.LineCount)
}

func TestSetClipStatusUnknownClip(t *testing.T) {
	store := openTestStore(t)
	err := store.SetClipStatus(9999, StatusError, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestReplaceDetectionsReindexes(t *testing.T) {
	store := openTestStore(t)

	clip := newClip("http://cam/20260815/22/40.mp4", "20260815", 22, 40)
	require.NoError(t, store.UpsertClip(clip))

	first := []Detection{
		{LineIndex: 7, X1: 1, Y1: 1, X2: 50, Y2: 50},
		{LineIndex: 9, X1: 2, Y1: 2, X2: 60, Y2: 60},
	}
	require.NoError(t, store.ReplaceDetections(clip.ID, first))

	stored, err := store.GetDetections(clip.ID, false)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].LineIndex)
	assert.Equal(t, 1, stored[1].LineIndex)

	// Wholesale replacement discards the old rows.
	require.NoError(t, store.ReplaceDetections(clip.ID, []Detection{{X1: 5, Y1: 5, X2: 99, Y2: 99}}))
	stored, err = store.GetDetections(clip.ID, false)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 99, stored[0].X2)

	require.NoError(t, store.ReplaceDetections(clip.ID, nil))
	stored, err = store.GetDetections(clip.ID, false)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCountNightDetectionsRespectsExclusions(t *testing.T) {
	store := openTestStore(t)

	clipA := newClip("http://cam/20260815/22/01.mp4", "20260815", 22, 1)
	require.NoError(t, store.UpsertClip(clipA))
	require.NoError(t, store.SetClipStatus(clipA.ID, StatusDetected, nil))
	require.NoError(t, store.ReplaceDetections(clipA.ID, []Detection{
		{X1: 0, Y1: 0, X2: 40, Y2: 40},
		{X1: 10, Y1: 10, X2: 80, Y2: 80},
	}))

	clipB := newClip("http://cam/20260816/03/02.mp4", "20260815", 3, 2)
	require.NoError(t, store.UpsertClip(clipB))
	require.NoError(t, store.SetClipStatus(clipB.ID, StatusDetected, nil))
	require.NoError(t, store.ReplaceDetections(clipB.ID, []Detection{
		{X1: 0, Y1: 0, X2: 30, Y2: 30},
	}))

	count, err := store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Excluding one detection drops the count by one.
	detections, err := store.GetDetections(clipA.ID, false)
	require.NoError(t, err)
	require.NoError(t, store.SetDetectionExcluded(detections[0].ID, true))
	count, err = store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Excluding a whole clip drops its remaining detections too.
	require.NoError(t, store.SetClipExcluded(clipA.ID, true))
	count, err = store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Bulk night exclusion zeroes the count.
	require.NoError(t, store.SetNightDetectionsExcluded("20260815", true))
	count, err = store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Undoing the bulk exclusion restores clip B's detection; clip A stays
	// out because the clip itself is still excluded.
	require.NoError(t, store.SetNightDetectionsExcluded("20260815", false))
	count, err = store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetDetectedClips(t *testing.T) {
	store := openTestStore(t)

	detected := newClip("http://cam/a.mp4", "20260815", 22, 0)
	require.NoError(t, store.UpsertClip(detected))
	require.NoError(t, store.SetClipStatus(detected.ID, StatusDetected, nil))

	excluded := newClip("http://cam/b.mp4", "20260815", 23, 0)
	require.NoError(t, store.UpsertClip(excluded))
	require.NoError(t, store.SetClipStatus(excluded.ID, StatusDetected, nil))
	require.NoError(t, store.SetClipExcluded(excluded.ID, true))

	plain := newClip("http://cam/c.mp4", "20260815", 23, 30)
	require.NoError(t, store.UpsertClip(plain))
	require.NoError(t, store.SetClipStatus(plain.ID, StatusNoDetection, nil))

	clips, err := store.GetDetectedClips("20260815", false)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, detected.ID, clips[0].ID)

	clips, err = store.GetDetectedClips("20260815", true)
	require.NoError(t, err)
	assert.Len(t, clips, 2)
}

func TestNightOutputs(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertNightOutput(&NightOutput{
		DateStr:        "20260815",
		CompositeImage: "/out/20260815_composite.png",
		ConcatVideo:    "/out/20260815_meteors.mp4",
		DetectionCount: 4,
	}))
	require.NoError(t, store.UpsertNightOutput(&NightOutput{
		DateStr:        "20260816",
		DetectionCount: 1,
	}))

	// Upsert by date updates in place.
	require.NoError(t, store.UpsertNightOutput(&NightOutput{
		DateStr:        "20260815",
		CompositeImage: "/out/20260815_composite.png",
		ConcatVideo:    "/out/20260815_meteors.mp4",
		DetectionCount: 5,
	}))

	night, err := store.GetNightOutput("20260815")
	require.NoError(t, err)
	assert.Equal(t, 5, night.DetectionCount)

	nights, err := store.GetAllNights()
	require.NoError(t, err)
	require.Len(t, nights, 2)
	assert.Equal(t, "20260816", nights[0].DateStr, "newest first")

	require.NoError(t, store.SetNightHidden("20260816", true))
	visible, err := store.GetVisibleNights()
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "20260815", visible[0].DateStr)

	require.NoError(t, store.ClearConcatVideo("20260815"))
	night, err = store.GetNightOutput("20260815")
	require.NoError(t, err)
	assert.Empty(t, night.ConcatVideo)

	_, err = store.GetNightOutput("20991231")
	assert.True(t, errors.IsNotFound(err))
}

func TestSettings(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSetting("schedule.start_time")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, store.SetSetting("schedule.start_time", "21:30"))
	require.NoError(t, store.SetSetting("schedule.start_time", "20:45"))

	value, err := store.GetSetting("schedule.start_time")
	require.NoError(t, err)
	assert.Equal(t, "20:45", value)

	require.NoError(t, store.SetManySettings(map[string]string{
		"schedule.end_time":     "05:00",
		"system.reboot_enabled": "true",
		"schedule.interval_min": "10",
	}))

	all, err := store.GetAllSettings()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	deleted, err := store.DeleteSettingsByPrefix("schedule.")
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	_, err = store.GetSetting("schedule.end_time")
	assert.True(t, errors.IsNotFound(err))
	value, err = store.GetSetting("system.reboot_enabled")
	require.NoError(t, err)
	assert.Equal(t, "true", value)
}
