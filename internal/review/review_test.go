package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/errors"
)

func openTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	store := datastore.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedNight(t *testing.T, store datastore.Interface, date string) (clipID uint, detectionIDs []uint) {
	t.Helper()
	clip := &datastore.Clip{
		ClipURL: "http://cam/" + date + "/22/05.mp4",
		DateStr: date,
		Hour:    22,
		Minute:  5,
		Status:  datastore.StatusPending,
	}
	require.NoError(t, store.UpsertClip(clip))
	require.NoError(t, store.ReplaceDetections(clip.ID, []datastore.Detection{
		{X1: 10, Y1: 10, X2: 80, Y2: 80},
		{X1: 200, Y1: 50, X2: 300, Y2: 90},
	}))
	require.NoError(t, store.SetClipStatus(clip.ID, datastore.StatusDetected, map[string]any{
		"line_count": 2,
	}))
	require.NoError(t, store.UpsertNightOutput(&datastore.NightOutput{
		DateStr:        date,
		DetectionCount: 2,
	}))

	detections, err := store.GetDetections(clip.ID, false)
	require.NoError(t, err)
	for _, d := range detections {
		detectionIDs = append(detectionIDs, d.ID)
	}
	return clip.ID, detectionIDs
}

func TestListNightsHidesHidden(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	seedNight(t, store, "20260815")
	seedNight(t, store, "20260816")
	require.NoError(t, svc.SetNightHidden("20260815", true))

	visible, err := svc.ListNights(false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "20260816", visible[0].DateStr)

	all, err := svc.ListNights(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetNightIncludesExcludedClips(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	clipID, _ := seedNight(t, store, "20260815")
	require.NoError(t, store.SetClipExcluded(clipID, true))

	detail, err := svc.GetNight("20260815")
	require.NoError(t, err)
	require.Len(t, detail.Clips, 1, "excluded clips stay visible for un-excluding")
	assert.True(t, detail.Clips[0].Clip.Excluded)
	assert.Len(t, detail.Clips[0].Detections, 2)
}

func TestSetDetectionExcludedRecountsNight(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	_, detectionIDs := seedNight(t, store, "20260815")
	require.NoError(t, svc.SetDetectionExcluded(detectionIDs[0], true))

	count, err := store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.SetDetectionExcluded(detectionIDs[0], false))
	count, err = store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSetClipExcluded(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	clipID, _ := seedNight(t, store, "20260815")
	require.NoError(t, svc.SetClipExcluded(clipID, true))

	count, err := store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSetNightDetectionsExcluded(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	seedNight(t, store, "20260815")
	require.NoError(t, svc.SetNightDetectionsExcluded("20260815", true))

	count, err := store.CountNightDetections("20260815")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteConcatVideo(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	videoPath := filepath.Join(t.TempDir(), "20260815_meteors.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("mp4"), 0o644))
	require.NoError(t, store.UpsertNightOutput(&datastore.NightOutput{
		DateStr:     "20260815",
		ConcatVideo: videoPath,
	}))

	require.NoError(t, svc.DeleteConcatVideo("20260815"))

	_, err := os.Stat(videoPath)
	assert.True(t, os.IsNotExist(err))
	night, err := store.GetNightOutput("20260815")
	require.NoError(t, err)
	assert.Empty(t, night.ConcatVideo)

	// Deleting again is fine: the row exists, the file is already gone.
	require.NoError(t, svc.DeleteConcatVideo("20260815"))

	err = svc.DeleteConcatVideo("20991231")
	assert.True(t, errors.IsNotFound(err))
}

func TestGetClip(t *testing.T) {
	store := openTestStore(t)
	svc := NewService(store, nil)

	clipID, _ := seedNight(t, store, "20260815")
	view, err := svc.GetClip(clipID)
	require.NoError(t, err)
	assert.Equal(t, clipID, view.Clip.ID)
	assert.Len(t, view.Detections, 2)

	_, err = svc.GetClip(9999)
	assert.True(t, errors.IsNotFound(err))
}
