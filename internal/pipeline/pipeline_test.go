package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/detection"
	"github.com/skymonitor/meteor-go/internal/downloader"
	"github.com/skymonitor/meteor-go/internal/frame"
	"github.com/skymonitor/meteor-go/internal/hooks"
	"github.com/skymonitor/meteor-go/internal/observability"
)

func openTestStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	store := datastore.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestPipeline(t *testing.T, store datastore.Interface) *Pipeline {
	t.Helper()
	settings := fixedSettings("22:00", "06:00")
	settings.Paths = conf.PathsSettings{
		DownloadDir: filepath.Join(t.TempDir(), "downloads"),
		OutputDir:   filepath.Join(t.TempDir(), "output"),
	}
	return New(
		settings,
		store,
		downloader.New(settings.Camera),
		detection.New(settings.Detection),
		hooks.NewRunner(),
		observability.NewMetrics(),
	)
}

// writeDetectionImage saves a black frame with one bright pixel and returns
// its path.
func writeDetectionImage(t *testing.T, dir, name string, x, y int) string {
	t.Helper()
	img := frame.NewGray(640, 360)
	img.Pix[y*img.Stride+x] = 255
	path := filepath.Join(dir, name)
	require.NoError(t, frame.Save(path, img))
	return path
}

func seedDetectedClip(t *testing.T, store datastore.Interface, url, date string, hour, minute int, imagePath string, lines []datastore.Detection) *datastore.Clip {
	t.Helper()
	clip := &datastore.Clip{
		ClipURL: url,
		DateStr: date,
		Hour:    hour,
		Minute:  minute,
		Status:  datastore.StatusPending,
	}
	require.NoError(t, store.UpsertClip(clip))
	require.NoError(t, store.ReplaceDetections(clip.ID, lines))
	require.NoError(t, store.SetClipStatus(clip.ID, datastore.StatusDetected, map[string]any{
		"detection_image": imagePath,
		"line_count":      len(lines),
	}))
	return clip
}

func TestRebuildOutputsComposite(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)
	dir := t.TempDir()

	imgA := writeDetectionImage(t, dir, "a.png", 100, 100)
	imgB := writeDetectionImage(t, dir, "b.png", 500, 200)

	seedDetectedClip(t, store, "http://cam/a.mp4", "20260815", 22, 1, imgA,
		[]datastore.Detection{{X1: 90, Y1: 90, X2: 110, Y2: 110}})
	seedDetectedClip(t, store, "http://cam/b.mp4", "20260815", 23, 2, imgB,
		[]datastore.Detection{{X1: 490, Y1: 190, X2: 510, Y2: 210}})

	night, err := p.RebuildOutputs(context.Background(), "20260815")
	require.NoError(t, err)
	assert.Equal(t, 2, night.DetectionCount)
	require.NotEmpty(t, night.CompositeImage)
	assert.Empty(t, night.ConcatVideo, "no subclips on disk means no video")

	composite, err := frame.LoadGray(night.CompositeImage)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), composite.GrayAt(100, 100).Y)
	assert.Equal(t, uint8(255), composite.GrayAt(500, 200).Y)
}

func TestRebuildOutputsSkipsExcludedClip(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)
	dir := t.TempDir()

	imgA := writeDetectionImage(t, dir, "a.png", 100, 100)
	imgB := writeDetectionImage(t, dir, "b.png", 500, 200)

	seedDetectedClip(t, store, "http://cam/a.mp4", "20260815", 22, 1, imgA,
		[]datastore.Detection{{X1: 90, Y1: 90, X2: 110, Y2: 110}})
	drop := seedDetectedClip(t, store, "http://cam/b.mp4", "20260815", 23, 2, imgB,
		[]datastore.Detection{{X1: 490, Y1: 190, X2: 510, Y2: 210}})
	require.NoError(t, store.SetClipExcluded(drop.ID, true))

	night, err := p.RebuildOutputs(context.Background(), "20260815")
	require.NoError(t, err)
	assert.Equal(t, 1, night.DetectionCount)

	composite, err := frame.LoadGray(night.CompositeImage)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), composite.GrayAt(100, 100).Y)
	assert.Equal(t, uint8(0), composite.GrayAt(500, 200).Y, "the excluded clip must not contribute")
}

func TestRebuildOutputsBlacksOutExcludedDetection(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)
	dir := t.TempDir()

	// One clip, two streaks far apart; one gets excluded.
	img := frame.NewGray(640, 360)
	img.Pix[100*img.Stride+100] = 255
	img.Pix[200*img.Stride+500] = 255
	imgPath := filepath.Join(dir, "c.png")
	require.NoError(t, frame.Save(imgPath, img))

	clip := seedDetectedClip(t, store, "http://cam/c.mp4", "20260815", 22, 5, imgPath,
		[]datastore.Detection{
			{X1: 90, Y1: 90, X2: 110, Y2: 110},
			{X1: 490, Y1: 190, X2: 510, Y2: 210},
		})

	detections, err := store.GetDetections(clip.ID, false)
	require.NoError(t, err)
	require.NoError(t, store.SetDetectionExcluded(detections[1].ID, true))

	night, err := p.RebuildOutputs(context.Background(), "20260815")
	require.NoError(t, err)
	assert.Equal(t, 1, night.DetectionCount)

	composite, err := frame.LoadGray(night.CompositeImage)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), composite.GrayAt(100, 100).Y)
	assert.Equal(t, uint8(0), composite.GrayAt(500, 200).Y, "the excluded streak's region is blacked out")
}

func TestRebuildOutputsEmptyNightClearsArtifacts(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)

	night, err := p.RebuildOutputs(context.Background(), "20260820")
	require.NoError(t, err)
	assert.Empty(t, night.CompositeImage)
	assert.Empty(t, night.ConcatVideo)
	assert.Zero(t, night.DetectionCount)
}

func TestRefreshNightRecountsWithoutTouchingArtifacts(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)
	dir := t.TempDir()

	imgA := writeDetectionImage(t, dir, "a.png", 100, 100)
	clip := seedDetectedClip(t, store, "http://cam/a.mp4", "20260815", 22, 1, imgA,
		[]datastore.Detection{{X1: 90, Y1: 90, X2: 110, Y2: 110}})

	night, err := p.RebuildOutputs(context.Background(), "20260815")
	require.NoError(t, err)
	require.Equal(t, 1, night.DetectionCount)
	compositePath := night.CompositeImage

	require.NoError(t, store.SetClipExcluded(clip.ID, true))
	refreshed, err := p.RefreshNight("20260815")
	require.NoError(t, err)

	assert.Zero(t, refreshed.DetectionCount)
	assert.Equal(t, compositePath, refreshed.CompositeImage, "refresh keeps the stored artifact path")
	assert.FileExists(t, compositePath)
}

func TestEncodeDecodeVideoList(t *testing.T) {
	assert.Empty(t, encodeVideoList(nil))
	assert.Nil(t, decodeVideoList(""))

	encoded := encodeVideoList([]string{"/out/a_meteor.mp4", "/out/b_meteor.mp4"})
	require.NotEmpty(t, encoded)
	assert.Equal(t, []string{"/out/a_meteor.mp4", "/out/b_meteor.mp4"}, decodeVideoList(encoded))

	assert.Nil(t, decodeVideoList("{broken"))
}

func TestProcessClipKeepsTerminalStatusOnDownloadFailure(t *testing.T) {
	store := openTestStore(t)
	p := newTestPipeline(t, store)
	dir := t.TempDir()

	img := writeDetectionImage(t, dir, "a.png", 100, 100)
	clip := seedDetectedClip(t, store, "http://cam/20260815/22/05.mp4", "20260815", 22, 5, img,
		[]datastore.Detection{{X1: 90, Y1: 90, X2: 110, Y2: 110}})

	// The same clip shows up again on a later cycle, this time failing to
	// download.
	result := &RunResult{DateStr: "20260815"}
	ref := downloader.ClipRef{URL: clip.ClipURL, Minute: 5, Err: errors.New("connection refused")}
	p.processClip(context.Background(), "20260815", 22, ref, result)

	stored, err := store.GetClip(clip.ClipURL)
	require.NoError(t, err)
	assert.Equal(t, datastore.StatusDetected, stored.Status, "a processed clip keeps its outcome")
	assert.Equal(t, 1, stored.LineCount)
	assert.Zero(t, result.ClipErrors)
}
