// interfaces.go defines the interface for the state store operations.
package datastore

import (
	"log/slog"
	"sync"

	"github.com/skymonitor/meteor-go/internal/logging"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Clips
	UpsertClip(clip *Clip) error
	SetClipStatus(clipID uint, status string, fields map[string]any) error
	GetClip(clipURL string) (*Clip, error)
	GetClipByID(clipID uint) (*Clip, error)
	GetClipsForNight(dateStr string) ([]Clip, error)
	GetDetectedClips(dateStr string, includeExcluded bool) ([]Clip, error)
	SetClipExcluded(clipID uint, excluded bool) error

	// Detections
	ReplaceDetections(clipID uint, detections []Detection) error
	GetDetections(clipID uint, includedOnly bool) ([]Detection, error)
	GetDetectionByID(detectionID uint) (*Detection, error)
	SetDetectionExcluded(detectionID uint, excluded bool) error
	SetAllDetectionsExcluded(clipID uint, excluded bool) error
	SetNightDetectionsExcluded(dateStr string, excluded bool) error
	CountNightDetections(dateStr string) (int, error)

	// Night outputs
	UpsertNightOutput(output *NightOutput) error
	GetNightOutput(dateStr string) (*NightOutput, error)
	GetAllNights() ([]NightOutput, error)
	GetVisibleNights() ([]NightOutput, error)
	SetNightHidden(dateStr string, hidden bool) error
	ClearConcatVideo(dateStr string) error

	// Settings
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	SetManySettings(items map[string]string) error
	GetAllSettings() (map[string]string, error)
	DeleteSettingsByPrefix(prefix string) (int64, error)
}

var (
	storeLogger   *slog.Logger
	storeLevelVar = new(slog.LevelVar)
	loggerOnce    sync.Once
)

// logger returns the datastore file logger, initializing it on first use.
func logger() *slog.Logger {
	loggerOnce.Do(func() {
		storeLevelVar.Set(slog.LevelInfo)
		storeLogger, _ = logging.ForService("datastore", storeLevelVar)
	})
	return storeLogger
}
