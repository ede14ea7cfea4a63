// model.go defines the persisted data model for clips, detections,
// night outputs and settings.
package datastore

import "time"

// Clip lifecycle statuses. The terminal set must not be regressed by a
// generic upsert; see DataStore.UpsertClip.
const (
	StatusPending     = "pending"
	StatusDownloaded  = "downloaded"
	StatusDetected    = "detected"
	StatusNoDetection = "no_detection"
	StatusError       = "error"
)

// IsTerminalStatus reports whether status belongs to the terminal set.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusDetected, StatusNoDetection, StatusError:
		return true
	}
	return false
}

// Clip represents one camera-recorded time slot of a night.
type Clip struct {
	ID             uint   `gorm:"primaryKey"`
	ClipURL        string `gorm:"uniqueIndex;not null"`
	DateStr        string `gorm:"index:idx_clips_date;not null"`
	Hour           int    `gorm:"not null"`
	Minute         int    `gorm:"not null"`
	LocalPath      string
	Status         string `gorm:"not null;default:pending;index:idx_clips_status"`
	DetectionImage string
	DetectedVideo  string // JSON array of extracted subclip paths
	LineCount      int    `gorm:"default:0"`
	Excluded       bool   `gorm:"default:false"`
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Detections []Detection `gorm:"foreignKey:ClipID;constraint:OnDelete:CASCADE"`
}

// Detection is one detected line segment within a clip.
type Detection struct {
	ID        uint `gorm:"primaryKey"`
	ClipID    uint `gorm:"not null;uniqueIndex:idx_detections_clip_line"`
	LineIndex int  `gorm:"not null;uniqueIndex:idx_detections_clip_line"`
	X1        int  `gorm:"not null"`
	Y1        int  `gorm:"not null"`
	X2        int  `gorm:"not null"`
	Y2        int  `gorm:"not null"`
	CropImage string
	Excluded  bool `gorm:"default:false"`
}

// NightOutput holds the per-night aggregate artifacts.
type NightOutput struct {
	ID             uint   `gorm:"primaryKey"`
	DateStr        string `gorm:"uniqueIndex;not null"`
	CompositeImage string
	ConcatVideo    string
	DetectionCount int  `gorm:"default:0"`
	Hidden         bool `gorm:"default:false"`
	LastUpdatedAt  time.Time
}

// Setting is a stored key/value override layered above the YAML baseline.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
