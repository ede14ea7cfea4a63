package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// UpsertClip creates a clip or updates the row with the same URL. A clip
// that already reached a terminal status keeps it: a generic progress write
// must never regress detected/no_detection/error back to pending or
// downloaded. Use SetClipStatus for explicit transitions.
func (ds *DataStore) UpsertClip(clip *Clip) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing Clip
		err := tx.Where("clip_url = ?", clip.ClipURL).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if clip.Status == "" {
				clip.Status = StatusPending
			}
			if err := tx.Create(clip).Error; err != nil {
				return dbError(fmt.Errorf("creating clip %s: %w", clip.ClipURL, err))
			}
			return nil
		case err != nil:
			return dbError(fmt.Errorf("looking up clip %s: %w", clip.ClipURL, err))
		}

		updates := map[string]any{
			"date_str": clip.DateStr,
			"hour":     clip.Hour,
			"minute":   clip.Minute,
		}
		if clip.LocalPath != "" {
			updates["local_path"] = clip.LocalPath
		}
		if clip.Status != "" && !IsTerminalStatus(existing.Status) {
			updates["status"] = clip.Status
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return dbError(fmt.Errorf("updating clip %s: %w", clip.ClipURL, err))
		}
		clip.ID = existing.ID
		return nil
	})
}

// SetClipStatus performs an explicit, unconditional status transition and
// applies the given optional column updates in the same write.
func (ds *DataStore) SetClipStatus(clipID uint, status string, fields map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range fields {
		switch k {
		case "detection_image", "detected_video", "line_count", "error_message", "local_path":
			updates[k] = v
		}
	}
	result := ds.DB.Model(&Clip{}).Where("id = ?", clipID).Updates(updates)
	if result.Error != nil {
		return dbError(fmt.Errorf("updating clip %d status: %w", clipID, result.Error))
	}
	if result.RowsAffected == 0 {
		return notFoundError(fmt.Errorf("clip %d not found", clipID))
	}
	return nil
}

// GetClip returns the clip with the given source URL.
func (ds *DataStore) GetClip(clipURL string) (*Clip, error) {
	var clip Clip
	if err := ds.DB.Where("clip_url = ?", clipURL).First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(fmt.Errorf("clip %s not found", clipURL))
		}
		return nil, dbError(err)
	}
	return &clip, nil
}

// GetClipByID returns the clip with the given row ID.
func (ds *DataStore) GetClipByID(clipID uint) (*Clip, error) {
	var clip Clip
	if err := ds.DB.First(&clip, clipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(fmt.Errorf("clip %d not found", clipID))
		}
		return nil, dbError(err)
	}
	return &clip, nil
}

// GetClipsForNight returns all clips of a night in slot order.
func (ds *DataStore) GetClipsForNight(dateStr string) ([]Clip, error) {
	var clips []Clip
	if err := ds.DB.Where("date_str = ?", dateStr).
		Order("hour, minute").
		Find(&clips).Error; err != nil {
		return nil, dbError(err)
	}
	return clips, nil
}

// GetDetectedClips returns the detected clips of a night in slot order,
// optionally including clips the curator excluded.
func (ds *DataStore) GetDetectedClips(dateStr string, includeExcluded bool) ([]Clip, error) {
	q := ds.DB.Where("date_str = ? AND status = ?", dateStr, StatusDetected)
	if !includeExcluded {
		q = q.Where("excluded = ?", false)
	}
	var clips []Clip
	if err := q.Order("hour, minute").Find(&clips).Error; err != nil {
		return nil, dbError(err)
	}
	return clips, nil
}

// SetClipExcluded sets the curation flag on a clip.
func (ds *DataStore) SetClipExcluded(clipID uint, excluded bool) error {
	result := ds.DB.Model(&Clip{}).Where("id = ?", clipID).Update("excluded", excluded)
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(fmt.Errorf("clip %d not found", clipID))
	}
	return nil
}

func dbError(err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

func notFoundError(err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
}
