package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// ReplaceDetections atomically replaces all detection rows of a clip.
// Redetect calls this to discard stale line records in the same
// transaction that writes the fresh ones.
func (ds *DataStore) ReplaceDetections(clipID uint, detections []Detection) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Clip{}).Where("id = ?", clipID).Count(&count).Error; err != nil {
			return dbError(err)
		}
		if count == 0 {
			return notFoundError(fmt.Errorf("clip %d not found", clipID))
		}

		if err := tx.Where("clip_id = ?", clipID).Delete(&Detection{}).Error; err != nil {
			return dbError(fmt.Errorf("deleting detections for clip %d: %w", clipID, err))
		}
		for i := range detections {
			detections[i].ID = 0
			detections[i].ClipID = clipID
			detections[i].LineIndex = i
		}
		if len(detections) > 0 {
			if err := tx.Create(&detections).Error; err != nil {
				return dbError(fmt.Errorf("inserting detections for clip %d: %w", clipID, err))
			}
		}
		return nil
	})
}

// GetDetections returns a clip's detections in line order.
func (ds *DataStore) GetDetections(clipID uint, includedOnly bool) ([]Detection, error) {
	q := ds.DB.Where("clip_id = ?", clipID)
	if includedOnly {
		q = q.Where("excluded = ?", false)
	}
	var detections []Detection
	if err := q.Order("line_index").Find(&detections).Error; err != nil {
		return nil, dbError(err)
	}
	return detections, nil
}

// GetDetectionByID returns a single detection row.
func (ds *DataStore) GetDetectionByID(detectionID uint) (*Detection, error) {
	var det Detection
	if err := ds.DB.First(&det, detectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(fmt.Errorf("detection %d not found", detectionID))
		}
		return nil, dbError(err)
	}
	return &det, nil
}

// SetDetectionExcluded sets the curation flag on one detection.
func (ds *DataStore) SetDetectionExcluded(detectionID uint, excluded bool) error {
	result := ds.DB.Model(&Detection{}).Where("id = ?", detectionID).Update("excluded", excluded)
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(fmt.Errorf("detection %d not found", detectionID))
	}
	return nil
}

// SetAllDetectionsExcluded sets the flag on every detection of a clip.
func (ds *DataStore) SetAllDetectionsExcluded(clipID uint, excluded bool) error {
	err := ds.DB.Model(&Detection{}).Where("clip_id = ?", clipID).Update("excluded", excluded).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

// SetNightDetectionsExcluded sets the flag on every detection belonging to
// detected clips of a night.
func (ds *DataStore) SetNightDetectionsExcluded(dateStr string, excluded bool) error {
	err := ds.DB.Model(&Detection{}).
		Where("clip_id IN (?)",
			ds.DB.Model(&Clip{}).Select("id").Where("date_str = ? AND status = ?", dateStr, StatusDetected)).
		Update("excluded", excluded).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

// CountNightDetections recomputes the derived per-night detection count:
// non-excluded detections of non-excluded, detected clips.
func (ds *DataStore) CountNightDetections(dateStr string) (int, error) {
	var count int64
	err := ds.DB.Model(&Detection{}).
		Joins("JOIN clips ON clips.id = detections.clip_id").
		Where("clips.date_str = ? AND clips.status = ? AND clips.excluded = ? AND detections.excluded = ?",
			dateStr, StatusDetected, false, false).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err)
	}
	return int(count), nil
}
