package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// UpsertNightOutput creates or updates the per-night output row, keyed by
// its date string.
func (ds *DataStore) UpsertNightOutput(output *NightOutput) error {
	output.LastUpdatedAt = time.Now()
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date_str"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"composite_image", "concat_video", "detection_count", "last_updated_at",
		}),
	}).Create(output).Error
	if err != nil {
		return dbError(fmt.Errorf("upserting night output %s: %w", output.DateStr, err))
	}
	return nil
}

// GetNightOutput returns the output row for a night.
func (ds *DataStore) GetNightOutput(dateStr string) (*NightOutput, error) {
	var output NightOutput
	if err := ds.DB.Where("date_str = ?", dateStr).First(&output).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(fmt.Errorf("night %s not found", dateStr))
		}
		return nil, dbError(err)
	}
	return &output, nil
}

// GetAllNights returns every night output, newest first.
func (ds *DataStore) GetAllNights() ([]NightOutput, error) {
	var nights []NightOutput
	if err := ds.DB.Order("date_str DESC").Find(&nights).Error; err != nil {
		return nil, dbError(err)
	}
	return nights, nil
}

// GetVisibleNights returns non-hidden night outputs, newest first.
func (ds *DataStore) GetVisibleNights() ([]NightOutput, error) {
	var nights []NightOutput
	if err := ds.DB.Where("hidden = ?", false).Order("date_str DESC").Find(&nights).Error; err != nil {
		return nil, dbError(err)
	}
	return nights, nil
}

// SetNightHidden sets the visibility flag for a night.
func (ds *DataStore) SetNightHidden(dateStr string, hidden bool) error {
	result := ds.DB.Model(&NightOutput{}).Where("date_str = ?", dateStr).
		Updates(map[string]any{"hidden": hidden, "last_updated_at": time.Now()})
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(fmt.Errorf("night %s not found", dateStr))
	}
	return nil
}

// ClearConcatVideo removes the concatenated-video path from a night's row.
func (ds *DataStore) ClearConcatVideo(dateStr string) error {
	result := ds.DB.Model(&NightOutput{}).Where("date_str = ?", dateStr).
		Updates(map[string]any{"concat_video": "", "last_updated_at": time.Now()})
	if result.Error != nil {
		return dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(fmt.Errorf("night %s not found", dateStr))
	}
	return nil
}
