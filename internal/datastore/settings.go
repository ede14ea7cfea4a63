package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// GetSetting returns the stored value for key, or a not-found error when no
// override exists. Callers fall back to the YAML baseline in that case.
func (ds *DataStore) GetSetting(key string) (string, error) {
	var setting Setting
	if err := ds.DB.Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFoundError(fmt.Errorf("setting %q not set", key))
		}
		return "", dbError(err)
	}
	return setting.Value, nil
}

// SetSetting inserts or updates a single setting.
func (ds *DataStore) SetSetting(key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return dbError(fmt.Errorf("storing setting %q: %w", key, err))
	}
	return nil
}

// SetManySettings stores multiple settings in one transaction.
func (ds *DataStore) SetManySettings(items map[string]string) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for key, value := range items {
			setting := Setting{Key: key, Value: value, UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return dbError(fmt.Errorf("storing setting %q: %w", key, err))
			}
		}
		return nil
	})
}

// GetAllSettings returns every stored override.
func (ds *DataStore) GetAllSettings() (map[string]string, error) {
	var settings []Setting
	if err := ds.DB.Find(&settings).Error; err != nil {
		return nil, dbError(err)
	}
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// DeleteSettingsByPrefix removes all overrides whose key starts with prefix,
// returning the number of deleted rows. Used by the settings reset API.
func (ds *DataStore) DeleteSettingsByPrefix(prefix string) (int64, error) {
	result := ds.DB.Where("key LIKE ?", prefix+"%").Delete(&Setting{})
	if result.Error != nil {
		return 0, dbError(result.Error)
	}
	return result.RowsAffected, nil
}
