package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultSettings builds a Settings struct mirroring the viper defaults.
func defaultSettings() *Settings {
	return &Settings{
		Camera: CameraSettings{
			Host:       "atomcam.local",
			BasePath:   "sdcard/record",
			TimeoutSec: 10,
			RetryCount: 3,
		},
		Detection: DetectionSettings{
			MinLineLength:       30,
			CannyThreshold1:     100,
			CannyThreshold2:     200,
			HoughThreshold:      50,
			MaxLineGap:          10,
			MinLineBrightness:   10.0,
			ExposureDurationSec: 1.0,
			ClipMarginSec:       0.5,
		},
		Schedule: ScheduleSettings{
			StartMode:       ModeFixed,
			StartTime:       "22:00",
			EndMode:         ModeFixed,
			EndTime:         "06:00",
			LocationMode:    LocationPreset,
			Preset:          "Tokyo",
			IntervalMinutes: 15,
		},
		Paths: PathsSettings{
			DownloadDir: "~/meteor/downloads",
			OutputDir:   "~/meteor/output",
			DBPath:      "~/meteor/state.db",
			LockPath:    "~/meteor/.lock",
		},
		System: SystemSettings{
			RebootTime: "12:00",
		},
	}
}

// GenerateYAML writes a default configuration file to the given path.
func GenerateYAML(path string) error {
	data, err := yaml.Marshal(defaultSettings())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}
	header := []byte("# meteor-go configuration\n# Values here form the baseline; stored settings override them per key.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}
