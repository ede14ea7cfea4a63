// Package conf loads and validates the application configuration.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// CameraSettings describes how to reach the camera's HTTP clip archive.
type CameraSettings struct {
	Host       string `yaml:"host" mapstructure:"host"`
	User       string `yaml:"user" mapstructure:"user"`
	Password   string `yaml:"password" mapstructure:"password"`
	BasePath   string `yaml:"basepath" mapstructure:"basepath"`
	TimeoutSec int    `yaml:"timeoutsec" mapstructure:"timeoutsec"`
	RetryCount int    `yaml:"retrycount" mapstructure:"retrycount"`
}

// DetectionSettings holds the streak detection parameters.
type DetectionSettings struct {
	MinLineLength       int     `yaml:"minlinelength" mapstructure:"minlinelength"`
	CannyThreshold1     int     `yaml:"cannythreshold1" mapstructure:"cannythreshold1"`
	CannyThreshold2     int     `yaml:"cannythreshold2" mapstructure:"cannythreshold2"`
	HoughThreshold      int     `yaml:"houghthreshold" mapstructure:"houghthreshold"`
	MaxLineGap          int     `yaml:"maxlinegap" mapstructure:"maxlinegap"`
	MinLineBrightness   float64 `yaml:"minlinebrightness" mapstructure:"minlinebrightness"`
	ExposureDurationSec float64 `yaml:"exposuredurationsec" mapstructure:"exposuredurationsec"`
	ClipMarginSec       float64 `yaml:"clipmarginsec" mapstructure:"clipmarginsec"`
	MaskPath            string  `yaml:"maskpath" mapstructure:"maskpath"`
	ExcludeBottomPct    float64 `yaml:"excludebottompct" mapstructure:"excludebottompct"`
}

// ScheduleSettings is the YAML baseline for the observation window. Stored
// settings in the datastore override these values key by key at resolve time.
type ScheduleSettings struct {
	StartMode          string  `yaml:"startmode" mapstructure:"startmode"`
	StartTime          string  `yaml:"starttime" mapstructure:"starttime"`
	StartOffsetMinutes int     `yaml:"startoffsetminutes" mapstructure:"startoffsetminutes"`
	EndMode            string  `yaml:"endmode" mapstructure:"endmode"`
	EndTime            string  `yaml:"endtime" mapstructure:"endtime"`
	EndOffsetMinutes   int     `yaml:"endoffsetminutes" mapstructure:"endoffsetminutes"`
	LocationMode       string  `yaml:"locationmode" mapstructure:"locationmode"`
	Preset             string  `yaml:"preset" mapstructure:"preset"`
	Latitude           float64 `yaml:"latitude" mapstructure:"latitude"`
	Longitude          float64 `yaml:"longitude" mapstructure:"longitude"`
	IntervalMinutes    int     `yaml:"intervalminutes" mapstructure:"intervalminutes"`
}

// PathsSettings holds filesystem roots.
type PathsSettings struct {
	DownloadDir string `yaml:"downloaddir" mapstructure:"downloaddir"`
	OutputDir   string `yaml:"outputdir" mapstructure:"outputdir"`
	DBPath      string `yaml:"dbpath" mapstructure:"dbpath"`
	LockPath    string `yaml:"lockpath" mapstructure:"lockpath"`
}

// NotifySettings configures push notifications. URLs are shoutrrr service
// URLs (ntfy, telegram, discord and so on).
type NotifySettings struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string `yaml:"urls" mapstructure:"urls"`
}

// SystemSettings holds host-level options.
type SystemSettings struct {
	RebootEnabled bool   `yaml:"rebootenabled" mapstructure:"rebootenabled"`
	RebootTime    string `yaml:"reboottime" mapstructure:"reboottime"`
	Debug         bool   `yaml:"debug" mapstructure:"debug"`
}

// Settings is the resolved application configuration.
type Settings struct {
	Camera    CameraSettings    `yaml:"camera" mapstructure:"camera"`
	Detection DetectionSettings `yaml:"detection" mapstructure:"detection"`
	Schedule  ScheduleSettings  `yaml:"schedule" mapstructure:"schedule"`
	Paths     PathsSettings     `yaml:"paths" mapstructure:"paths"`
	Notify    NotifySettings    `yaml:"notify" mapstructure:"notify"`
	System    SystemSettings    `yaml:"system" mapstructure:"system"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and returns validated settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the loaded settings instance, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := DefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file yet, write one with defaults
			return createDefaultConfig(configPaths[0])
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := GenerateYAML(configPath); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return viper.ReadInConfig()
}

// DefaultConfigPaths returns config search directories: the working
// directory first, then the user config directory.
func DefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if userDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, "meteor-go"))
	}
	return paths, nil
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
