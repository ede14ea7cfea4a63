package conf

import (
	"regexp"

	"github.com/skymonitor/meteor-go/internal/errors"
)

var clockTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ValidateSettings checks the loaded configuration for fatal mistakes.
// Validation failures are configuration-category errors and abort startup;
// nothing here is recoverable at run time.
func ValidateSettings(s *Settings) error {
	if s.Camera.Host == "" {
		return validationError("camera.host must not be empty")
	}
	if s.Camera.TimeoutSec <= 0 {
		return validationError("camera.timeoutsec must be positive")
	}
	if s.Camera.RetryCount < 1 {
		return validationError("camera.retrycount must be at least 1")
	}

	if s.Detection.MinLineLength <= 0 {
		return validationError("detection.minlinelength must be positive")
	}
	if s.Detection.CannyThreshold1 <= 0 || s.Detection.CannyThreshold2 <= 0 {
		return validationError("detection canny thresholds must be positive")
	}
	if s.Detection.CannyThreshold2 < s.Detection.CannyThreshold1 {
		return validationError("detection.cannythreshold2 must be >= cannythreshold1")
	}
	if s.Detection.HoughThreshold <= 0 {
		return validationError("detection.houghthreshold must be positive")
	}
	if s.Detection.ExposureDurationSec <= 0 {
		return validationError("detection.exposuredurationsec must be positive")
	}
	if s.Detection.ExcludeBottomPct < 0 || s.Detection.ExcludeBottomPct >= 1 {
		return validationError("detection.excludebottompct must be in [0, 1)")
	}

	switch s.Schedule.StartMode {
	case ModeFixed, ModeTwilight, ModeTwilightOffset:
	default:
		return validationError("schedule.startmode must be fixed, twilight or twilight_offset")
	}
	switch s.Schedule.EndMode {
	case ModeFixed, ModeTwilight, ModeTwilightOffset:
	default:
		return validationError("schedule.endmode must be fixed, twilight or twilight_offset")
	}
	if !clockTimeRe.MatchString(s.Schedule.StartTime) {
		return validationError("schedule.starttime must be HH:MM")
	}
	if !clockTimeRe.MatchString(s.Schedule.EndTime) {
		return validationError("schedule.endtime must be HH:MM")
	}
	switch s.Schedule.LocationMode {
	case LocationPreset:
		if _, err := PresetCoordinates(s.Schedule.Preset); err != nil {
			return err
		}
	case LocationCustom:
		if s.Schedule.Latitude < -90 || s.Schedule.Latitude > 90 {
			return validationError("schedule.latitude out of range")
		}
		if s.Schedule.Longitude < -180 || s.Schedule.Longitude > 180 {
			return validationError("schedule.longitude out of range")
		}
	default:
		return validationError("schedule.locationmode must be preset or custom")
	}
	if s.Schedule.IntervalMinutes < 0 {
		return validationError("schedule.intervalminutes must not be negative")
	}

	if s.Paths.DownloadDir == "" || s.Paths.OutputDir == "" || s.Paths.DBPath == "" || s.Paths.LockPath == "" {
		return validationError("all paths settings must be set")
	}

	if !clockTimeRe.MatchString(s.System.RebootTime) {
		return validationError("system.reboottime must be HH:MM")
	}

	return nil
}

func validationError(msg string) error {
	return errors.Newf("%s", msg).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
