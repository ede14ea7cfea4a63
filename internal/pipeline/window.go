package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/suncalc"
)

// DateLayout is the night label format, matching the camera's directory
// naming.
const DateLayout = "20060102"

// ResolveNight maps a wall-clock instant to the night label it belongs to.
// Before local noon the instant is the morning tail of the previous
// evening's night, so the label is yesterday's date; from noon onward it is
// today's.
func ResolveNight(now time.Time) string {
	if now.Hour() < 12 {
		return now.AddDate(0, 0, -1).Format(DateLayout)
	}
	return now.Format(DateLayout)
}

// Window is a resolved observation window for one night. Start is on the
// label date's evening; End is usually on the following morning.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowResolver resolves the observation window for a night by layering
// stored setting overrides over the YAML schedule baseline. Overrides are
// re-read on every call so edits take effect on the next cycle without a
// restart.
type WindowResolver struct {
	cfg       *conf.Settings
	store     datastore.Interface
	sun       *suncalc.SunCalc
	sunCoords conf.Coordinates
}

// NewWindowResolver creates a resolver. store may be nil, in which case only
// the YAML baseline applies.
func NewWindowResolver(cfg *conf.Settings, store datastore.Interface) *WindowResolver {
	return &WindowResolver{cfg: cfg, store: store}
}

// Schedule returns the effective schedule settings: the YAML baseline with
// stored overrides applied key by key.
func (wr *WindowResolver) Schedule() conf.ScheduleSettings {
	s := wr.cfg.Schedule
	if wr.store == nil {
		return s
	}
	wr.overrideString("schedule.start_mode", &s.StartMode)
	wr.overrideString("schedule.start_time", &s.StartTime)
	wr.overrideInt("schedule.start_offset_minutes", &s.StartOffsetMinutes)
	wr.overrideString("schedule.end_mode", &s.EndMode)
	wr.overrideString("schedule.end_time", &s.EndTime)
	wr.overrideInt("schedule.end_offset_minutes", &s.EndOffsetMinutes)
	wr.overrideString("schedule.location_mode", &s.LocationMode)
	wr.overrideString("schedule.preset", &s.Preset)
	wr.overrideFloat("schedule.latitude", &s.Latitude)
	wr.overrideFloat("schedule.longitude", &s.Longitude)
	wr.overrideInt("schedule.interval_minutes", &s.IntervalMinutes)
	return s
}

func (wr *WindowResolver) overrideString(key string, dst *string) {
	if v, err := wr.store.GetSetting(key); err == nil {
		*dst = v
	}
}

func (wr *WindowResolver) overrideInt(key string, dst *int) {
	if v, err := wr.store.GetSetting(key); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (wr *WindowResolver) overrideFloat(key string, dst *float64) {
	if v, err := wr.store.GetSetting(key); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Resolve computes the observation window for the night labeled dateStr.
// Twilight modes fall back to the fixed times when the sun calculation
// fails (polar latitudes).
func (wr *WindowResolver) Resolve(dateStr string) (Window, error) {
	labelDate, err := time.ParseInLocation(DateLayout, dateStr, time.Local)
	if err != nil {
		return Window{}, errors.New(fmt.Errorf("invalid night label %q: %w", dateStr, err)).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	schedule := wr.Schedule()
	twilight, twilightErr := wr.twilight(schedule, labelDate)

	start, err := resolveBoundary(schedule.StartMode, schedule.StartTime, schedule.StartOffsetMinutes,
		twilight.DuskEnd, twilightErr, labelDate)
	if err != nil {
		return Window{}, err
	}
	end, err := resolveBoundary(schedule.EndMode, schedule.EndTime, schedule.EndOffsetMinutes,
		twilight.DawnStart, twilightErr, labelDate)
	if err != nil {
		return Window{}, err
	}

	if !end.After(start) {
		return Window{}, errors.Newf("observation window is empty: start %s, end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339)).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	return Window{Start: start, End: end}, nil
}

// twilight computes the night's twilight boundaries. The suncalc observation
// date is the morning side of the night, so the label date plus one day.
func (wr *WindowResolver) twilight(schedule conf.ScheduleSettings, labelDate time.Time) (suncalc.TwilightTimes, error) {
	if schedule.StartMode == conf.ModeFixed && schedule.EndMode == conf.ModeFixed {
		return suncalc.TwilightTimes{}, nil
	}

	coords := conf.Coordinates{Latitude: schedule.Latitude, Longitude: schedule.Longitude}
	if schedule.LocationMode == conf.LocationPreset {
		c, err := conf.PresetCoordinates(schedule.Preset)
		if err != nil {
			return suncalc.TwilightTimes{}, err
		}
		coords = c
	}

	// Rebuild the calculator when the location changes, dropping its cache.
	if wr.sun == nil || coords != wr.sunCoords {
		wr.sun = suncalc.NewSunCalc(coords.Latitude, coords.Longitude)
		wr.sunCoords = coords
	}
	return wr.sun.GetTwilightTimes(labelDate.AddDate(0, 0, 1))
}

// resolveBoundary turns one boundary's mode into a concrete instant. A fixed
// clock time at or after noon lands on the label date's evening; before noon
// it lands on the following morning.
func resolveBoundary(mode, clock string, offsetMinutes int, twilightAt time.Time, twilightErr error, labelDate time.Time) (time.Time, error) {
	switch mode {
	case conf.ModeTwilight, conf.ModeTwilightOffset:
		if twilightErr == nil && !twilightAt.IsZero() {
			if mode == conf.ModeTwilightOffset {
				return twilightAt.Add(time.Duration(offsetMinutes) * time.Minute), nil
			}
			return twilightAt, nil
		}
		// Fall back to the fixed time below.
	case conf.ModeFixed:
	default:
		return time.Time{}, errors.Newf("unknown window mode %q", mode).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	day := labelDate
	if hour < 12 {
		day = labelDate.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local), nil
}

// parseClock parses a "HH:MM" string.
func parseClock(clock string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, errors.New(fmt.Errorf("invalid clock time %q: %w", clock, err)).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Newf("clock time %q out of range", clock).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	return hour, minute, nil
}

// NightHours expands a window into its hour slots, in chronological order.
func NightHours(w Window) []int {
	var hours []int
	cursor := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), w.Start.Hour(), 0, 0, 0, w.Start.Location())
	for !cursor.After(w.End) && len(hours) < 24 {
		hours = append(hours, cursor.Hour())
		cursor = cursor.Add(time.Hour)
	}
	return hours
}

// cameraDate maps a night's hour slot to the camera's calendar-date
// directory: evening hours live under the label date, morning hours under
// the following day.
func cameraDate(dateStr string, hour int) string {
	if hour >= 12 {
		return dateStr
	}
	labelDate, err := time.ParseInLocation(DateLayout, dateStr, time.Local)
	if err != nil {
		return dateStr
	}
	return labelDate.AddDate(0, 0, 1).Format(DateLayout)
}
