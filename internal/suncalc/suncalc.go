// Package suncalc calculates astronomical twilight times for the
// observation window: the sun crossing 18 degrees below the horizon.
package suncalc

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sj14/astral/pkg/astral"
)

// TwilightTimes holds the calculated twilight boundaries in local time.
type TwilightTimes struct {
	// DuskEnd is when evening astronomical twilight ends on the evening
	// before the observation date: the sky is fully dark after it.
	DuskEnd time.Time
	// DawnStart is when morning astronomical twilight begins on the
	// observation date: the sky starts brightening after it.
	DawnStart time.Time
}

// SunCalc computes and caches twilight times for one location.
type SunCalc struct {
	observer astral.Observer
	cache    *gocache.Cache
}

// NewSunCalc creates a SunCalc for the given coordinates.
func NewSunCalc(latitude, longitude float64) *SunCalc {
	return &SunCalc{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		cache:    gocache.New(48*time.Hour, time.Hour),
	}
}

// GetTwilightTimes returns the twilight boundaries for an observation date,
// using the cache when available. The evening boundary is computed for the
// previous calendar day, since an observation night spans midnight.
// Polar latitudes where the sun never reaches the astronomical depression
// yield an error; callers fall back to fixed times.
func (sc *SunCalc) GetTwilightTimes(date time.Time) (TwilightTimes, error) {
	key := date.Format("2006-01-02")
	if cached, found := sc.cache.Get(key); found {
		return cached.(TwilightTimes), nil
	}

	times, err := sc.calculate(date)
	if err != nil {
		return TwilightTimes{}, err
	}

	sc.cache.Set(key, times, gocache.DefaultExpiration)
	return times, nil
}

func (sc *SunCalc) calculate(date time.Time) (TwilightTimes, error) {
	prevDay := date.AddDate(0, 0, -1)

	duskEnd, err := astral.Dusk(sc.observer, prevDay, astral.DepressionAstronomical)
	if err != nil {
		return TwilightTimes{}, fmt.Errorf("failed to calculate astronomical dusk: %w", err)
	}

	dawnStart, err := astral.Dawn(sc.observer, date, astral.DepressionAstronomical)
	if err != nil {
		return TwilightTimes{}, fmt.Errorf("failed to calculate astronomical dawn: %w", err)
	}

	return TwilightTimes{
		DuskEnd:   duskEnd.Local(),
		DawnStart: dawnStart.Local(),
	}, nil
}
