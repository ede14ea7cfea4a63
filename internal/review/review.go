// Package review implements the human pass over detection results: listing
// nights and clips, excluding false positives, hiding nights and pruning
// artifacts. Exclusion toggles refresh the night's detection count
// immediately; the image and video artifacts are rebuilt on request.
package review

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/logging"
	"github.com/skymonitor/meteor-go/internal/pipeline"
)

var (
	revLogger  *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		revLogger, _ = logging.ForService("review", levelVar)
	})
	return revLogger
}

// Service exposes the review operations over the store.
type Service struct {
	store datastore.Interface
	pipe  *pipeline.Pipeline
}

// NewService creates a review Service.
func NewService(store datastore.Interface, pipe *pipeline.Pipeline) *Service {
	return &Service{store: store, pipe: pipe}
}

// NightSummary is one row of the nights list.
type NightSummary struct {
	DateStr        string `json:"date"`
	DetectionCount int    `json:"detection_count"`
	CompositeImage string `json:"composite_image,omitempty"`
	ConcatVideo    string `json:"concat_video,omitempty"`
	Hidden         bool   `json:"hidden"`
}

// ClipView is one clip with its detections.
type ClipView struct {
	Clip       datastore.Clip        `json:"clip"`
	Detections []datastore.Detection `json:"detections"`
}

// NightDetail is a night with its detected clips in chronological order.
type NightDetail struct {
	Night NightSummary `json:"night"`
	Clips []ClipView   `json:"clips"`
}

// ListNights returns night summaries, newest first. Hidden nights are
// included only when requested.
func (s *Service) ListNights(includeHidden bool) ([]NightSummary, error) {
	var (
		nights []datastore.NightOutput
		err    error
	)
	if includeHidden {
		nights, err = s.store.GetAllNights()
	} else {
		nights, err = s.store.GetVisibleNights()
	}
	if err != nil {
		return nil, err
	}

	out := make([]NightSummary, len(nights))
	for i, n := range nights {
		out[i] = NightSummary{
			DateStr:        n.DateStr,
			DetectionCount: n.DetectionCount,
			CompositeImage: n.CompositeImage,
			ConcatVideo:    n.ConcatVideo,
			Hidden:         n.Hidden,
		}
	}
	return out, nil
}

// GetNight returns one night with its detected clips, excluded ones
// included so the reviewer can un-exclude them. Clips are ordered by their
// position within the night: evening hours before the post-midnight ones.
func (s *Service) GetNight(dateStr string) (*NightDetail, error) {
	night, err := s.store.GetNightOutput(dateStr)
	if err != nil {
		return nil, err
	}

	clips, err := s.store.GetDetectedClips(dateStr, true)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(clips, func(i, j int) bool {
		return nightOrdinal(clips[i]) < nightOrdinal(clips[j])
	})

	detail := &NightDetail{
		Night: NightSummary{
			DateStr:        night.DateStr,
			DetectionCount: night.DetectionCount,
			CompositeImage: night.CompositeImage,
			ConcatVideo:    night.ConcatVideo,
			Hidden:         night.Hidden,
		},
	}
	for _, clip := range clips {
		detections, err := s.store.GetDetections(clip.ID, false)
		if err != nil {
			return nil, err
		}
		detail.Clips = append(detail.Clips, ClipView{Clip: clip, Detections: detections})
	}
	return detail, nil
}

// GetClip returns one clip with all its detections.
func (s *Service) GetClip(clipID uint) (*ClipView, error) {
	clip, err := s.store.GetClipByID(clipID)
	if err != nil {
		return nil, err
	}
	detections, err := s.store.GetDetections(clipID, false)
	if err != nil {
		return nil, err
	}
	return &ClipView{Clip: *clip, Detections: detections}, nil
}

// SetClipExcluded marks a whole clip in or out of the night's outputs and
// refreshes the night's detection count.
func (s *Service) SetClipExcluded(clipID uint, excluded bool) error {
	clip, err := s.store.GetClipByID(clipID)
	if err != nil {
		return err
	}
	if err := s.store.SetClipExcluded(clipID, excluded); err != nil {
		return err
	}
	logger().Info("Clip exclusion changed", "clip_id", clipID, "excluded", excluded)
	return s.refreshNight(clip.DateStr)
}

// SetDetectionExcluded marks one detected line in or out and refreshes the
// night's detection count.
func (s *Service) SetDetectionExcluded(detectionID uint, excluded bool) error {
	det, err := s.store.GetDetectionByID(detectionID)
	if err != nil {
		return err
	}
	clip, err := s.store.GetClipByID(det.ClipID)
	if err != nil {
		return err
	}
	if err := s.store.SetDetectionExcluded(detectionID, excluded); err != nil {
		return err
	}
	logger().Info("Detection exclusion changed", "detection_id", detectionID, "excluded", excluded)
	return s.refreshNight(clip.DateStr)
}

// SetClipDetectionsExcluded marks every detection of a clip at once.
func (s *Service) SetClipDetectionsExcluded(clipID uint, excluded bool) error {
	clip, err := s.store.GetClipByID(clipID)
	if err != nil {
		return err
	}
	if err := s.store.SetAllDetectionsExcluded(clipID, excluded); err != nil {
		return err
	}
	return s.refreshNight(clip.DateStr)
}

// SetNightDetectionsExcluded marks every detection of a night at once,
// the bulk dismissal for nights dominated by a false source such as
// clouds or aircraft.
func (s *Service) SetNightDetectionsExcluded(dateStr string, excluded bool) error {
	if err := s.store.SetNightDetectionsExcluded(dateStr, excluded); err != nil {
		return err
	}
	logger().Info("Night detections exclusion changed", "date", dateStr, "excluded", excluded)
	return s.refreshNight(dateStr)
}

// SetNightHidden hides or unhides a night from the default listing without
// touching its data.
func (s *Service) SetNightHidden(dateStr string, hidden bool) error {
	return s.store.SetNightHidden(dateStr, hidden)
}

// DeleteConcatVideo removes a night's concatenated video from disk and
// clears it from the night row. The composite image and per-clip artifacts
// are untouched.
func (s *Service) DeleteConcatVideo(dateStr string) error {
	night, err := s.store.GetNightOutput(dateStr)
	if err != nil {
		return err
	}
	if night.ConcatVideo != "" {
		if err := os.Remove(night.ConcatVideo); err != nil && !os.IsNotExist(err) {
			return errors.New(fmt.Errorf("removing concat video: %w", err)).
				Component("review").
				Category(errors.CategoryFileIO).
				Context("path", night.ConcatVideo).
				Build()
		}
	}
	if err := s.store.ClearConcatVideo(dateStr); err != nil {
		return err
	}
	logger().Info("Concat video deleted", "date", dateStr)
	return nil
}

// refreshNight recomputes the stored detection count after an exclusion
// change. The artifacts themselves are rebuilt only on request.
func (s *Service) refreshNight(dateStr string) error {
	if s.pipe == nil {
		return nil
	}
	_, err := s.pipe.RefreshNight(dateStr)
	return err
}

func nightOrdinal(c datastore.Clip) int {
	hour := c.Hour
	if hour < 12 {
		hour += 24
	}
	return hour*60 + c.Minute
}
