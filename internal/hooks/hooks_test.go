package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// recordingHook appends the events it receives to shared slices.
type recordingHook struct {
	NoopHook
	name       string
	detections *[]string
	nights     *[]string
	errs       *[]string
}

func (r *recordingHook) OnDetection(DetectionEvent)         { *r.detections = append(*r.detections, r.name) }
func (r *recordingHook) OnNightComplete(NightCompleteEvent) { *r.nights = append(*r.nights, r.name) }
func (r *recordingHook) OnError(ErrorEvent)                 { *r.errs = append(*r.errs, r.name) }

// panickingHook panics on every delivery.
type panickingHook struct{ NoopHook }

func (panickingHook) OnDetection(DetectionEvent) { panic("subscriber bug") }

func TestRunnerDeliversInOrder(t *testing.T) {
	var detections, nights, errs []string
	first := &recordingHook{name: "first", detections: &detections, nights: &nights, errs: &errs}
	second := &recordingHook{name: "second", detections: &detections, nights: &nights, errs: &errs}

	r := NewRunner(first, second)
	r.Detection(DetectionEvent{DateStr: "20260815", LineCount: 1})
	r.NightComplete(NightCompleteEvent{DateStr: "20260815"})
	r.Error(ErrorEvent{Stage: "download", Err: errors.NewStd("boom")})

	assert.Equal(t, []string{"first", "second"}, detections)
	assert.Equal(t, []string{"first", "second"}, nights)
	assert.Equal(t, []string{"first", "second"}, errs)
}

func TestRunnerIsolatesPanickingHook(t *testing.T) {
	var detections, nights, errs []string
	before := &recordingHook{name: "before", detections: &detections, nights: &nights, errs: &errs}
	after := &recordingHook{name: "after", detections: &detections, nights: &nights, errs: &errs}

	r := NewRunner(before, panickingHook{}, after)

	assert.NotPanics(t, func() {
		r.Detection(DetectionEvent{DateStr: "20260815"})
	})
	assert.Equal(t, []string{"before", "after"}, detections,
		"hooks after the panicking one still run")
}

func TestEmptyRunnerIsInert(t *testing.T) {
	r := NewRunner()
	assert.NotPanics(t, func() {
		r.Detection(DetectionEvent{})
		r.NightComplete(NightCompleteEvent{})
		r.Error(ErrorEvent{})
	})
}

func TestRunnerAdd(t *testing.T) {
	var detections, nights, errs []string
	r := NewRunner()
	r.Add(&recordingHook{name: "late", detections: &detections, nights: &nights, errs: &errs})
	r.Detection(DetectionEvent{})
	assert.Equal(t, []string{"late"}, detections)
}
