package hooks

// LogHook is the default subscriber: it writes every event to the hooks
// log.
type LogHook struct{}

func (LogHook) OnDetection(event DetectionEvent) {
	logger().Info("Detection",
		"date", event.DateStr,
		"hour", event.Hour,
		"minute", event.Minute,
		"lines", event.LineCount)
}

func (LogHook) OnNightComplete(event NightCompleteEvent) {
	logger().Info("Night complete",
		"date", event.DateStr,
		"detections", event.DetectionCount)
}

func (LogHook) OnError(event ErrorEvent) {
	logger().Error("Stage error",
		"stage", event.Stage,
		"error", event.Err)
}
