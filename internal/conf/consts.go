package conf

// Observation window modes.
const (
	ModeFixed          = "fixed"
	ModeTwilight       = "twilight"
	ModeTwilightOffset = "twilight_offset"
)

// Location resolution modes.
const (
	LocationPreset = "preset"
	LocationCustom = "custom"
)
