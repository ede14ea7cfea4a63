package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the default value of every configuration
// parameter with viper. Keys mirror the YAML structure.
func setDefaultConfig() {
	// Camera
	viper.SetDefault("camera.host", "atomcam.local")
	viper.SetDefault("camera.user", "")
	viper.SetDefault("camera.password", "")
	viper.SetDefault("camera.basepath", "sdcard/record")
	viper.SetDefault("camera.timeoutsec", 10)
	viper.SetDefault("camera.retrycount", 3)

	// Detection
	viper.SetDefault("detection.minlinelength", 30)
	viper.SetDefault("detection.cannythreshold1", 100)
	viper.SetDefault("detection.cannythreshold2", 200)
	viper.SetDefault("detection.houghthreshold", 50)
	viper.SetDefault("detection.maxlinegap", 10)
	viper.SetDefault("detection.minlinebrightness", 10.0)
	viper.SetDefault("detection.exposuredurationsec", 1.0)
	viper.SetDefault("detection.clipmarginsec", 0.5)
	viper.SetDefault("detection.maskpath", "")
	viper.SetDefault("detection.excludebottompct", 0.0)

	// Schedule
	viper.SetDefault("schedule.startmode", ModeFixed)
	viper.SetDefault("schedule.starttime", "22:00")
	viper.SetDefault("schedule.startoffsetminutes", 0)
	viper.SetDefault("schedule.endmode", ModeFixed)
	viper.SetDefault("schedule.endtime", "06:00")
	viper.SetDefault("schedule.endoffsetminutes", 0)
	viper.SetDefault("schedule.locationmode", LocationPreset)
	viper.SetDefault("schedule.preset", "Tokyo")
	viper.SetDefault("schedule.latitude", 0.0)
	viper.SetDefault("schedule.longitude", 0.0)
	viper.SetDefault("schedule.intervalminutes", 15)

	// Paths
	viper.SetDefault("paths.downloaddir", "~/meteor/downloads")
	viper.SetDefault("paths.outputdir", "~/meteor/output")
	viper.SetDefault("paths.dbpath", "~/meteor/state.db")
	viper.SetDefault("paths.lockpath", "~/meteor/.lock")

	// Notify
	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})

	// System
	viper.SetDefault("system.rebootenabled", false)
	viper.SetDefault("system.reboottime", "12:00")
	viper.SetDefault("system.debug", false)
}
