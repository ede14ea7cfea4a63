// Package app wires the application components together for the CLI
// commands: configuration, datastore, downloader, detector, hooks, metrics,
// pipeline and the review service.
package app

import (
	"github.com/skymonitor/meteor-go/internal/conf"
	"github.com/skymonitor/meteor-go/internal/datastore"
	"github.com/skymonitor/meteor-go/internal/detection"
	"github.com/skymonitor/meteor-go/internal/downloader"
	"github.com/skymonitor/meteor-go/internal/hooks"
	"github.com/skymonitor/meteor-go/internal/observability"
	"github.com/skymonitor/meteor-go/internal/pipeline"
	"github.com/skymonitor/meteor-go/internal/review"
	"github.com/skymonitor/meteor-go/internal/tasks"
)

// App holds the assembled components for one process.
type App struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Pipeline *pipeline.Pipeline
	Review   *review.Service
	Tasks    *tasks.Manager
	Metrics  *observability.Metrics
	Hooks    *hooks.Runner
}

// New opens the datastore and assembles the components. The caller owns the
// returned App and must Close it.
func New(settings *conf.Settings) (*App, error) {
	store := datastore.New(conf.ExpandPath(settings.Paths.DBPath))
	if err := store.Open(); err != nil {
		return nil, err
	}

	runner := hooks.NewRunner(hooks.LogHook{})
	if settings.Notify.Enabled && len(settings.Notify.URLs) > 0 {
		push, err := hooks.NewPushHook(settings.Notify.URLs...)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		runner.Add(push)
	}

	metrics := observability.NewMetrics()
	pipe := pipeline.New(
		settings,
		store,
		downloader.New(settings.Camera),
		detection.New(settings.Detection),
		runner,
		metrics,
	)

	return &App{
		Settings: settings,
		Store:    store,
		Pipeline: pipe,
		Review:   review.NewService(store, pipe),
		Tasks:    tasks.NewManager(),
		Metrics:  metrics,
		Hooks:    runner,
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() error {
	return a.Store.Close()
}
