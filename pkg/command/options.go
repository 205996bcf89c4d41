package command

import (
	"waitmap.dev/cmd/pkg/stress"
)

func WithBuildInfo(version, commit, date string) func(app *App) {
	return func(app *App) {
		app.BuildInfo = BuildInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		}
	}
}

func WithEngineOptions(opts ...func(*stress.Engine)) func(app *App) {
	return func(app *App) {
		app.Engine = stress.New(opts...)
	}
}
