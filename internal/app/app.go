package app

import (
	"context"
	"log/slog"

	"timetrack/internal/adapter/directory"
	"timetrack/internal/adapter/sqlstore"
	"timetrack/internal/config"
	"timetrack/internal/migrate"
	"timetrack/internal/ports"
	"timetrack/internal/usecase"
)

// App wires adapters and use cases.
type App struct {
	log       *slog.Logger
	store     *sqlstore.Store
	timer     *usecase.TimerController
	timesheet *usecase.TimesheetAggregator
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	if err := cfg.ValidateDirectory(); err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	// Run migrations before the store takes traffic
	if err := migrate.Run(ctx, store.DB(), log); err != nil {
		store.Close()
		return nil, err
	}

	var tasks ports.TaskDirectory
	if cfg.Directory.File != "" {
		fd, err := directory.LoadFile(cfg.Directory.File)
		if err != nil {
			store.Close()
			return nil, err
		}
		tasks = fd
		log.Info("using file task directory", slog.String("file", cfg.Directory.File))
	} else {
		tasks = directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.APIToken, cfg.Directory.Timeout, log)
		log.Info("using http task directory", slog.String("base_url", cfg.Directory.BaseURL))
	}

	return NewWithDeps(log, store, tasks), nil
}

// NewWithDeps builds an App over an already opened store.
func NewWithDeps(log *slog.Logger, store *sqlstore.Store, tasks ports.TaskDirectory) *App {
	return &App{
		log:   log,
		store: store,
		timer: &usecase.TimerController{
			Log:   log,
			Store: store,
			Tasks: tasks,
		},
		timesheet: &usecase.TimesheetAggregator{
			Log:   log,
			Store: store,
		},
	}
}

func (a *App) Timer() *usecase.TimerController { return a.timer }

func (a *App) Timesheet() *usecase.TimesheetAggregator { return a.timesheet }

func (a *App) Close() error { return a.store.Close() }
