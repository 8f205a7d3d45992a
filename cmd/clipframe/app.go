package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"

	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/db"
	"github.com/clipframe/clipframe/internal/lifecycle"
	"github.com/clipframe/clipframe/internal/logging"
)

// app is the state shared by commands that own the data directory.
type app struct {
	cfg      *config.EnvConfig
	logger   *slog.Logger
	lock     *flock.Flock
	database *db.DB
	manager  *lifecycle.Manager
}

// openApp locks the data directory, prepares its namespaces and opens the
// artifact index. Only one process may hold a data directory at a time.
func openApp(cfg *config.EnvConfig) (*app, error) {
	logger := logging.NewLogger(cfg.LogLevel())

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another clipframe process is using " + cfg.DataDir())
	}

	a := &app{cfg: cfg, logger: logger, lock: lock}
	if err := a.init(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init() error {
	ns := lifecycle.NewNamespaces(a.cfg.DataDir())
	if err := ns.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare data dir: %w", err)
	}
	if err := os.MkdirAll(a.cfg.ScratchDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}

	database, err := db.New(a.cfg.DBPath(), a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.database = database
	a.manager = lifecycle.NewManager(lifecycle.NewRepository(database.Conn()), ns, logging.WithComponent(a.logger, "lifecycle"))
	return nil
}

func (a *app) close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release data dir lock", "error", err)
	}
}
