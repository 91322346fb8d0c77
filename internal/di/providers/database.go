package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the SQLite record store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Storage.DBPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", slog.String("path", cfg.Storage.DBPath))

	return &StoreHandle{Store: db}, nil
}

// ProvideQueue provides the task queue. Tasks a previous process left in
// processing are failed here, before any worker can claim.
func ProvideQueue(i do.Injector) (*queue.Queue, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	q := queue.New(storeHandle.Store, log.Logger)

	if _, err := q.RecoverStalled(context.Background()); err != nil {
		return nil, err
	}

	return q, nil
}
