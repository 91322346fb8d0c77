package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
	"github.com/picsapp/picsapp-server/internal/watcher"
)

// ConversionServiceHandle wraps the conversion workers with shutdown capability.
type ConversionServiceHandle struct {
	*service.ConversionService
}

// Shutdown implements do.Shutdownable.
func (h *ConversionServiceHandle) Shutdown() error {
	h.ConversionService.Stop()
	return nil
}

// ProvideConversionService reconciles leftovers from earlier runs, then starts the workers.
func ProvideConversionService(i do.Injector) (*ConversionServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	q := do.MustInvoke[*queue.Queue](i)
	storages := do.MustInvoke[*PictureStorages](i)
	publisher := do.MustInvoke[*service.RankingPublisher](i)
	reconciler := do.MustInvoke[*service.Reconciler](i)
	log := do.MustInvoke[*logger.Logger](i)

	// Reconcile errors are per file and already logged; startup continues.
	report, err := reconciler.Run(context.Background())
	if err != nil {
		return nil, err
	}
	if report.Errors > 0 {
		log.WithFields(map[string]any{
			"errors": report.Errors,
			"queued": report.Legacy + report.Orphans,
		}).Warn("Some pictures could not be queued at startup")
	}

	svc := service.NewConversionService(q, storeHandle.Store, storages.Uploads, storages.Raw, publisher, cfg.Conversion, log.Logger)
	svc.Start(context.Background())

	return &ConversionServiceHandle{ConversionService: svc}, nil
}

// DropFolderHandle wraps the raw-directory watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type DropFolderHandle struct {
	Watcher *watcher.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *DropFolderHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideDropFolder watches the raw upload directory and queues files that settle there.
func ProvideDropFolder(i do.Injector) (*DropFolderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	q := do.MustInvoke[*queue.Queue](i)
	storages := do.MustInvoke[*PictureStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Watcher.Enabled {
		log.Info("Drop folder watcher disabled by configuration")
		return &DropFolderHandle{}, nil
	}

	w, err := watcher.New(log.Logger, watcher.Options{
		SettleDelay:  cfg.Watcher.SettleDelay,
		IgnoreHidden: true,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Watch(storages.Raw.Dir()); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.WithError(err).Error("File watcher error")
		}
	}()

	go service.NewDropFolder(w, q, log.Logger).Run(ctx)

	log.WithFields(map[string]any{
		"path":         storages.Raw.Dir(),
		"settle_delay": cfg.Watcher.SettleDelay,
	}).Info("Drop folder watcher started")

	return &DropFolderHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}
