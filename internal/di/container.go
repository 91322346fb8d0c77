// Package di provides dependency injection configuration for the picsapp server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/di/providers"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideQueue)
	do.Provide(injector, providers.ProvidePictureStorages)

	// Live viewers
	do.Provide(injector, providers.ProvideHub)

	// Business services
	do.Provide(injector, providers.ProvideRankingPublisher)
	do.Provide(injector, providers.ProvideGalleryService)
	do.Provide(injector, providers.ProvideReconciler)

	// Workers
	do.Provide(injector, providers.ProvideConversionService)
	do.Provide(injector, providers.ProvideDropFolder)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in startup order:
// store, stalled-task recovery, hub, reconciliation, workers, watcher, HTTP.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*queue.Queue](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.PictureStorages](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.HubHandle](injector)
	_ = do.MustInvoke[*service.RankingPublisher](injector)
	_ = do.MustInvoke[*service.GalleryService](injector)

	// Workers
	if _, err := do.Invoke[*providers.ConversionServiceHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.DropFolderHandle](injector); err != nil {
		return err
	}

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
