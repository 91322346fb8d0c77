package providers

import (
	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
)

// ProvideRankingPublisher provides the snapshot publisher shared by likes and conversions.
func ProvideRankingPublisher(i do.Injector) (*service.RankingPublisher, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRankingPublisher(storeHandle.Store, hubHandle.Hub, log.Logger), nil
}

// ProvideGalleryService provides the viewer-facing gallery service.
func ProvideGalleryService(i do.Injector) (*service.GalleryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	q := do.MustInvoke[*queue.Queue](i)
	storages := do.MustInvoke[*PictureStorages](i)
	publisher := do.MustInvoke[*service.RankingPublisher](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewGalleryService(storeHandle.Store, q, storages.Raw, publisher, log.Logger), nil
}

// ProvideReconciler provides the startup reconciler.
func ProvideReconciler(i do.Injector) (*service.Reconciler, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	q := do.MustInvoke[*queue.Queue](i)
	storages := do.MustInvoke[*PictureStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReconciler(storeHandle.Store, q, storages.Uploads, storages.Raw, log.Logger), nil
}
