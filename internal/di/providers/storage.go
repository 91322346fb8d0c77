package providers

import (
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/media/images"
)

// PictureStorages groups the converted and raw picture directories.
type PictureStorages struct {
	Uploads *images.Storage
	Raw     *images.RawStorage
}

// ProvidePictureStorages creates both picture directories.
func ProvidePictureStorages(i do.Injector) (*PictureStorages, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	uploads, err := images.NewStorage(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload storage: %w", err)
	}

	raw, err := images.NewRawStorage(cfg.Storage.OriginalDir)
	if err != nil {
		return nil, fmt.Errorf("raw storage: %w", err)
	}

	log.Info("Picture storages initialized",
		slog.String("uploads", uploads.Dir()),
		slog.String("originals", raw.Dir()),
	)

	return &PictureStorages{Uploads: uploads, Raw: raw}, nil
}
