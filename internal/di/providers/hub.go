package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/hub"
	"github.com/picsapp/picsapp-server/internal/logger"
)

// HubHandle wraps the broadcast hub with its context for lifecycle management.
type HubHandle struct {
	*hub.Hub
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. Stopping the hub closes every viewer.
func (h *HubHandle) Shutdown() error {
	h.cancel()
	select {
	case <-h.Done():
	case <-time.After(shutdownTimeout):
	}
	return nil
}

// ProvideHub provides the running broadcast hub.
func ProvideHub(i do.Injector) (*HubHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	h := hub.New(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	log.Info("Broadcast hub started")

	return &HubHandle{
		Hub:    h,
		cancel: cancel,
	}, nil
}
