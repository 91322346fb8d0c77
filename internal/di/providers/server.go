package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/picsapp/picsapp-server/internal/api"
	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
	"github.com/picsapp/picsapp-server/internal/sse"
	"github.com/picsapp/picsapp-server/internal/ws"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	storages := do.MustInvoke[*PictureStorages](i)
	q := do.MustInvoke[*queue.Queue](i)
	publisher := do.MustInvoke[*service.RankingPublisher](i)
	gallery := do.MustInvoke[*service.GalleryService](i)

	streams := api.Streams{
		SSE: sse.NewHandler(hubHandle.Hub, publisher, sse.Options{
			SendBuffer:   cfg.Hub.SendBuffer,
			WriteTimeout: cfg.Hub.WriteTimeout,
		}, log.Logger),
		WS: ws.NewHandler(hubHandle.Hub, publisher, ws.Options{
			WriteTimeout:   cfg.Hub.WriteTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, log.Logger),
	}

	handler := api.NewServer(&api.Services{
		Store:   storeHandle.Store,
		Gallery: gallery,
		Queue:   q,
		Viewers: hubHandle.Hub,
	}, streams, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadDir:      storages.Uploads.Dir(),
		StaticDir:      cfg.Server.StaticDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Live streams never go idle on their own; stopping the hub ends them.
	srv.RegisterOnShutdown(hubHandle.cancel)

	// Start in background
	go func() {
		log.Info("HTTP server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
