package api

import (
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/service"
	"github.com/picsapp/picsapp-server/internal/store"
)

// ViewerCounter reports how many live viewers are connected.
type ViewerCounter interface {
	Count() int
}

// Services groups the dependencies used by the API handlers.
type Services struct {
	Store   store.Store
	Gallery *service.GalleryService
	Queue   *queue.Queue
	Viewers ViewerCounter
}
