package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/media/images"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/store"
)

// defaultRawExt is used for uploads whose filename carries no extension.
const defaultRawExt = ".img"

// GalleryService handles viewer-facing item operations and uploads.
type GalleryService struct {
	items     store.ItemStore
	queue     *queue.Queue
	raw       *images.RawStorage
	publisher *RankingPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewGalleryService creates a new gallery service.
func NewGalleryService(
	items store.ItemStore,
	q *queue.Queue,
	raw *images.RawStorage,
	publisher *RankingPublisher,
	logger *slog.Logger,
) *GalleryService {
	return &GalleryService{
		items:     items,
		queue:     q,
		raw:       raw,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// GetItem returns a single item.
func (s *GalleryService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.items.GetItem(ctx, id)
}

// Recent returns up to limit items, newest first.
func (s *GalleryService) Recent(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.items.GetRecentItems(ctx, limit)
}

// Ranked returns every item by likes, then recency.
func (s *GalleryService) Ranked(ctx context.Context) ([]*domain.Item, error) {
	return s.items.GetRankedItems(ctx)
}

// Like adds one like, pushes the new ranking to viewers and returns the updated item.
func (s *GalleryService) Like(ctx context.Context, id string) (*domain.Item, error) {
	if err := s.items.IncrementLikeCount(ctx, id); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx)

	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload liked item: %w", err)
	}

	s.logger.Debug("item liked",
		slog.String("item_id", id),
		slog.Int64("like_count", item.LikeCount))
	return item, nil
}

// Upload stores a raw picture under a timestamped name and queues it for conversion.
// The original filename becomes the item's display name.
func (s *GalleryService) Upload(ctx context.Context, filename string, src io.Reader) (store.CreateResult, error) {
	displayName := filepath.Base(filename)

	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" || ext == "." {
		ext = defaultRawExt
	}
	rawName := strconv.FormatInt(s.now().UnixNano(), 10) + ext

	path, err := s.raw.Create(rawName, src)
	if err != nil {
		return 0, fmt.Errorf("store upload: %w", err)
	}

	result, err := s.queue.CreateTask(ctx, path, displayName, domain.None[string]())
	if err != nil {
		if rmErr := s.raw.Remove(path); rmErr != nil {
			s.logger.Warn("failed to remove unqueued upload", slog.String("path", path), slog.String("error", rmErr.Error()))
		}
		return 0, fmt.Errorf("queue upload: %w", err)
	}

	s.logger.Info("upload queued for conversion",
		slog.String("filename", displayName),
		slog.String("path", path))
	return result, nil
}
