package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/media/images"
	"github.com/picsapp/picsapp-server/internal/queue"
	"github.com/picsapp/picsapp-server/internal/store"
)

// maxOutputAttempts bounds the renames tried when output names collide.
const maxOutputAttempts = 3

// ConversionService runs the worker pool that turns queued raw uploads into items.
type ConversionService struct {
	queue     *queue.Queue
	items     store.ItemStore
	uploads   *images.Storage
	raw       *images.RawStorage
	converter *images.Converter
	publisher *RankingPublisher
	config    config.ConversionConfig
	logger    *slog.Logger
	now       func() time.Time

	// Worker management
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConversionService creates a conversion service. Workers start with Start.
func NewConversionService(
	q *queue.Queue,
	items store.ItemStore,
	uploads *images.Storage,
	raw *images.RawStorage,
	publisher *RankingPublisher,
	cfg config.ConversionConfig,
	logger *slog.Logger,
) *ConversionService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 400 * time.Millisecond
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}

	return &ConversionService{
		queue:     q,
		items:     items,
		uploads:   uploads,
		raw:       raw,
		converter: images.NewConverter(cfg.MaxDimension, cfg.Quality),
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled or Stop is called.
func (s *ConversionService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("starting conversion workers",
		slog.Int("workers", s.config.Workers),
		slog.Int("max_dimension", s.config.MaxDimension),
		slog.Int("quality", s.config.Quality),
	)

	for i := range s.config.Workers {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight tasks to be resolved.
func (s *ConversionService) Stop() {
	s.logger.Info("stopping conversion service")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("conversion service stopped")
}

// worker claims and processes tasks until ctx is done.
func (s *ConversionService) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	s.logger.Debug("conversion worker started", slog.Int("worker_id", id))

	for {
		if ctx.Err() != nil {
			s.logger.Debug("conversion worker stopping", slog.Int("worker_id", id))
			return
		}

		claimed, err := s.queue.ClaimNextTask(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("failed to claim task", slog.Int("worker_id", id), slog.String("error", err.Error()))
			}
			s.wait(ctx, s.config.ErrorBackoff, nil)
			continue
		}

		task, ok := claimed.Get()
		if !ok {
			// Periodic check for tasks in case a notification was missed.
			s.wait(ctx, s.config.IdleInterval, s.queue.Notify())
			continue
		}

		s.process(ctx, id, &task)
	}
}

// wait blocks for d, or until wake fires, or until ctx is done.
func (s *ConversionService) wait(ctx context.Context, d time.Duration, wake <-chan struct{}) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-wake:
	}
}

// process drives one claimed task to a terminal status.
func (s *ConversionService) process(ctx context.Context, workerID int, task *domain.ConversionTask) {
	logger := s.logger.With(
		slog.Int("worker_id", workerID),
		slog.Int64("task_id", task.ID),
		slog.String("source", task.SourcePath),
	)
	logger.Info("starting conversion", slog.Bool("reconversion", task.IsReconversion()))

	// A claimed task runs to completion even when Stop cancels ctx.
	taskCtx := context.WithoutCancel(ctx)

	started := time.Now()
	itemID, err := s.convertSafely(taskCtx, task, logger)
	if err != nil {
		logger.Error("conversion failed", slog.String("error", err.Error()))
		s.resolve(ctx, logger, "failed", func(c context.Context) error {
			return s.queue.MarkFailed(c, task.ID, err.Error())
		})
		return
	}

	if !s.resolve(ctx, logger, "completed", func(c context.Context) error {
		return s.queue.MarkCompleted(c, task.ID)
	}) {
		return
	}

	logger.Info("conversion completed",
		slog.String("item_id", itemID),
		slog.Duration("duration", time.Since(started)),
	)

	s.publisher.Publish(context.WithoutCancel(ctx))
}

// resolve records a terminal status, retrying store errors with the error backoff
// until it succeeds or the service stops. It reports whether the status was stored.
func (s *ConversionService) resolve(ctx context.Context, logger *slog.Logger, status string, mark func(context.Context) error) bool {
	// The terminal write must not be aborted by shutdown; only the retry loop is.
	markCtx := context.WithoutCancel(ctx)

	for {
		err := mark(markCtx)
		if err == nil {
			return true
		}

		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			logger.Error("cannot mark task "+status, slog.String("error", err.Error()))
			return false
		}

		logger.Warn("failed to mark task "+status+", retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", s.config.ErrorBackoff))

		s.wait(ctx, s.config.ErrorBackoff, nil)
		if ctx.Err() != nil {
			logger.Error("service stopped before task was marked " + status)
			return false
		}
	}
}

// convertSafely runs convert and turns a panic into a task failure.
func (s *ConversionService) convertSafely(ctx context.Context, task *domain.ConversionTask, logger *slog.Logger) (itemID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during conversion", slog.Any("panic", r))
			itemID, err = "", fmt.Errorf("panic during conversion: %v", r)
		}
	}()
	return s.convert(ctx, task, logger)
}

// convert reads, transcodes and stores one picture, then records the item.
func (s *ConversionService) convert(ctx context.Context, task *domain.ConversionTask, logger *slog.Logger) (string, error) {
	data, err := s.raw.Read(task.SourcePath)
	if err != nil {
		return "", err
	}

	converted, err := s.converter.Convert(data)
	if err != nil {
		return "", err
	}
	logger.Debug("picture converted",
		slog.String("format", converted.Format),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(converted.Data)))

	itemID, err := s.writeOutput(task, converted.Data)
	if err != nil {
		return "", err
	}

	blurHash, err := images.ComputeBlurHash(converted.Image)
	if err != nil {
		logger.Warn("failed to compute blurhash", slog.String("error", err.Error()))
		blurHash = ""
	}

	if target, ok := task.TargetItemID.Get(); ok {
		err = s.replaceItem(ctx, target, itemID, blurHash, logger)
	} else {
		err = s.items.InsertItem(ctx, &domain.Item{
			ID:          itemID,
			DisplayName: task.SourceName,
			Locator:     domain.LocatorFor(itemID),
			BlurHash:    blurHash,
			LikeCount:   0,
			CreatedAt:   s.now().UTC(),
		})
		if err != nil {
			err = fmt.Errorf("insert item: %w", err)
		}
	}
	if err != nil {
		if rmErr := s.uploads.Delete(itemID); rmErr != nil {
			logger.Warn("failed to remove orphaned output", slog.String("error", rmErr.Error()))
		}
		return "", err
	}

	if err := s.raw.Remove(task.SourcePath); err != nil {
		logger.Warn("failed to remove raw input", slog.String("error", err.Error()))
	}

	return itemID, nil
}

// writeOutput stores the converted bytes under a fresh item ID: a timestamp for
// new uploads or the target's base name for re-conversions. When that file
// already exists the base gets a "_<UnixNano>" suffix.
func (s *ConversionService) writeOutput(task *domain.ConversionTask, data []byte) (string, error) {
	base := strconv.FormatInt(s.now().UnixNano(), 10)
	if target, ok := task.TargetItemID.Get(); ok {
		base = domain.BaseID(target)
	}

	itemID := base + domain.ConvertedExt
	for attempt := 0; ; attempt++ {
		err := s.uploads.Create(itemID, data)
		if err == nil {
			return itemID, nil
		}
		if !errors.Is(err, fs.ErrExist) || attempt == maxOutputAttempts {
			return "", fmt.Errorf("write output: %w", err)
		}
		itemID = base + "_" + strconv.FormatInt(s.now().UnixNano()+int64(attempt), 10) + domain.ConvertedExt
	}
}

// replaceItem points an existing item at its re-converted file, keeping likes
// and creation time, then removes the superseded file.
func (s *ConversionService) replaceItem(ctx context.Context, oldID, newID, blurHash string, logger *slog.Logger) error {
	existing, err := s.items.GetItem(ctx, oldID)
	if err != nil {
		return fmt.Errorf("load item %s: %w", oldID, err)
	}

	updated := *existing
	updated.ID = newID
	updated.Locator = domain.LocatorFor(newID)
	updated.BlurHash = blurHash

	if err := s.items.RenameItem(ctx, oldID, &updated); err != nil {
		return fmt.Errorf("rename item %s: %w", oldID, err)
	}

	if s.uploads.Path(oldID) != s.uploads.Path(newID) {
		if err := s.uploads.Delete(oldID); err != nil {
			logger.Warn("failed to remove superseded file",
				slog.String("item_id", oldID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}
