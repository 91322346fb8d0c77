package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
)

// itemColumns is the ordered list of columns selected in item queries.
// Must match the scan order in scanItem.
const itemColumns = `id, display_name, locator, blur_hash, like_count, created_at`

// scanItem scans a sql.Row (or sql.Rows via its Scan method) into a domain.Item.
func scanItem(scanner interface{ Scan(dest ...any) error }) (*domain.Item, error) {
	var (
		item      domain.Item
		createdAt string
	)

	err := scanner.Scan(
		&item.ID,
		&item.DisplayName,
		&item.Locator,
		&item.BlurHash,
		&item.LikeCount,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	item.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for item %s: %w", item.ID, err)
	}
	return &item, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	ctx = ensureContext(ctx)
	var items []*domain.Item
	err := retryOnBusy(ctx, func() error {
		items = items[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem retrieves an item by ID.
// Returns store.ErrItemNotFound if the item does not exist.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	ctx = ensureContext(ctx)

	var item *domain.Item
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
		var scanErr error
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetRecentItems returns up to limit items, newest first.
func (s *Store) GetRecentItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	if limit <= 0 {
		return nil, store.ErrInvalidInput.WithMessage("limit must be positive")
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// GetRankedItems returns every item ordered by likes, most liked first.
// Ties go to the newer item.
func (s *Store) GetRankedItems(ctx context.Context) ([]*domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY like_count DESC, created_at DESC, id DESC`)
}

// ListItems returns every item in creation order.
func (s *Store) ListItems(ctx context.Context) ([]*domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
}

// InsertItem stores a new item.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) InsertItem(ctx context.Context, item *domain.Item) error {
	if item.ID == "" {
		return store.ErrInvalidInput.WithMessage("item id is required")
	}
	if item.LikeCount < 0 {
		return store.ErrInvalidInput.WithMessage("like count cannot be negative")
	}

	_, err := s.execWithRetry(ctx, `
		INSERT INTO items (id, display_name, locator, blur_hash, like_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.DisplayName,
		item.Locator,
		item.BlurHash,
		item.LikeCount,
		formatTime(item.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessage("item already exists").WithCause(err)
		}
		return fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	return nil
}

// RenameItem moves an item to a new ID and locator after re-conversion.
// Like count, display name and creation time are preserved.
func (s *Store) RenameItem(ctx context.Context, oldID string, updated *domain.Item) error {
	if updated.ID == "" {
		return store.ErrInvalidInput.WithMessage("item id is required")
	}

	result, err := s.execWithRetry(ctx, `
		UPDATE items SET id = ?, locator = ?, blur_hash = ?
		WHERE id = ?`,
		updated.ID,
		updated.Locator,
		updated.BlurHash,
		oldID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessage("item already exists").WithCause(err)
		}
		return fmt.Errorf("rename item %s: %w", oldID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

// IncrementLikeCount adds one like to an item with a single atomic UPDATE.
// Returns store.ErrItemNotFound if the item does not exist.
func (s *Store) IncrementLikeCount(ctx context.Context, id string) error {
	result, err := s.execWithRetry(ctx,
		`UPDATE items SET like_count = like_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment likes for %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}
