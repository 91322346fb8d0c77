package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/hub"
	"github.com/picsapp/picsapp-server/internal/store"
)

// RankingPublisher renders the ranked item list and pushes it to live viewers.
type RankingPublisher struct {
	items  store.ItemStore
	hub    hub.Publisher
	logger *slog.Logger
}

// NewRankingPublisher creates a publisher.
func NewRankingPublisher(items store.ItemStore, h hub.Publisher, logger *slog.Logger) *RankingPublisher {
	return &RankingPublisher{
		items:  items,
		hub:    h,
		logger: logger,
	}
}

// Snapshot returns the full ranking (likes desc, newest first on ties) as a JSON array.
func (p *RankingPublisher) Snapshot(ctx context.Context) ([]byte, error) {
	items, err := p.items.GetRankedItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	if items == nil {
		items = []*domain.Item{}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal ranking: %w", err)
	}
	return payload, nil
}

// Publish broadcasts a fresh snapshot. Failures are logged; the change that
// triggered the publish has already been committed.
func (p *RankingPublisher) Publish(ctx context.Context) {
	payload, err := p.Snapshot(ctx)
	if err != nil {
		p.logger.Error("failed to build ranking snapshot", slog.String("error", err.Error()))
		return
	}
	p.hub.Broadcast(payload)
}
