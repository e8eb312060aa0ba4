package api

import (
	"context"
	"log/slog"
	"time"

	"NewsAnalyst/internal/ports"
)

// StoreHealth is healthy while the article store answers a stats query.
type StoreHealth struct {
	store  ports.ArticleStore
	logger *slog.Logger
}

func NewStoreHealth(store ports.ArticleStore, logger *slog.Logger) *StoreHealth {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreHealth{store: store, logger: logger}
}

func (h *StoreHealth) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := h.store.Stats(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}
