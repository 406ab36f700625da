package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredCodePurger deletes verification codes past their expiry
type ExpiredCodePurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically removes expired verification codes
type CleanupManager struct {
	purger   ExpiredCodePurger
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(purger ExpiredCodePurger, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		purger:   purger,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep immediately and then on every tick until Stop or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := cm.purger.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clean up expired verification codes", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		cm.logger.Info("expired verification codes removed", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
