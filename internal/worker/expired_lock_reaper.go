package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/logger"
)

// LockReaper は期限切れ座席ロックを回収するインターフェース
type LockReaper interface {
	ReleaseExpiredLocks(ctx context.Context) (int, error)
}

// ExpiredLockReaper は期限切れ座席ロックを定期的に回収するワーカー。
// 共有メモリ状態を持たないため、複数インスタンスで同時に動かしても
// リース競合分がスキップされるだけで安全に動作する。
type ExpiredLockReaper struct {
	lockingService LockReaper
	interval       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewExpiredLockReaper は新しいリーパーを作成
func NewExpiredLockReaper(ls LockReaper, interval time.Duration) *ExpiredLockReaper {
	return &ExpiredLockReaper{
		lockingService: ls,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はリーパーを開始
func (r *ExpiredLockReaper) Start(ctx context.Context) {
	logger.Info("期限切れロックリーパー開始",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れロックリーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れロックリーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// Stop はリーパーを停止
func (r *ExpiredLockReaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reap は期限切れロックを回収
func (r *ExpiredLockReaper) reap(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れロックの回収開始")

	count, err := r.lockingService.ReleaseExpiredLocks(ctx)
	if err != nil {
		log.Error("期限切れロックの回収失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れロックを回収", zap.Int("count", count))
	} else {
		log.Debug("期限切れロックなし")
	}
}
