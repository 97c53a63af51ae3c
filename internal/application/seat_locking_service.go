package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
	redisinfra "github.com/VishalSolanki135/Capsule-Cabs/internal/infrastructure/redis"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/logger"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/pkg/metrics"
)

// Lease は取得済みの分散ロックリースを表す
type Lease interface {
	Release(ctx context.Context) error
}

// LockManager は在庫単位の分散ロックを提供する。
// 取得はノンブロッキングで、競合は即座にエラーとして返る。
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// HoldsIndex はユーザーのアクティブホールド索引。
// 非正規化キャッシュであり、永続在庫と食い違う場合は在庫が正。
type HoldsIndex interface {
	Get(ctx context.Context, userID string) (*redisinfra.HoldRecord, error)
	Set(ctx context.Context, userID string, record *redisinfra.HoldRecord, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

// redisLockAdapter はRouteLockManagerをLockManagerに適合させる
type redisLockAdapter struct {
	manager *redisinfra.RouteLockManager
}

// NewRedisLockManager はRedis実装のLockManagerを作成する
func NewRedisLockManager(m *redisinfra.RouteLockManager) LockManager {
	return &redisLockAdapter{manager: m}
}

func (a *redisLockAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	lock, err := a.manager.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// SeatLockingService は座席ロックのオーケストレーションを担う。
// すべての在庫変更は「リース取得→読み込み→変更→保存→リース解放」の
// 順で行い、リースは成功・失敗を問わず必ず解放される。
type SeatLockingService struct {
	inventories inventory.Repository
	routes      route.Repository
	locks       LockManager
	holds       HoldsIndex
	metrics     *metrics.Metrics

	leaseTTL           time.Duration
	defaultHoldMinutes int
	maxHoldMinutes     int

	now func() time.Time
}

// SeatLockingConfig はSeatLockingServiceの動作設定
type SeatLockingConfig struct {
	LeaseTTL           time.Duration
	DefaultHoldMinutes int
	MaxHoldMinutes     int
}

func NewSeatLockingService(
	ir inventory.Repository,
	rr route.Repository,
	lm LockManager,
	hi HoldsIndex,
	m *metrics.Metrics,
	cfg SeatLockingConfig,
) *SeatLockingService {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.DefaultHoldMinutes <= 0 {
		cfg.DefaultHoldMinutes = 15
	}
	if cfg.MaxHoldMinutes <= 0 {
		cfg.MaxHoldMinutes = 30
	}
	return &SeatLockingService{
		inventories:        ir,
		routes:             rr,
		locks:              lm,
		holds:              hi,
		metrics:            m,
		leaseTTL:           cfg.LeaseTTL,
		defaultHoldMinutes: cfg.DefaultHoldMinutes,
		maxHoldMinutes:     cfg.MaxHoldMinutes,
		now:                time.Now,
	}
}

// withRouteLock は路線・乗車日スコープのリースを取得してfnを実行する。
// リースの解放はすべての復帰経路で保証される。
func (s *SeatLockingService) withRouteLock(ctx context.Context, routeID, travelDate string, fn func(ctx context.Context) error) error {
	start := time.Now()
	lease, err := s.locks.Acquire(ctx, redisinfra.LockKey(routeID, travelDate), s.leaseTTL)
	if err != nil {
		s.observeLock("acquire", "failed", time.Since(start))
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return ErrLockAcquisitionFailed
		}
		return fmt.Errorf("ロック取得に失敗: %w", err)
	}
	s.observeLock("acquire", "success", time.Since(start))

	defer func() {
		rstart := time.Now()
		if rerr := lease.Release(ctx); rerr != nil {
			// TTL失効後の解放失敗はリースが自然回収されるため致命的ではない
			s.observeLock("release", "failed", time.Since(rstart))
			logger.Warn("リース解放に失敗",
				zap.String("route_id", routeID),
				zap.String("travel_date", travelDate),
				zap.Error(rerr),
			)
			return
		}
		s.observeLock("release", "success", time.Since(rstart))
	}()

	return fn(ctx)
}

func (s *SeatLockingService) observeLock(operation, status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(d.Seconds())
	}
}

func (s *SeatLockingService) countLock(status string) {
	if s.metrics != nil {
		s.metrics.SeatLocksTotal.WithLabelValues(status).Inc()
	}
}

// loadOrInit は在庫を取得し、なければ路線テンプレートから生成する。
// 呼び出し元がリースを保持していることを前提とする。
func (s *SeatLockingService) loadOrInit(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error) {
	inv, err := s.inventories.Get(ctx, routeID, travelDate)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, inventory.ErrInventoryNotFound) {
		return nil, err
	}

	rt, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	inv = inventory.NewFromRoute(rt, travelDate)
	if err := s.inventories.Create(ctx, inv); err != nil {
		return nil, err
	}
	logger.Info("座席在庫を初期化",
		zap.String("route_id", routeID),
		zap.String("travel_date", travelDate),
		zap.Int("total_seats", inv.Summary.TotalSeats),
	)
	return inv, nil
}

// LockResult は座席ロックの結果
type LockResult struct {
	LockedSeats []string
	LockExpiry  time.Time
}

// LockSeats は指定座席を一括ロックする。1席でも確保できなければ
// 全体が失敗し、1席も状態は変わらない。
func (s *SeatLockingService) LockSeats(ctx context.Context, routeID, travelDate string, seatNumbers []string, userID string, holdMinutes int) (*LockResult, error) {
	if len(seatNumbers) == 0 {
		return nil, inventory.ErrSeatNumbersRequired
	}
	if err := validateTravelDate(travelDate); err != nil {
		return nil, err
	}
	if holdMinutes <= 0 {
		holdMinutes = s.defaultHoldMinutes
	}
	if holdMinutes > s.maxHoldMinutes {
		holdMinutes = s.maxHoldMinutes
	}
	holdFor := time.Duration(holdMinutes) * time.Minute

	var result *LockResult
	err := s.withRouteLock(ctx, routeID, travelDate, func(ctx context.Context) error {
		inv, err := s.loadOrInit(ctx, routeID, travelDate)
		if err != nil {
			return err
		}

		now := s.now()
		if err := inv.Lock(seatNumbers, userID, holdFor, now); err != nil {
			return err
		}
		if err := s.inventories.Save(ctx, inv); err != nil {
			return fmt.Errorf("在庫保存に失敗: %w", err)
		}

		expiry := now.Add(holdFor)
		result = &LockResult{LockedSeats: seatNumbers, LockExpiry: expiry}

		// ホールド索引は参照用キャッシュ。書き込み失敗でロック自体は失敗させない。
		record := &redisinfra.HoldRecord{
			RouteID:     routeID,
			TravelDate:  travelDate,
			SeatNumbers: seatNumbers,
			LockExpiry:  expiry,
		}
		if err := s.holds.Set(ctx, userID, record, holdFor); err != nil {
			logger.Warn("ホールド索引の更新に失敗", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		s.countLock(lockFailureStatus(err))
		return nil, err
	}
	s.countLock("success")
	return result, nil
}

func lockFailureStatus(err error) string {
	var unavailable *inventory.SeatUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.Is(err, ErrLockAcquisitionFailed):
		return "lock_conflict"
	default:
		return "error"
	}
}

// ConfirmBooking はロック済み座席を予約確定に遷移させる。
// 保持者不一致・期限切れはエラーとしてそのまま伝播する。
func (s *SeatLockingService) ConfirmBooking(ctx context.Context, routeID, travelDate string, seatNumbers []string, userID, bookingID string) error {
	if len(seatNumbers) == 0 {
		return inventory.ErrSeatNumbersRequired
	}
	return s.withRouteLock(ctx, routeID, travelDate, func(ctx context.Context) error {
		inv, err := s.inventories.Get(ctx, routeID, travelDate)
		if err != nil {
			return err
		}
		if err := inv.Confirm(seatNumbers, userID, bookingID, s.now()); err != nil {
			return err
		}
		if err := s.inventories.Save(ctx, inv); err != nil {
			return fmt.Errorf("在庫保存に失敗: %w", err)
		}
		if err := s.holds.Delete(ctx, userID); err != nil {
			logger.Warn("ホールド索引の削除に失敗", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
}

// ReleaseSeats はロック済み座席を明示的に解放し、解放数を返す。
// 対象外の座席は黙ってスキップされる。
func (s *SeatLockingService) ReleaseSeats(ctx context.Context, routeID, travelDate string, seatNumbers []string, userID string) (int, error) {
	released := 0
	err := s.withRouteLock(ctx, routeID, travelDate, func(ctx context.Context) error {
		inv, err := s.inventories.Get(ctx, routeID, travelDate)
		if err != nil {
			return err
		}
		released = inv.Release(seatNumbers, userID, s.now())
		if released == 0 {
			return nil
		}
		if err := s.inventories.Save(ctx, inv); err != nil {
			return fmt.Errorf("在庫保存に失敗: %w", err)
		}
		if err := s.holds.Delete(ctx, userID); err != nil {
			logger.Warn("ホールド索引の削除に失敗", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// ExtendResult はロック延長の結果
type ExtendResult struct {
	SeatNumbers []string
	NewExpiry   time.Time
}

// ExtendSeatLock はユーザーのアクティブホールドの有効期限を延長する。
// ホールド索引で対象在庫を特定した後、永続在庫を正として検証する。
func (s *SeatLockingService) ExtendSeatLock(ctx context.Context, userID string, additionalMinutes int) (*ExtendResult, error) {
	if additionalMinutes <= 0 {
		additionalMinutes = s.defaultHoldMinutes
	}
	record, err := s.holds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, redisinfra.ErrHoldNotFound) {
			return nil, ErrNoActiveHold
		}
		return nil, err
	}

	var result *ExtendResult
	err = s.withRouteLock(ctx, record.RouteID, record.TravelDate, func(ctx context.Context) error {
		inv, err := s.inventories.Get(ctx, record.RouteID, record.TravelDate)
		if err != nil {
			return err
		}

		now := s.now()
		seats := inv.SeatsLockedBy(userID, now)
		if len(seats) == 0 {
			// 索引が残っていても在庫側にロックがなければホールドは存在しない
			return ErrNoActiveHold
		}

		current := *inv.Seat(seats[0]).LockExpiry
		newExpiry := current.Add(time.Duration(additionalMinutes) * time.Minute)
		inv.ExtendLocks(userID, newExpiry, now)
		if err := s.inventories.Save(ctx, inv); err != nil {
			return fmt.Errorf("在庫保存に失敗: %w", err)
		}

		result = &ExtendResult{SeatNumbers: seats, NewExpiry: newExpiry}

		refreshed := &redisinfra.HoldRecord{
			RouteID:     record.RouteID,
			TravelDate:  record.TravelDate,
			SeatNumbers: seats,
			LockExpiry:  newExpiry,
		}
		if err := s.holds.Set(ctx, userID, refreshed, time.Until(newExpiry)); err != nil {
			logger.Warn("ホールド索引の更新に失敗", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelBookingSeats は予約IDに紐づくbooked座席を解放する（在庫側のキャンセル）
func (s *SeatLockingService) CancelBookingSeats(ctx context.Context, routeID, travelDate, bookingID string) (int, error) {
	released := 0
	err := s.withRouteLock(ctx, routeID, travelDate, func(ctx context.Context) error {
		inv, err := s.inventories.Get(ctx, routeID, travelDate)
		if err != nil {
			return err
		}
		released = inv.CancelBooking(bookingID, s.now())
		if released == 0 {
			return inventory.ErrBookingSeatsNotFound
		}
		if err := s.inventories.Save(ctx, inv); err != nil {
			return fmt.Errorf("在庫保存に失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// ReleaseExpiredLocks は期限切れロックの座席を回収する。
// 在庫ごとにリクエスト系と同じリース規律で直列化され、
// 個別の失敗はログに残して次の在庫へ進む。
func (s *SeatLockingService) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	now := s.now()
	keys, err := s.inventories.FindKeysWithExpiredLocks(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("期限切れロックの検索に失敗: %w", err)
	}

	total := 0
	for _, key := range keys {
		err := s.withRouteLock(ctx, key.RouteID, key.TravelDate, func(ctx context.Context) error {
			inv, err := s.inventories.Get(ctx, key.RouteID, key.TravelDate)
			if err != nil {
				return err
			}
			reclaimed := inv.ReleaseExpired(s.now())
			if reclaimed == 0 {
				return nil
			}
			if err := s.inventories.Save(ctx, inv); err != nil {
				return fmt.Errorf("在庫保存に失敗: %w", err)
			}
			total += reclaimed
			return nil
		})
		if err != nil {
			// リース競合はリクエスト処理中の在庫。次回スイープで回収する。
			logger.Warn("期限切れロックの回収をスキップ",
				zap.String("route_id", key.RouteID),
				zap.String("travel_date", key.TravelDate),
				zap.Error(err),
			)
		}
	}
	if total > 0 && s.metrics != nil {
		s.metrics.ExpiredSeatsReclaimed.Add(float64(total))
	}
	return total, nil
}

// InitializeForRoute は在庫を生成する。既存在庫がある場合はそのまま返す（冪等）。
func (s *SeatLockingService) InitializeForRoute(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error) {
	if err := validateTravelDate(travelDate); err != nil {
		return nil, err
	}
	var inv *inventory.SeatInventory
	err := s.withRouteLock(ctx, routeID, travelDate, func(ctx context.Context) error {
		loaded, err := s.loadOrInit(ctx, routeID, travelDate)
		if err != nil {
			return err
		}
		inv = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInventory は表示用の在庫スナップショットをリースなしで取得する。
// 結果は結果整合のスナップショットであり、予約判断には使わない。
func (s *SeatLockingService) GetInventory(ctx context.Context, routeID, travelDate string) (*inventory.SeatInventory, error) {
	return s.inventories.Get(ctx, routeID, travelDate)
}

func validateTravelDate(travelDate string) error {
	if _, err := time.Parse("2006-01-02", travelDate); err != nil {
		return ErrInvalidTravelDate
	}
	return nil
}
