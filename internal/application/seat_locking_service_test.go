package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
	redisinfra "github.com/VishalSolanki135/Capsule-Cabs/internal/infrastructure/redis"
)

type lockingFixture struct {
	service     *SeatLockingService
	inventories *fakeInventoryRepo
	routes      *fakeRouteRepo
	locks       *fakeLockManager
	holds       *fakeHoldsIndex
}

func newLockingFixture(t *testing.T) *lockingFixture {
	t.Helper()
	f := &lockingFixture{
		inventories: newFakeInventoryRepo(),
		routes:      newFakeRouteRepo(testRoute()),
		locks:       newFakeLockManager(),
		holds:       newFakeHoldsIndex(),
	}
	f.service = NewSeatLockingService(f.inventories, f.routes, f.locks, f.holds, nil, SeatLockingConfig{
		LeaseTTL:           30 * time.Second,
		DefaultHoldMinutes: 15,
		MaxHoldMinutes:     30,
	})
	return f
}

func TestSeatLockingService_LockSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("在庫を遅延初期化して座席をロックできる", func(t *testing.T) {
		f := newLockingFixture(t)
		result, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, result.LockedSeats)

		inv, err := f.inventories.Get(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)
		assert.Equal(t, 2, inv.Summary.LockedCount)
		assert.Equal(t, 3, inv.Summary.AvailableCount)
		assert.Equal(t, 1, inv.Summary.BlockedCount)

		// ホールド索引にも記録される
		record, err := f.holds.Get(ctx, "user-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, record.SeatNumbers)
		assert.True(t, record.LockExpiry.Equal(result.LockExpiry))

		// リースは解放済み
		assert.Equal(t, f.locks.acquires, f.locks.releases)
	})

	t.Run("重複する座席のロックは片方だけ成功する", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)

		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"2", "3"}, "user-b", 15)
		var unavailable *inventory.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []string{"2"}, unavailable.Seats)

		// 全件失敗: 座席3は変更されない
		inv, _ := f.inventories.Get(ctx, "route-1", "2024-01-15")
		assert.Equal(t, inventory.StatusAvailable, inv.Seat("3").Status)
		assert.Equal(t, 2, inv.Summary.LockedCount)
	})

	t.Run("リース競合はErrLockAcquisitionFailed", func(t *testing.T) {
		f := newLockingFixture(t)
		release := f.locks.hold(redisinfra.LockKey("route-1", "2024-01-15"))
		defer release()

		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		assert.ErrorIs(t, err, ErrLockAcquisitionFailed)
	})

	t.Run("ドメインエラーでもリースは解放される", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"6"}, "user-a", 15)
		var unavailable *inventory.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, f.locks.acquires, f.locks.releases)
	})

	t.Run("保存エラーでもリースは解放される", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)
		f.inventories.failSave = true

		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.Error(t, err)
		assert.Equal(t, f.locks.acquires, f.locks.releases)
	})

	t.Run("ホールド時間は上限に丸められる", func(t *testing.T) {
		f := newLockingFixture(t)
		before := time.Now()
		result, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 120)
		require.NoError(t, err)
		assert.WithinDuration(t, before.Add(30*time.Minute), result.LockExpiry, 2*time.Second)
	})

	t.Run("座席番号なしはエラー", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", nil, "user-a", 15)
		assert.ErrorIs(t, err, inventory.ErrSeatNumbersRequired)
	})

	t.Run("乗車日の形式不正はエラー", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "15-01-2024", []string{"1"}, "user-a", 15)
		assert.ErrorIs(t, err, ErrInvalidTravelDate)
	})
}

func TestSeatLockingService_ConfirmBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("保持者はロック座席を確定できる", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)

		err = f.service.ConfirmBooking(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", "SB20240115000123")
		require.NoError(t, err)

		inv, _ := f.inventories.Get(ctx, "route-1", "2024-01-15")
		assert.Equal(t, 2, inv.Summary.BookedCount)
		assert.Equal(t, 0, inv.Summary.LockedCount)
		assert.Equal(t, "SB20240115000123", *inv.Seat("1").BookingID)

		// 確定でホールド索引は削除される
		_, err = f.holds.Get(ctx, "user-a")
		assert.ErrorIs(t, err, redisinfra.ErrHoldNotFound)
	})

	t.Run("保持者以外の確定はOwnershipMismatch", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)

		err = f.service.ConfirmBooking(ctx, "route-1", "2024-01-15", []string{"1"}, "user-b", "SB20240115000123")
		assert.ErrorIs(t, err, inventory.ErrOwnershipMismatch)
		assert.Equal(t, f.locks.acquires, f.locks.releases)
	})

	t.Run("期限切れロックの確定はErrLockExpired", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)

		// リーパー実行前でも確定は拒否される
		f.service.now = func() time.Time { return time.Now().Add(20 * time.Minute) }
		err = f.service.ConfirmBooking(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", "SB20240115000123")
		assert.ErrorIs(t, err, inventory.ErrLockExpired)
	})

	t.Run("在庫がなければNotFound", func(t *testing.T) {
		f := newLockingFixture(t)
		err := f.service.ConfirmBooking(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", "SB20240115000123")
		assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	})
}

func TestSeatLockingService_ReleaseSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("自分のロック座席を解放できる", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)

		released, err := f.service.ReleaseSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a")
		require.NoError(t, err)
		assert.Equal(t, 2, released)

		inv, _ := f.inventories.Get(ctx, "route-1", "2024-01-15")
		assert.Equal(t, 5, inv.Summary.AvailableCount)
	})

	t.Run("他人のロック座席は黙ってスキップされる", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)

		released, err := f.service.ReleaseSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-b")
		require.NoError(t, err)
		assert.Equal(t, 0, released)
	})

	t.Run("在庫がなければNotFound", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.ReleaseSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a")
		assert.ErrorIs(t, err, inventory.ErrInventoryNotFound)
	})
}

func TestSeatLockingService_ExtendSeatLock(t *testing.T) {
	ctx := context.Background()

	t.Run("アクティブホールドの期限を延長できる", func(t *testing.T) {
		f := newLockingFixture(t)
		result, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)

		extended, err := f.service.ExtendSeatLock(ctx, "user-a", 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"1", "2"}, extended.SeatNumbers)
		assert.True(t, extended.NewExpiry.Equal(result.LockExpiry.Add(10*time.Minute)))

		inv, _ := f.inventories.Get(ctx, "route-1", "2024-01-15")
		assert.True(t, inv.Seat("1").LockExpiry.Equal(extended.NewExpiry))

		record, err := f.holds.Get(ctx, "user-a")
		require.NoError(t, err)
		assert.True(t, record.LockExpiry.Equal(extended.NewExpiry))
	})

	t.Run("ホールドがなければErrNoActiveHold", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.ExtendSeatLock(ctx, "user-a", 10)
		assert.ErrorIs(t, err, ErrNoActiveHold)
	})

	t.Run("索引が残っていても在庫側にロックがなければErrNoActiveHold", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)

		// 永続在庫が正: 索引の残骸は無視される
		stale := &redisinfra.HoldRecord{RouteID: "route-1", TravelDate: "2024-01-15", SeatNumbers: []string{"1"}}
		require.NoError(t, f.holds.Set(ctx, "user-a", stale, time.Minute))

		_, err = f.service.ExtendSeatLock(ctx, "user-a", 10)
		assert.ErrorIs(t, err, ErrNoActiveHold)
	})
}

func TestSeatLockingService_CancelBookingSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("予約座席を解放できる", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)
		require.NoError(t, f.service.ConfirmBooking(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", "SB20240115000123"))

		released, err := f.service.CancelBookingSeats(ctx, "route-1", "2024-01-15", "SB20240115000123")
		require.NoError(t, err)
		assert.Equal(t, 2, released)

		// キャンセル後は別ユーザーが再ロックできる
		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-b", 15)
		require.NoError(t, err)
	})

	t.Run("該当座席がなければNotFound", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)

		_, err = f.service.CancelBookingSeats(ctx, "route-1", "2024-01-15", "SB20240115999999")
		assert.ErrorIs(t, err, inventory.ErrBookingSeatsNotFound)
	})
}

func TestSeatLockingService_ReleaseExpiredLocks(t *testing.T) {
	ctx := context.Background()

	t.Run("期限切れロックを回収する", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1", "2"}, "user-a", 15)
		require.NoError(t, err)
		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-16", []string{"3"}, "user-b", 15)
		require.NoError(t, err)

		// 時間を進めてすべてのホールドを失効させる
		f.service.now = func() time.Time { return time.Now().Add(20 * time.Minute) }

		cleaned, err := f.service.ReleaseExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, cleaned)

		inv, _ := f.inventories.Get(ctx, "route-1", "2024-01-15")
		assert.Equal(t, 0, inv.Summary.LockedCount)
		assert.Equal(t, 5, inv.Summary.AvailableCount)
	})

	t.Run("再実行しても冪等", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)

		f.service.now = func() time.Time { return time.Now().Add(20 * time.Minute) }
		cleaned, err := f.service.ReleaseExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, cleaned)

		cleaned, err = f.service.ReleaseExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, cleaned)
	})

	t.Run("リース競合の在庫はスキップして続行する", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)
		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-16", []string{"2"}, "user-b", 15)
		require.NoError(t, err)

		f.service.now = func() time.Time { return time.Now().Add(20 * time.Minute) }

		// 片方の在庫はリクエスト処理中
		release := f.locks.hold(redisinfra.LockKey("route-1", "2024-01-15"))
		defer release()

		cleaned, err := f.service.ReleaseExpiredLocks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, cleaned)
	})
}

func TestSeatLockingService_InitializeForRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("路線テンプレートから在庫を生成する", func(t *testing.T) {
		f := newLockingFixture(t)
		inv, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)
		assert.Equal(t, 6, inv.Summary.TotalSeats)
		assert.Equal(t, 5, inv.Summary.AvailableCount)
		assert.Equal(t, 1, inv.Summary.BlockedCount)
		assert.Equal(t, 600, inv.Seat("1").Price)
	})

	t.Run("2回目の呼び出しは既存在庫を返す（冪等）", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)
		_, err = f.service.LockSeats(ctx, "route-1", "2024-01-15", []string{"1"}, "user-a", 15)
		require.NoError(t, err)

		inv, err := f.service.InitializeForRoute(ctx, "route-1", "2024-01-15")
		require.NoError(t, err)
		// 既存のロックは保持されたまま
		assert.Equal(t, 1, inv.Summary.LockedCount)
	})

	t.Run("存在しない路線はエラー", func(t *testing.T) {
		f := newLockingFixture(t)
		_, err := f.service.InitializeForRoute(ctx, "route-404", "2024-01-15")
		require.Error(t, err)
	})
}
