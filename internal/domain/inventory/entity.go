package inventory

import (
	"time"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
)

// SeatStatus は座席の状態を表す
type SeatStatus string

const (
	StatusAvailable SeatStatus = "available"
	StatusLocked    SeatStatus = "locked"
	StatusBooked    SeatStatus = "booked"
	// StatusBlocked は運行者が設定する恒久的な販売停止状態。
	// 顧客操作による状態遷移の対象外。
	StatusBlocked SeatStatus = "blocked"
)

// Seat は在庫内の1座席を表す
type Seat struct {
	SeatNumber string         `json:"seat_number"`
	Status     SeatStatus     `json:"status"`
	Price      int            `json:"price"`
	SeatType   route.SeatType `json:"seat_type"`
	LockedBy   *string        `json:"locked_by,omitempty"`
	LockedAt   *time.Time     `json:"locked_at,omitempty"`
	LockExpiry *time.Time     `json:"lock_expiry,omitempty"`
	BookedBy   *string        `json:"booked_by,omitempty"`
	BookedAt   *time.Time     `json:"booked_at,omitempty"`
	BookingID  *string        `json:"booking_id,omitempty"`
}

// isLockExpired はロックが期限切れかを返す
func (s *Seat) isLockExpired(now time.Time) bool {
	return s.LockExpiry != nil && s.LockExpiry.Before(now)
}

// clearLock はロック関連フィールドをクリアする
func (s *Seat) clearLock() {
	s.LockedBy = nil
	s.LockedAt = nil
	s.LockExpiry = nil
}

// Summary は在庫の集計カウンターを表す。
// 常に座席列から導出され、個別には設定できない。
type Summary struct {
	TotalSeats     int `json:"total_seats"`
	AvailableCount int `json:"available_count"`
	LockedCount    int `json:"locked_count"`
	BookedCount    int `json:"booked_count"`
	BlockedCount   int `json:"blocked_count"`
}

// SeatInventory は路線・乗車日単位の座席在庫を表す
type SeatInventory struct {
	RouteID    string    `json:"route_id"`
	TravelDate string    `json:"travel_date"` // "2006-01-02"
	Seats      []Seat    `json:"seats"`
	Summary    Summary   `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewFromRoute は路線の座席テンプレートから在庫を生成する。
// IsBlockedの座席はblocked、それ以外はavailableで初期化される。
func NewFromRoute(r *route.Route, travelDate string) *SeatInventory {
	now := time.Now()
	seats := make([]Seat, len(r.SeatTemplate))
	for i, tpl := range r.SeatTemplate {
		status := StatusAvailable
		if tpl.IsBlocked {
			status = StatusBlocked
		}
		seats[i] = Seat{
			SeatNumber: tpl.SeatNumber,
			Status:     status,
			Price:      r.SeatPrice(tpl.SeatType),
			SeatType:   tpl.SeatType,
		}
	}
	inv := &SeatInventory{
		RouteID:    r.ID,
		TravelDate: travelDate,
		Seats:      seats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inv.recalculate()
	return inv
}

// recalculate は座席列からSummaryを再計算する
func (inv *SeatInventory) recalculate() {
	sum := Summary{TotalSeats: len(inv.Seats)}
	for i := range inv.Seats {
		switch inv.Seats[i].Status {
		case StatusAvailable:
			sum.AvailableCount++
		case StatusLocked:
			sum.LockedCount++
		case StatusBooked:
			sum.BookedCount++
		case StatusBlocked:
			sum.BlockedCount++
		}
	}
	inv.Summary = sum
}

// Seat は座席番号から座席を検索する
func (inv *SeatInventory) Seat(seatNumber string) *Seat {
	for i := range inv.Seats {
		if inv.Seats[i].SeatNumber == seatNumber {
			return &inv.Seats[i]
		}
	}
	return nil
}

// Lock は指定座席を一括でロックする。
// 1席でもavailableでない座席があれば全体を中断し、該当座席を列挙した
// SeatUnavailableErrorを返す（全件成功か全件失敗か）。
func (inv *SeatInventory) Lock(seatNumbers []string, userID string, holdFor time.Duration, now time.Time) error {
	var unavailable []string
	targets := make([]*Seat, 0, len(seatNumbers))
	for _, num := range seatNumbers {
		s := inv.Seat(num)
		if s == nil || s.Status != StatusAvailable {
			unavailable = append(unavailable, num)
			continue
		}
		targets = append(targets, s)
	}
	if len(unavailable) > 0 {
		return &SeatUnavailableError{Seats: unavailable}
	}

	// バッチ全体で同一のlockedAt/lockExpiryを設定する
	expiry := now.Add(holdFor)
	for _, s := range targets {
		s.Status = StatusLocked
		s.LockedBy = &userID
		lockedAt := now
		s.LockedAt = &lockedAt
		lockExpiry := expiry
		s.LockExpiry = &lockExpiry
	}
	inv.touch(now)
	return nil
}

// Confirm はロック済み座席を予約確定状態に遷移させる。
// 全座席がuserIDによってロックされ、かつ期限内であることを要求する。
func (inv *SeatInventory) Confirm(seatNumbers []string, userID, bookingID string, now time.Time) error {
	targets := make([]*Seat, 0, len(seatNumbers))
	for _, num := range seatNumbers {
		s := inv.Seat(num)
		if s == nil || s.Status != StatusLocked || s.LockedBy == nil || *s.LockedBy != userID {
			return ErrOwnershipMismatch
		}
		// 期限切れロックの確定は許可しない（リーパー実行前でも）
		if s.isLockExpired(now) {
			return ErrLockExpired
		}
		targets = append(targets, s)
	}

	for _, s := range targets {
		s.Status = StatusBooked
		s.clearLock()
		bookedBy := userID
		s.BookedBy = &bookedBy
		bookedAt := now
		s.BookedAt = &bookedAt
		id := bookingID
		s.BookingID = &id
	}
	inv.touch(now)
	return nil
}

// Release はロック済み座席をavailableに戻す。
// userIDが空でない場合はその保持者の座席のみ対象とし、
// 一致しない座席は黙ってスキップする。解放した座席数を返す。
func (inv *SeatInventory) Release(seatNumbers []string, userID string, now time.Time) int {
	released := 0
	for _, num := range seatNumbers {
		s := inv.Seat(num)
		if s == nil || s.Status != StatusLocked {
			continue
		}
		if userID != "" && (s.LockedBy == nil || *s.LockedBy != userID) {
			continue
		}
		s.Status = StatusAvailable
		s.clearLock()
		released++
	}
	if released > 0 {
		inv.touch(now)
	}
	return released
}

// ReleaseExpired は期限切れロックの座席をavailableに戻し、回収数を返す
func (inv *SeatInventory) ReleaseExpired(now time.Time) int {
	reclaimed := 0
	for i := range inv.Seats {
		s := &inv.Seats[i]
		if s.Status == StatusLocked && s.isLockExpired(now) {
			s.Status = StatusAvailable
			s.clearLock()
			reclaimed++
		}
	}
	if reclaimed > 0 {
		inv.touch(now)
	}
	return reclaimed
}

// HasExpiredLocks は期限切れロックの座席が存在するかを返す
func (inv *SeatInventory) HasExpiredLocks(now time.Time) bool {
	for i := range inv.Seats {
		s := &inv.Seats[i]
		if s.Status == StatusLocked && s.isLockExpired(now) {
			return true
		}
	}
	return false
}

// ExtendLocks はuserIDが保持する期限内ロックの有効期限を書き換え、
// 対象となった座席数を返す
func (inv *SeatInventory) ExtendLocks(userID string, newExpiry time.Time, now time.Time) int {
	extended := 0
	for i := range inv.Seats {
		s := &inv.Seats[i]
		if s.Status != StatusLocked || s.LockedBy == nil || *s.LockedBy != userID {
			continue
		}
		if s.isLockExpired(now) {
			continue
		}
		expiry := newExpiry
		s.LockExpiry = &expiry
		extended++
	}
	if extended > 0 {
		inv.touch(now)
	}
	return extended
}

// SeatsLockedBy はuserIDが現在ロックしている座席番号一覧を返す
func (inv *SeatInventory) SeatsLockedBy(userID string, now time.Time) []string {
	var seats []string
	for i := range inv.Seats {
		s := &inv.Seats[i]
		if s.Status == StatusLocked && s.LockedBy != nil && *s.LockedBy == userID && !s.isLockExpired(now) {
			seats = append(seats, s.SeatNumber)
		}
	}
	return seats
}

// CancelBooking は指定予約IDのbooked座席をavailableに戻し、解放数を返す
func (inv *SeatInventory) CancelBooking(bookingID string, now time.Time) int {
	released := 0
	for i := range inv.Seats {
		s := &inv.Seats[i]
		if s.Status != StatusBooked || s.BookingID == nil || *s.BookingID != bookingID {
			continue
		}
		s.Status = StatusAvailable
		s.BookedBy = nil
		s.BookedAt = nil
		s.BookingID = nil
		released++
	}
	if released > 0 {
		inv.touch(now)
	}
	return released
}

// touch はSummaryを再計算し更新時刻を進める
func (inv *SeatInventory) touch(now time.Time) {
	inv.recalculate()
	inv.UpdatedAt = now
}
