package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// SeatInventory ドメインのエラー定義
var (
	ErrInventoryNotFound = errors.New("座席在庫が見つかりません")
	ErrOwnershipMismatch = errors.New("座席のロック保持者が一致しません")
	ErrLockExpired       = errors.New("座席ロックの有効期限が切れています")
	ErrBookingSeatsNotFound = errors.New("指定予約IDの座席が見つかりません")
	ErrSeatNumbersRequired  = errors.New("座席番号は必須です")
)

// SeatUnavailableError は利用不可の座席を列挙するエラー。
// 1席でも取得できなければバッチ全体が失敗する（恒久エラー）。
type SeatUnavailableError struct {
	Seats []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("座席を確保できません: %s", strings.Join(e.Seats, ", "))
}
