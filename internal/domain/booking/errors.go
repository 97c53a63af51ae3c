package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound          = errors.New("予約が見つかりません")
	ErrNotCancellable           = errors.New("この予約はキャンセルできません")
	ErrCancellationWindowClosed = errors.New("出発2時間前を過ぎたためキャンセルできません")
	ErrAlreadyCancelled         = errors.New("予約は既にキャンセルされています")
	ErrBookingIDRequired        = errors.New("予約IDは必須です")
	ErrRouteIDRequired          = errors.New("路線IDは必須です")
	ErrUserIDRequired           = errors.New("ユーザーIDは必須です")
	ErrSeatNumbersRequired      = errors.New("座席番号は必須です")
	ErrPassengerSeatMismatch    = errors.New("乗客数と座席数が一致しません")
	ErrInvalidAmount            = errors.New("支払い金額は0以上である必要があります")
)
