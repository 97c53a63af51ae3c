package application

import "errors"

// アプリケーション層のエラー定義
var (
	// ErrLockAcquisitionFailed は一時的エラー。呼び出し元はバックオフ付きで
	// リトライしてよい。
	ErrLockAcquisitionFailed = errors.New("同じ路線・乗車日に対する別の操作が進行中です")

	// ErrNoActiveHold はユーザーにアクティブな座席ホールドがない
	ErrNoActiveHold = errors.New("アクティブな座席ホールドがありません")

	// ErrInvalidTravelDate は乗車日の形式が不正
	ErrInvalidTravelDate = errors.New("乗車日の形式が不正です")

	// ErrBookingIDGeneration は予約IDの衝突が解消できなかった
	ErrBookingIDGeneration = errors.New("予約IDの生成に失敗しました")
)
