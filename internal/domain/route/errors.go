package route

import "errors"

// Route ドメインのエラー定義
var (
	ErrRouteNotFound        = errors.New("路線が見つかりません")
	ErrRouteIDRequired      = errors.New("路線IDは必須です")
	ErrSeatTemplateRequired = errors.New("座席テンプレートは必須です")
	ErrInvalidFare          = errors.New("運賃は0以上である必要があります")
	ErrInvalidDepartureTime = errors.New("出発時刻の形式が不正です")
)
