// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, booking, room, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeRoomNotFound       = "ROOM_NOT_FOUND"
	ErrCodeRoomNameTaken      = "ROOM_NAME_TAKEN"
	ErrCodeBookingNotFound    = "BOOKING_NOT_FOUND"
	ErrCodeSlotConflict       = "SLOT_CONFLICT"
	ErrCodeInvalidSlot        = "INVALID_SLOT"
	ErrCodeProviderDisabled   = "PROVIDER_DISABLED"
	ErrCodeCSRFFailed         = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが誤っている場合のエラーを生成する。
// 未登録のメールアドレスでも同じエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解釈できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストの形式が不正です。",
		Category: "validation",
		Action:   "JSON形式で送信してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewRoomNotFoundError は会議室が見つからない場合のエラーを生成する。
func NewRoomNotFoundError(roomID string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNotFound,
		Message:  fmt.Sprintf("指定された会議室が見つかりません: %s", roomID),
		Category: "room",
		Action:   "会議室一覧から選択し直してください。",
	}
}

// NewRoomNameTakenError は会議室名の重複エラーを生成する。
func NewRoomNameTakenError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNameTaken,
		Message:  fmt.Sprintf("同じ名前の会議室が既に存在します: %s", name),
		Category: "room",
		Action:   "別の名前を指定してください。",
	}
}

// NewBookingNotFoundError は予約が見つからない場合のエラーを生成する。
func NewBookingNotFoundError(bookingID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", bookingID),
		Category: "booking",
		Action:   "予約一覧を再読み込みしてください。",
	}
}

// NewSlotConflictError は時間帯が既存の予約と重なる場合のエラーを生成する。
func NewSlotConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeSlotConflict,
		Message:  "この時間帯は既に予約されています。",
		Category: "booking",
		Action:   "別の時間帯または会議室を選択してください。",
	}
}

// NewInvalidSlotError は日付・時刻ラベルを解釈できない場合のエラーを生成する。
func NewInvalidSlotError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSlot,
		Message:  fmt.Sprintf("予約日時を解釈できません: %s", reason),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD、時刻は HH:MM または HH:MM - HH:MM の形式で指定してください。",
	}
}

// NewProviderDisabledError は外部IdPが設定されていない場合のエラーを生成する。
func NewProviderDisabledError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderDisabled,
		Message:  fmt.Sprintf("%s ログインは有効になっていません。", provider),
		Category: "auth",
		Action:   "メールアドレスとパスワードでログインしてください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
