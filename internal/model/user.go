// Package model はドメインモデルを定義する。
package model

import "time"

// ユーザーロール
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole はロール文字列が定義済みかを返す。
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// 外部IdPのみで登録したユーザーはPasswordHashが空になる。
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin は管理者ロールかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// ProviderAzure はAzure ADのprovider名。
const ProviderAzure = "azure"
