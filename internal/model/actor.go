package model

// Actor は操作を行う利用者。検証済みトークンから組み立てる。
type Actor struct {
	UserID string
	Admin  bool
}

// CanAccess は利用者が指定ユーザーのデータを参照・変更できるかを返す。
func (a Actor) CanAccess(userID string) bool {
	return a.Admin || a.UserID == userID
}
