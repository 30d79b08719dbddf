package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict は一意制約または排他制約に違反したことを表す。
	ErrConflict = errors.New("repository: conflict")
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

// isConflict は一意制約・排他制約違反のエラーかを判定する。
func isConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation || pqErr.Code == pqExclusionViolation
}
