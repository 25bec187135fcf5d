package model

// UserEntity is the read-only view of an account used by the auth adapter.
type UserEntity struct {
	ID       uint64 `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
