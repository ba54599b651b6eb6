// Package models holds the server-side domain entities.
package models

import "time"

// User is the persisted account record. EncryptedSecret holds the sealed
// password blob and must never be serialized outward.
type User struct {
	ID              int64
	Username        string
	Email           string
	EncryptedSecret string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserUpdate describes a partial mutation: nil fields are left untouched.
// EncryptedSecret must already be sealed by the caller.
type UserUpdate struct {
	Username        *string
	Email           *string
	EncryptedSecret *string
	IsActive        *bool
}

// Empty reports whether the update would change nothing.
func (u *UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.EncryptedSecret == nil && u.IsActive == nil
}
