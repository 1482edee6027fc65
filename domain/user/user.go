// Package user defines the persisted account entity.
package user

import "time"

// User is a registered account. Chat identity is the username; the password
// hash never leaves the auth module.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:32" json:"username"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
