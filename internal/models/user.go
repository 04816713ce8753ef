package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	IsOnline     bool      `json:"is_online"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublicUser is the profile attached to pushed events and search results.
type PublicUser struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Phone    string    `json:"phone"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// Public strips credentials from the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Phone:    u.Phone,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}
