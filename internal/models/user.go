package models

import "time"

// FullName is the display name captured at registration.
type FullName struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname,omitempty"`
}

// User captures application-facing fields for a registered business account.
type User struct {
	ID           string    `json:"id"`
	FullName     FullName  `json:"fullname"`
	Email        string    `json:"email"`
	Organization string    `json:"organization"`
	Role         Role      `json:"role"`
	Coins        int64     `json:"coins"`
	SocketID     string    `json:"socketId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
