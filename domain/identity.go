// Package domain contains core concepts of the chat coordinator.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Identity is the stable result of a successful credential verification.
// It is immutable for the lifetime of the connection it admitted.
type Identity struct {
	UserID      string
	DisplayName string
}

// User is the account record as the storage layer exposes it.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the public projection of a user embedded in delivery payloads.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username}
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, DisplayName: u.Username}
}
