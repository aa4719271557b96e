package model

import "time"

// User is the identity that owns API keys and mangos.
// Deleting a user cascades to both.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
