package models

import "time"

// User represents a chat account. Credential issuance and profile editing
// live in the external auth layer; the server only mirrors the identity it
// is handed so receiver validation and peer listing have a user set.
type User struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName,omitempty"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
