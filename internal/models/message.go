package models

import "time"

// Message is an immutable chat message record. Text and image URL are stored
// as pair-encrypted ciphertext; Seen transitions false to true exactly once
// and never back.
type Message struct {
	ID         string    `json:"_id"` // ULID
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"messageText,omitempty"`  // ciphertext
	Image      string    `json:"messageImage,omitempty"` // encrypted asset URL
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LastMessage is the sidebar summary of the most recent message with a peer.
type LastMessage struct {
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	SenderID string    `json:"senderId"`
}
