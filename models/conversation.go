package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a chat thread owned by one authenticated user
type Conversation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"` // token subject
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Conversation model
func (Conversation) TableName() string {
	return "conversations"
}

// NewConversation creates a new Conversation instance
func NewConversation(ownerID, title string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOwnedBy reports whether subject owns the conversation
func (c *Conversation) IsOwnedBy(subject string) bool {
	return subject != "" && c.OwnerID == subject
}
