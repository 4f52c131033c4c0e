package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/liminal-ai/liminal-chat/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("record not found")

// ConversationRepository handles conversation data operations
type ConversationRepository interface {
	// Create inserts a new conversation
	Create(ctx context.Context, conv *models.Conversation) error

	// GetByID retrieves a conversation by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// ListByOwner retrieves an owner's conversations, newest first
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Conversation, error)

	// Delete deletes a conversation owned by ownerID
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// Repositories groups all repositories
type Repositories struct {
	Conversations ConversationRepository
}
