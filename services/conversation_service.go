package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/liminal-ai/liminal-chat/models"
	"github.com/liminal-ai/liminal-chat/repositories"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxTitleLength   = 200
)

// ConversationService applies ownership rules over the conversation store.
// A nil repository leaves the service constructed but unavailable.
type ConversationService struct {
	repo   repositories.ConversationRepository
	logger *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(repo repositories.ConversationRepository, logger *zap.Logger) *ConversationService {
	return &ConversationService{repo: repo, logger: logger}
}

// Available reports whether a store is configured
func (s *ConversationService) Available() bool {
	return s.repo != nil
}

// Create stores a new conversation for ownerID
func (s *ConversationService) Create(ctx context.Context, ownerID, title string) (*models.Conversation, error) {
	if !s.Available() {
		return nil, ErrStoreUnavailable
	}
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLength {
		return nil, ErrInvalidInput.WithDetails(map[string]interface{}{
			"title": "title must be between 1 and 200 characters",
		})
	}

	conv := models.NewConversation(ownerID, title)
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, WrapInternal("failed to create conversation", err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID.String()))
	return conv, nil
}

// List returns ownerID's conversations, newest first. Out-of-range paging is clamped.
func (s *ConversationService) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Conversation, error) {
	if !s.Available() {
		return nil, ErrStoreUnavailable
	}
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	convs, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, WrapInternal("failed to list conversations", err)
	}
	return convs, nil
}

// Get returns a conversation. Conversations owned by someone else read as not found.
func (s *ConversationService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.Conversation, error) {
	if !s.Available() {
		return nil, ErrStoreUnavailable
	}

	conv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, WrapInternal("failed to get conversation", err)
	}
	if !conv.IsOwnedBy(ownerID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// Delete removes a conversation owned by ownerID
func (s *ConversationService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if !s.Available() {
		return ErrStoreUnavailable
	}
	if ownerID == "" {
		return ErrUnauthorized
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrConversationNotFound
		}
		return WrapInternal("failed to delete conversation", err)
	}

	s.logger.Info("conversation deleted", zap.String("conversation_id", id.String()))
	return nil
}
