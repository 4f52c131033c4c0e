package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/liminal-ai/liminal-chat/models"
	"github.com/liminal-ai/liminal-chat/utils"
	"go.uber.org/zap"
)

// ConversationService is the subset of services.ConversationService used here
type ConversationService interface {
	Create(ctx context.Context, ownerID, title string) (*models.Conversation, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Conversation, error)
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.Conversation, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

// CreateConversationRequest is the body of POST /api/v1/conversations
type CreateConversationRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ConversationHandler serves the conversation endpoints. Every route is
// mounted behind RequireAuth.
type ConversationHandler struct {
	service ConversationService
	logger  *zap.Logger
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(service ConversationService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, logger: logger}
}

// HandleList handles GET /api/v1/conversations?limit=&offset=
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	convs, err := h.service.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, convs)
}

// HandleCreate handles POST /api/v1/conversations
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req CreateConversationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	conv, err := h.service.Create(r.Context(), user.ID, req.Title)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, conv)
}

// HandleGet handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	conv, err := h.service.Get(r.Context(), user.ID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, conv)
}

// HandleDelete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// queryInt returns 0 when the parameter is absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
