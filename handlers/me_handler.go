package handlers

import (
	"net/http"

	"github.com/liminal-ai/liminal-chat/auth"
	"github.com/liminal-ai/liminal-chat/middleware"
	"github.com/liminal-ai/liminal-chat/utils"
	"go.uber.org/zap"
)

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	SystemUser    bool   `json:"system_user,omitempty"`
	Environment   string `json:"environment"`
}

// MeHandler serves identity endpoints
type MeHandler struct {
	environment string
	logger      *zap.Logger
}

// NewMeHandler creates a new MeHandler
func NewMeHandler(environment string, logger *zap.Logger) *MeHandler {
	return &MeHandler{environment: environment, logger: logger}
}

// HandleMe handles GET /api/v1/me. Must be mounted behind RequireAuth.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	if err := utils.WriteOK(w, user); err != nil {
		h.logger.Error("failed to write user response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status for anonymous and authenticated callers
func (h *MeHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Environment: h.environment}
	if user := middleware.GetUserFromContext(r.Context()); user != nil {
		resp.Authenticated = true
		resp.UserID = user.ID
		resp.SystemUser = user.IsSystemUser()
	}
	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}

func currentUser(r *http.Request) *auth.User {
	return middleware.GetUserFromContext(r.Context())
}
