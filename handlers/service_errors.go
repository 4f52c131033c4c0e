package handlers

import (
	"net/http"

	"github.com/liminal-ai/liminal-chat/services"
	"github.com/liminal-ai/liminal-chat/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	status, message := http.StatusInternalServerError, "An internal error occurred"

	switch services.GetErrorType(err) {
	case services.ErrorTypeNotFound:
		status, message = http.StatusNotFound, err.Error()
	case services.ErrorTypeValidation:
		status, message = http.StatusBadRequest, err.Error()
	case services.ErrorTypeUnauthorized:
		status, message = http.StatusUnauthorized, err.Error()
	case services.ErrorTypeForbidden:
		status, message = http.StatusForbidden, err.Error()
	case services.ErrorTypeConflict:
		status, message = http.StatusConflict, err.Error()
	case services.ErrorTypeUnavailable:
		status, message = http.StatusServiceUnavailable, err.Error()
	case services.ErrorTypeInternal:
		logger.Error("internal server error", zap.Error(err))
		details = nil
	default:
		logger.Error("unhandled error type", zap.Error(err))
		message = "An unexpected error occurred"
		details = nil
	}

	if err := utils.WriteError(w, status, message, details); err != nil {
		logger.Error("failed to write error response", zap.Int("status", status), zap.Error(err))
	}
}

// HandleValidationError writes a 400 for request decoding and validation failures
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()
	if utils.IsValidationError(err) {
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		message = "Validation failed"
	}

	if err := utils.WriteBadRequest(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
