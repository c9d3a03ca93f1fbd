// Package http provides the stub service's HTTP surface: the protect/reveal
// wire protocol plus health and metrics endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/protect/internal/httputil"
	"github.com/allisson/protect/internal/stub/http/dto"
	"github.com/allisson/protect/internal/stub/service"
	customValidation "github.com/allisson/protect/internal/validation"
)

// Handler handles protect and reveal requests against the in-memory vault.
type Handler struct {
	vault  *service.Vault
	logger *slog.Logger
}

// NewHandler creates a new handler with required dependencies.
func NewHandler(vault *service.Vault, logger *slog.Logger) *Handler {
	return &Handler{
		vault:  vault,
		logger: logger,
	}
}

// ProtectHandler protects a value under the named policy.
// POST /v1/protect - Returns 200 OK with the protected value.
func (h *Handler) ProtectHandler(c *gin.Context) {
	var req dto.ProtectRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	token, err := h.vault.Protect(c.Request.Context(), req.ProtectionPolicyName, req.Data)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	// Payloads stay out of the logs; only shape information is recorded.
	h.logger.Debug("value protected",
		slog.String("policy_name", req.ProtectionPolicyName),
		slog.Int("data_len", len(req.Data)),
	)

	c.JSON(http.StatusOK, dto.ProtectResponse{ProtectedData: token})
}

// RevealHandler reveals a previously protected value under the named policy.
// POST /v1/reveal - Returns 200 OK with the original plaintext.
func (h *Handler) RevealHandler(c *gin.Context) {
	var req dto.RevealRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	data, err := h.vault.Reveal(c.Request.Context(), req.ProtectionPolicyName, req.Data)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Debug("value revealed",
		slog.String("policy_name", req.ProtectionPolicyName),
		slog.Int("data_len", len(data)),
	)

	c.JSON(http.StatusOK, dto.RevealResponse{Data: data})
}

// HealthHandler reports stub liveness.
// GET /health - Returns 200 OK.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
