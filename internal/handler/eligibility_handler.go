package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/response"
)

type eligibilityService interface {
	Evaluate(ctx context.Context, userID, roleName string) (*models.EligibilityResult, error)
}

// EligibilityHandler exposes the promotion pre-check endpoint.
type EligibilityHandler struct {
	service eligibilityService
}

// NewEligibilityHandler constructs the handler.
func NewEligibilityHandler(service eligibilityService) *EligibilityHandler {
	return &EligibilityHandler{service: service}
}

// Evaluate godoc
// @Summary Check promotion eligibility for a user and role
// @Tags Eligibility
// @Produce json
// @Param userId path string true "User ID"
// @Param role query string true "Role name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /eligibility/{userId} [get]
func (h *EligibilityHandler) Evaluate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "eligibility service not configured"))
		return
	}
	roleName := strings.TrimSpace(c.Query("role"))
	if roleName == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role is required"))
		return
	}
	result, err := h.service.Evaluate(c.Request.Context(), c.Param("userId"), roleName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
