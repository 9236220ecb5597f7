package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/response"
)

type sweeperService interface {
	RunOnce(ctx context.Context) dto.SweepSummary
}

// SweeperHandler triggers deadline sweeps on demand.
type SweeperHandler struct {
	service sweeperService
}

// NewSweeperHandler constructs the handler.
func NewSweeperHandler(service sweeperService) *SweeperHandler {
	return &SweeperHandler{service: service}
}

// Run godoc
// @Summary Run a deadline sweep immediately
// @Tags Sweeper
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sweeper/run [post]
func (h *SweeperHandler) Run(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "sweeper service not configured"))
		return
	}
	summary := h.service.RunOnce(c.Request.Context())
	response.JSON(c, http.StatusOK, summary, nil)
}
