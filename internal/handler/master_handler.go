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

type masterService interface {
	Get(ctx context.Context, id string) (*models.TeamMaster, error)
	List(ctx context.Context, filter models.MasterFilter) ([]models.TeamMaster, error)
}

// MasterHandler exposes read endpoints for the master roster.
type MasterHandler struct {
	service masterService
}

// NewMasterHandler constructs the handler.
func NewMasterHandler(service masterService) *MasterHandler {
	return &MasterHandler{service: service}
}

// List godoc
// @Summary List team masters
// @Tags Masters
// @Produce json
// @Param role query string false "Role name"
// @Param userId query string false "Holder user ID"
// @Param active query bool false "Active holders only"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /masters [get]
func (h *MasterHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "master service not configured"))
		return
	}
	filter := models.MasterFilter{
		RoleName:   strings.TrimSpace(c.Query("role")),
		UserID:     strings.TrimSpace(c.Query("userId")),
		ActiveOnly: c.Query("active") == "true",
		Limit:      parseIntQuery(c, "limit"),
		Offset:     parseIntQuery(c, "offset"),
	}
	masters, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, masters, nil)
}

// Get godoc
// @Summary Get master detail
// @Tags Masters
// @Produce json
// @Param id path string true "Master ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /masters/{id} [get]
func (h *MasterHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "master service not configured"))
		return
	}
	master, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, master, nil)
}
