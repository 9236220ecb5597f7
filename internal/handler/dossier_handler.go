package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/internal/service"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/response"
)

type dossierService interface {
	CreateJob(ctx context.Context, req dto.DossierRequest, actorID string) (*dto.DossierJobResponse, error)
	GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.DossierStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.DossierDownload, error)
}

// DossierHandler exposes decision-record export endpoints.
type DossierHandler struct {
	service dossierService
}

// NewDossierHandler constructs the handler.
func NewDossierHandler(service dossierService) *DossierHandler {
	return &DossierHandler{service: service}
}

// Create godoc
// @Summary Queue a decision-record export
// @Tags Dossiers
// @Accept json
// @Produce json
// @Param payload body dto.DossierRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dossiers [post]
func (h *DossierHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "dossier service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DossierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid dossier payload"))
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Dossiers
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dossiers/{id} [get]
func (h *DossierHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "dossier service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export via signed token
// @Tags Dossiers
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /dossiers/download/{token} [get]
func (h *DossierHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "dossier service not configured"))
		return
	}
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := download.File.Stat(); statErr == nil {
		size = info.Size()
	}
	mimeType := "application/octet-stream"
	switch download.Format {
	case models.DossierFormatCSV:
		mimeType = "text/csv"
	case models.DossierFormatPDF:
		mimeType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, mimeType, download.File, nil)
}
