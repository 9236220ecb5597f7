package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.MasterApplication, error)
	Get(ctx context.Context, id string) (*models.MasterApplication, error)
	List(ctx context.Context, query dto.ApplicationQuery) ([]models.MasterApplication, error)
	CastVote(ctx context.Context, applicationID string, req dto.CastVoteRequest, actorID string) (*models.MasterApplication, error)
	ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error)
}

// ApplicationHandler exposes REST endpoints for master promotion bids.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Submit godoc
// @Summary Submit a master application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "application service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid application payload"))
		return
	}
	app, err := h.service.Submit(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, app, nil)
}

// List godoc
// @Summary List master applications
// @Tags Applications
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param role query string false "Role name"
// @Param userId query string false "Applicant user ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "application service not configured"))
		return
	}
	query := dto.ApplicationQuery{
		RoleName: strings.TrimSpace(c.Query("role")),
		UserID:   strings.TrimSpace(c.Query("userId")),
		Limit:    parseIntQuery(c, "limit"),
		Offset:   parseIntQuery(c, "offset"),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ApplicationStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ApplicationStatus(part))
		}
		query.Status = statuses
	}
	apps, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Get godoc
// @Summary Get application detail
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "application service not configured"))
		return
	}
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// CastVote godoc
// @Summary Cast a ballot on an application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.CastVoteRequest true "Ballot payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /applications/{id}/votes [post]
func (h *ApplicationHandler) CastVote(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "application service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ballot payload"))
		return
	}
	app, err := h.service.CastVote(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// ListVotes godoc
// @Summary List ballots cast on an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/votes [get]
func (h *ApplicationHandler) ListVotes(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "application service not configured"))
		return
	}
	votes, err := h.service.ListVotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, votes, nil)
}

func parseIntQuery(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
