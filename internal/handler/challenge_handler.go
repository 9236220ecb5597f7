package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/response"
)

type challengeService interface {
	Create(ctx context.Context, req dto.CreateChallengeRequest, actorID string) (*models.MasterChallenge, error)
	Get(ctx context.Context, id string) (*models.MasterChallenge, error)
	List(ctx context.Context, query dto.ChallengeQuery) ([]models.MasterChallenge, error)
	Respond(ctx context.Context, id string, req dto.RespondChallengeRequest, actorID string) (*models.MasterChallenge, error)
	SubmitMetrics(ctx context.Context, id string, req dto.SubmitMetricsRequest) (*models.ChallengeMetrics, error)
	CastVote(ctx context.Context, id string, req dto.CastChallengeVoteRequest, actorID string) (*models.MasterChallenge, error)
	ListVotes(ctx context.Context, id string) ([]models.ChallengeVote, error)
	Adjudicate(ctx context.Context, id string, req dto.AdjudicateRequest, actorID string) (*models.MasterChallenge, error)
	LiveScore(ctx context.Context, id string) (*models.BattleScore, error)
	Progress(ctx context.Context, id string) (*models.VotingProgress, error)
}

// ChallengeHandler exposes REST endpoints for master challenges.
type ChallengeHandler struct {
	service challengeService
}

// NewChallengeHandler constructs the handler.
func NewChallengeHandler(service challengeService) *ChallengeHandler {
	return &ChallengeHandler{service: service}
}

// Create godoc
// @Summary Initiate a challenge against a sitting master
// @Tags Challenges
// @Accept json
// @Produce json
// @Param payload body dto.CreateChallengeRequest true "Challenge payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /challenges [post]
func (h *ChallengeHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid challenge payload"))
		return
	}
	ch, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, ch, nil)
}

// List godoc
// @Summary List challenges
// @Tags Challenges
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Challenge type"
// @Param role query string false "Role name"
// @Param challengerId query string false "Challenger user ID"
// @Param masterId query string false "Master user ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /challenges [get]
func (h *ChallengeHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	query := dto.ChallengeQuery{
		RoleName:     strings.TrimSpace(c.Query("role")),
		ChallengerID: strings.TrimSpace(c.Query("challengerId")),
		MasterID:     strings.TrimSpace(c.Query("masterId")),
		Limit:        parseIntQuery(c, "limit"),
		Offset:       parseIntQuery(c, "offset"),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.ChallengeType(strings.ToUpper(strings.TrimSpace(rawType)))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ChallengeStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ChallengeStatus(part))
		}
		query.Status = statuses
	}
	challenges, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenges, nil)
}

// Get godoc
// @Summary Get challenge detail
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /challenges/{id} [get]
func (h *ChallengeHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	ch, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ch, nil)
}

// Respond godoc
// @Summary Accept or decline a pending challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.RespondChallengeRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /challenges/{id}/response [post]
func (h *ChallengeHandler) Respond(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RespondChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid response payload"))
		return
	}
	ch, err := h.service.Respond(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ch, nil)
}

// SubmitMetrics godoc
// @Summary Upsert performance metrics for one side of a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.SubmitMetricsRequest true "Metrics payload"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /challenges/{id}/metrics [post]
func (h *ChallengeHandler) SubmitMetrics(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	var req dto.SubmitMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid metrics payload"))
		return
	}
	metrics, err := h.service.SubmitMetrics(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, metrics, nil)
}

// CastVote godoc
// @Summary Cast a peer-vote ballot on a challenge
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.CastChallengeVoteRequest true "Ballot payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /challenges/{id}/votes [post]
func (h *ChallengeHandler) CastVote(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CastChallengeVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid ballot payload"))
		return
	}
	ch, err := h.service.CastVote(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ch, nil)
}

// ListVotes godoc
// @Summary List ballots of a completed peer-vote challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/votes [get]
func (h *ChallengeHandler) ListVotes(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	votes, err := h.service.ListVotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, votes, nil)
}

// Adjudicate godoc
// @Summary Record the external verdict for a project showdown
// @Tags Challenges
// @Accept json
// @Produce json
// @Param id path string true "Challenge ID"
// @Param payload body dto.AdjudicateRequest true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/adjudication [post]
func (h *ChallengeHandler) Adjudicate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdjudicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid verdict payload"))
		return
	}
	ch, err := h.service.Adjudicate(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ch, nil)
}

// LiveScore godoc
// @Summary Current weighted battle score of a performance duel
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/score [get]
func (h *ChallengeHandler) LiveScore(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	score, err := h.service.LiveScore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Progress godoc
// @Summary Voting progress of a peer-vote challenge
// @Tags Challenges
// @Produce json
// @Param id path string true "Challenge ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/progress [get]
func (h *ChallengeHandler) Progress(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "challenge service not configured"))
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
