package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

// MetricsProvider supplies candidate telemetry from the surrounding
// platform. The engine consumes these numbers; it never stores them.
type MetricsProvider interface {
	CandidateMetrics(ctx context.Context, userID, roleName string) (*models.CandidateMetrics, error)
	VoterPool(ctx context.Context, roleName string, projectID *string) (int, error)
}

// EligibilityService gates promotion bids and challenge initiation.
type EligibilityService struct {
	provider MetricsProvider
	cfg      config.EligibilityConfig
	logger   *zap.Logger
}

// NewEligibilityService constructs the service.
func NewEligibilityService(provider MetricsProvider, cfg config.EligibilityConfig, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{provider: provider, cfg: cfg, logger: logger}
}

// Evaluate fetches the candidate's metrics and checks every gate. All
// criteria are evaluated so the caller sees the full list of shortfalls.
func (s *EligibilityService) Evaluate(ctx context.Context, userID, roleName string) (*models.EligibilityResult, error) {
	metrics, err := s.provider.CandidateMetrics(ctx, userID, roleName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate metrics")
	}
	result := CheckEligibility(*metrics, s.cfg)
	return &result, nil
}

// CheckEligibility applies the six promotion gates to a metrics snapshot.
func CheckEligibility(m models.CandidateMetrics, cfg config.EligibilityConfig) models.EligibilityResult {
	result := models.EligibilityResult{Eligible: true}
	fail := func(reason string) {
		result.Eligible = false
		result.Reasons = append(result.Reasons, reason)
	}

	if m.FitScore < cfg.MinFitScore {
		fail(fmt.Sprintf("fit score %.2f below required %.2f", m.FitScore, cfg.MinFitScore))
	}
	if m.WeeksInRole < cfg.MinWeeksInRole {
		fail(fmt.Sprintf("%d weeks in role, %d required", m.WeeksInRole, cfg.MinWeeksInRole))
	}
	if m.RoleRanking > cfg.MaxRoleRanking {
		fail(fmt.Sprintf("role ranking %d outside top %d", m.RoleRanking, cfg.MaxRoleRanking))
	}
	if m.OnTimeTaskRate < cfg.MinOnTimeRate {
		fail(fmt.Sprintf("on-time task rate %.2f below required %.2f", m.OnTimeTaskRate, cfg.MinOnTimeRate))
	}
	if m.FeedbackCount < cfg.MinFeedbackCount {
		fail(fmt.Sprintf("%d feedback entries, %d required", m.FeedbackCount, cfg.MinFeedbackCount))
	}
	if m.ValidatedObvs < cfg.MinValidatedObvs {
		fail(fmt.Sprintf("%d validated observations, %d required", m.ValidatedObvs, cfg.MinValidatedObvs))
	}
	return result
}
