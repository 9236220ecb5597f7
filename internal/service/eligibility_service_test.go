package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
)

type providerStub struct {
	metrics *models.CandidateMetrics
	pool    int
	err     error
}

func (p *providerStub) CandidateMetrics(ctx context.Context, userID, roleName string) (*models.CandidateMetrics, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.metrics, nil
}

func (p *providerStub) VoterPool(ctx context.Context, roleName string, projectID *string) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.pool, nil
}

func defaultEligibilityConfig() config.EligibilityConfig {
	return config.EligibilityConfig{
		MinFitScore:      4.2,
		MinWeeksInRole:   4,
		MaxRoleRanking:   3,
		MinOnTimeRate:    0.80,
		MinFeedbackCount: 3,
		MinValidatedObvs: 2,
	}
}

func passingMetrics() models.CandidateMetrics {
	return models.CandidateMetrics{
		FitScore:       4.5,
		WeeksInRole:    10,
		RoleRanking:    1,
		OnTimeTaskRate: 0.95,
		FeedbackCount:  5,
		ValidatedObvs:  4,
	}
}

func TestCheckEligibilityAllGatesPass(t *testing.T) {
	result := CheckEligibility(passingMetrics(), defaultEligibilityConfig())
	require.True(t, result.Eligible)
	require.Empty(t, result.Reasons)
}

func TestCheckEligibilityBoundaryValues(t *testing.T) {
	m := models.CandidateMetrics{
		FitScore:       4.2,
		WeeksInRole:    4,
		RoleRanking:    3,
		OnTimeTaskRate: 0.80,
		FeedbackCount:  3,
		ValidatedObvs:  2,
	}
	result := CheckEligibility(m, defaultEligibilityConfig())
	require.True(t, result.Eligible)
}

func TestCheckEligibilityCollectsEveryShortfall(t *testing.T) {
	m := models.CandidateMetrics{
		FitScore:       1.0,
		WeeksInRole:    1,
		RoleRanking:    9,
		OnTimeTaskRate: 0.10,
		FeedbackCount:  0,
		ValidatedObvs:  0,
	}
	result := CheckEligibility(m, defaultEligibilityConfig())
	require.False(t, result.Eligible)
	require.Len(t, result.Reasons, 6)
	require.Contains(t, result.Reasons[0], "fit score")
	require.Contains(t, result.Reasons[2], "role ranking 9 outside top 3")
}

func TestCheckEligibilitySingleFailure(t *testing.T) {
	m := passingMetrics()
	m.WeeksInRole = 2
	result := CheckEligibility(m, defaultEligibilityConfig())
	require.False(t, result.Eligible)
	require.Len(t, result.Reasons, 1)
	require.Equal(t, "2 weeks in role, 4 required", result.Reasons[0])
}

func TestEligibilityServiceEvaluate(t *testing.T) {
	metrics := passingMetrics()
	svc := NewEligibilityService(&providerStub{metrics: &metrics}, defaultEligibilityConfig(), nil)

	result, err := svc.Evaluate(context.Background(), "user-1", "backend")
	require.NoError(t, err)
	require.True(t, result.Eligible)
}

func TestEligibilityServiceEvaluateProviderError(t *testing.T) {
	svc := NewEligibilityService(&providerStub{err: errors.New("upstream down")}, defaultEligibilityConfig(), nil)

	_, err := svc.Evaluate(context.Background(), "user-1", "backend")
	require.Error(t, err)
}
