package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type applicationStoreStub struct {
	created    *models.MasterApplication
	apps       map[string]*models.MasterApplication
	votes      []models.MasterVote
	castVoteFn func(vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error)
	due        []models.MasterApplication
	resolveFn  func(id string, now time.Time) (*models.MasterApplication, *models.TeamMaster, bool, error)
	castCalls  int
}

func newApplicationStoreStub() *applicationStoreStub {
	return &applicationStoreStub{apps: make(map[string]*models.MasterApplication)}
}

func (s *applicationStoreStub) Create(ctx context.Context, app *models.MasterApplication) error {
	app.ID = "app-1"
	s.created = app
	s.apps[app.ID] = app
	return nil
}

func (s *applicationStoreStub) GetByID(ctx context.Context, id string) (*models.MasterApplication, error) {
	if app, ok := s.apps[id]; ok {
		copied := *app
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *applicationStoreStub) List(ctx context.Context, filter models.ApplicationFilter) ([]models.MasterApplication, error) {
	result := make([]models.MasterApplication, 0, len(s.apps))
	for _, app := range s.apps {
		result = append(result, *app)
	}
	return result, nil
}

func (s *applicationStoreStub) ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error) {
	return s.votes, nil
}

func (s *applicationStoreStub) CastVote(ctx context.Context, vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error) {
	s.castCalls++
	if s.castVoteFn != nil {
		return s.castVoteFn(vote, now)
	}
	return nil, nil, sql.ErrNoRows
}

func (s *applicationStoreStub) ListDue(ctx context.Context, now time.Time, limit int) ([]models.MasterApplication, error) {
	return s.due, nil
}

func (s *applicationStoreStub) Resolve(ctx context.Context, id string, now time.Time) (*models.MasterApplication, *models.TeamMaster, bool, error) {
	if s.resolveFn != nil {
		return s.resolveFn(id, now)
	}
	return nil, nil, false, sql.ErrNoRows
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	result := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		result = append(result, log.Action)
	}
	return result
}

type notifierStub struct {
	events []string
}

func (n *notifierStub) Notify(ctx context.Context, event, resource, resourceID string, payload interface{}) {
	n.events = append(n.events, event)
}

type eligibilityStub struct {
	result models.EligibilityResult
	err    error
}

func (e *eligibilityStub) Evaluate(ctx context.Context, userID, roleName string) (*models.EligibilityResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	result := e.result
	return &result, nil
}

func governanceTestConfig() config.GovernanceConfig {
	return config.GovernanceConfig{
		VotingWindow:         168 * time.Hour,
		DefaultVotesRequired: 8,
		ResponseWindow:       72 * time.Hour,
		PerformanceWindow:    336 * time.Hour,
		ProjectWindow:        504 * time.Hour,
		PeerVoteWindow:       168 * time.Hour,
		MasterVoteShare:      0.51,
		ChallengerVoteShare:  0.60,
		VoteRetryAttempts:    3,
		VoteRetryBackoff:     time.Millisecond,
	}
}

func newTestApplicationService(repo *applicationStoreStub, eligibility *eligibilityStub, audit *auditStub, notif *notifierStub) *ApplicationService {
	svc := NewApplicationService(repo, eligibility, audit, notif, nil, nil, governanceTestConfig())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestApplicationSubmitOpensVoting(t *testing.T) {
	repo := newApplicationStoreStub()
	audit := &auditStub{}
	notif := &notifierStub{}
	svc := newTestApplicationService(repo, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, audit, notif)

	app, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		RoleName:   "backend",
		Motivation: "ready to lead",
	}, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusVoting, app.Status)
	require.Equal(t, 8, app.VotesRequired)
	require.Equal(t, svc.now().Add(168*time.Hour), app.VotingDeadline)
	require.Equal(t, []string{models.AuditActionApplicationSubmit}, audit.actions())
	require.Equal(t, []string{models.AuditActionApplicationSubmit}, notif.events)
}

func TestApplicationSubmitHonorsRequestedQuorum(t *testing.T) {
	repo := newApplicationStoreStub()
	svc := newTestApplicationService(repo, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, &auditStub{}, &notifierStub{})

	app, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		RoleName:      "backend",
		Motivation:    "ready",
		VotesRequired: 5,
	}, "user-1")
	require.NoError(t, err)
	require.Equal(t, 5, app.VotesRequired)
}

func TestApplicationSubmitRejectsIneligible(t *testing.T) {
	repo := newApplicationStoreStub()
	svc := newTestApplicationService(repo, &eligibilityStub{result: models.EligibilityResult{
		Eligible: false,
		Reasons:  []string{"2 weeks in role, 4 required"},
	}}, &auditStub{}, &notifierStub{})

	_, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		RoleName:   "backend",
		Motivation: "ready",
	}, "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotEligible.Code, appErr.Code)
	require.Equal(t, []string{"2 weeks in role, 4 required"}, appErr.Reasons)
	require.Nil(t, repo.created)
}

func TestApplicationSubmitValidatesInput(t *testing.T) {
	svc := newTestApplicationService(newApplicationStoreStub(), &eligibilityStub{}, &auditStub{}, &notifierStub{})

	_, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{Motivation: "x"}, "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Submit(context.Background(), dto.SubmitApplicationRequest{RoleName: "backend"}, "user-1")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		RoleName:      "backend",
		Motivation:    "ready",
		VotesRequired: -1,
	}, "user-1")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestApplicationCastVotePassesThroughDuplicate(t *testing.T) {
	repo := newApplicationStoreStub()
	repo.castVoteFn = func(vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error) {
		return &models.MasterApplication{ID: vote.ApplicationID, Status: models.ApplicationStatusVoting}, nil, appErrors.ErrDuplicateVote
	}
	svc := newTestApplicationService(repo, &eligibilityStub{}, &auditStub{}, &notifierStub{})

	_, err := svc.CastVote(context.Background(), "app-1", dto.CastVoteRequest{InFavor: true}, "voter-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrDuplicateVote.Code, appErr.Code)
}

func TestApplicationCastVoteQuorumApproval(t *testing.T) {
	repo := newApplicationStoreStub()
	repo.castVoteFn = func(vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error) {
		app := &models.MasterApplication{
			ID:            vote.ApplicationID,
			UserID:        "user-1",
			RoleName:      "backend",
			Status:        models.ApplicationStatusApproved,
			VotesFor:      8,
			VotesRequired: 8,
		}
		master := &models.TeamMaster{ID: "master-1", UserID: "user-1", RoleName: "backend", Level: 1, IsActive: true}
		return app, master, nil
	}
	audit := &auditStub{}
	notif := &notifierStub{}
	svc := newTestApplicationService(repo, &eligibilityStub{}, audit, notif)

	app, err := svc.CastVote(context.Background(), "app-1", dto.CastVoteRequest{InFavor: true}, "voter-8")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, app.Status)
	require.Contains(t, audit.actions(), models.AuditActionApplicationVote)
	require.Contains(t, audit.actions(), models.AuditActionMasterAppoint)
	require.Contains(t, notif.events, models.AuditActionApplicationResolve)
	require.Contains(t, notif.events, models.AuditActionMasterAppoint)
}

func TestApplicationCastVoteRetriesSerializationFailure(t *testing.T) {
	repo := newApplicationStoreStub()
	attempts := 0
	repo.castVoteFn = func(vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error) {
		attempts++
		if attempts == 1 {
			return nil, nil, &pq.Error{Code: "40001"}
		}
		return &models.MasterApplication{ID: vote.ApplicationID, Status: models.ApplicationStatusVoting, VotesFor: 1, VotesRequired: 8}, nil, nil
	}
	svc := newTestApplicationService(repo, &eligibilityStub{}, &auditStub{}, &notifierStub{})

	app, err := svc.CastVote(context.Background(), "app-1", dto.CastVoteRequest{InFavor: true}, "voter-1")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, app.VotesFor)
}

func TestApplicationCastVoteUnknownApplication(t *testing.T) {
	svc := newTestApplicationService(newApplicationStoreStub(), &eligibilityStub{}, &auditStub{}, &notifierStub{})

	_, err := svc.CastVote(context.Background(), "missing", dto.CastVoteRequest{InFavor: true}, "voter-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestApplicationGetMapsMissingRow(t *testing.T) {
	svc := newTestApplicationService(newApplicationStoreStub(), &eligibilityStub{}, &auditStub{}, &notifierStub{})

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestApplicationSweepDueCountsTransitions(t *testing.T) {
	repo := newApplicationStoreStub()
	repo.due = []models.MasterApplication{{ID: "app-1"}, {ID: "app-2"}, {ID: "app-3"}}
	repo.resolveFn = func(id string, now time.Time) (*models.MasterApplication, *models.TeamMaster, bool, error) {
		switch id {
		case "app-1":
			return &models.MasterApplication{ID: id, Status: models.ApplicationStatusRejected}, nil, true, nil
		case "app-2":
			// Raced by a live vote that already closed it.
			return &models.MasterApplication{ID: id, Status: models.ApplicationStatusApproved}, nil, false, nil
		default:
			return nil, nil, false, errors.New("lock timeout")
		}
	}
	audit := &auditStub{}
	notif := &notifierStub{}
	svc := newTestApplicationService(repo, &eligibilityStub{}, audit, notif)

	resolved, err := svc.SweepDue(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, resolved)
	require.Contains(t, audit.actions(), models.AuditActionApplicationResolve)
	require.Contains(t, notif.events, models.AuditActionApplicationResolve)
}
