package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/internal/repository"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type challengeStoreStub struct {
	created       *models.MasterChallenge
	challenges    map[string]*models.MasterChallenge
	metrics       []models.ChallengeMetrics
	upserted      *models.ChallengeMetrics
	tally         models.ChallengeTally
	ballots       []models.ChallengeVote
	createErr     error
	respondFn     func(id string, accept bool, deadline time.Time, note *string, now time.Time) (*models.MasterChallenge, error)
	castVoteFn    func(vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error)
	adjudicateFn  func(id string, result models.ChallengeResult, notes string) (*models.MasterChallenge, error)
	overdue       []models.MasterChallenge
	declineFn     func(id string, now time.Time) (*models.MasterChallenge, bool, error)
	dueCompletion []models.MasterChallenge
	completeFn    func(id string, now time.Time, decide repository.DecideChallengeFunc) (*models.MasterChallenge, *models.TeamMaster, bool, error)
}

func newChallengeStoreStub() *challengeStoreStub {
	return &challengeStoreStub{challenges: make(map[string]*models.MasterChallenge)}
}

func (s *challengeStoreStub) Create(ctx context.Context, ch *models.MasterChallenge) error {
	if s.createErr != nil {
		return s.createErr
	}
	ch.ID = "ch-1"
	s.created = ch
	s.challenges[ch.ID] = ch
	return nil
}

func (s *challengeStoreStub) GetByID(ctx context.Context, id string) (*models.MasterChallenge, error) {
	if ch, ok := s.challenges[id]; ok {
		copied := *ch
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *challengeStoreStub) List(ctx context.Context, filter models.ChallengeFilter) ([]models.MasterChallenge, error) {
	result := make([]models.MasterChallenge, 0, len(s.challenges))
	for _, ch := range s.challenges {
		result = append(result, *ch)
	}
	return result, nil
}

func (s *challengeStoreStub) Respond(ctx context.Context, id string, accept bool, deadline time.Time, note *string, now time.Time) (*models.MasterChallenge, error) {
	if s.respondFn != nil {
		return s.respondFn(id, accept, deadline, note, now)
	}
	return nil, sql.ErrNoRows
}

func (s *challengeStoreStub) UpsertMetrics(ctx context.Context, m *models.ChallengeMetrics) error {
	s.upserted = m
	return nil
}

func (s *challengeStoreStub) GetMetrics(ctx context.Context, challengeID string) ([]models.ChallengeMetrics, error) {
	return s.metrics, nil
}

func (s *challengeStoreStub) CastVote(ctx context.Context, vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error) {
	if s.castVoteFn != nil {
		return s.castVoteFn(vote, now)
	}
	return nil, sql.ErrNoRows
}

func (s *challengeStoreStub) Tally(ctx context.Context, challengeID string) (models.ChallengeTally, error) {
	return s.tally, nil
}

func (s *challengeStoreStub) ListVotes(ctx context.Context, challengeID string) ([]models.ChallengeVote, error) {
	return s.ballots, nil
}

func (s *challengeStoreStub) Adjudicate(ctx context.Context, id string, result models.ChallengeResult, notes string) (*models.MasterChallenge, error) {
	if s.adjudicateFn != nil {
		return s.adjudicateFn(id, result, notes)
	}
	return nil, sql.ErrNoRows
}

func (s *challengeStoreStub) ListPendingOverdue(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error) {
	return s.overdue, nil
}

func (s *challengeStoreStub) DeclineOverdue(ctx context.Context, id string, now time.Time) (*models.MasterChallenge, bool, error) {
	if s.declineFn != nil {
		return s.declineFn(id, now)
	}
	return nil, false, sql.ErrNoRows
}

func (s *challengeStoreStub) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error) {
	return s.dueCompletion, nil
}

func (s *challengeStoreStub) Complete(ctx context.Context, id string, now time.Time, decide repository.DecideChallengeFunc) (*models.MasterChallenge, *models.TeamMaster, bool, error) {
	if s.completeFn != nil {
		return s.completeFn(id, now, decide)
	}
	return nil, nil, false, sql.ErrNoRows
}

type masterRosterStub struct {
	master *models.TeamMaster
	err    error
}

func (m *masterRosterStub) GetActive(ctx context.Context, roleName string, projectID *string) (*models.TeamMaster, error) {
	if m.err != nil {
		return nil, m.err
	}
	copied := *m.master
	return &copied, nil
}

func newTestChallengeService(repo *challengeStoreStub, masters *masterRosterStub, eligibility *eligibilityStub, audit *auditStub, notif *notifierStub, provider MetricsProvider) *ChallengeService {
	cfg := governanceTestConfig()
	svc := NewChallengeService(repo, masters, eligibility, NewScoringEngine(cfg), nil, audit, notif, nil, provider, nil, cfg, time.Second)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestChallengeCreatePerformance(t *testing.T) {
	repo := newChallengeStoreStub()
	masters := &masterRosterStub{master: &models.TeamMaster{ID: "master-1", UserID: "incumbent", RoleName: "backend", IsActive: true}}
	audit := &auditStub{}
	notif := &notifierStub{}
	svc := newTestChallengeService(repo, masters, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, audit, notif, nil)

	ch, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypePerformance,
	}, "contender")
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusPending, ch.Status)
	require.Equal(t, "incumbent", ch.MasterID)
	require.Equal(t, svc.now().Add(72*time.Hour), ch.ResponseDeadline)
	require.Equal(t, []string{models.AuditActionChallengeCreate}, audit.actions())
	require.Equal(t, []string{models.AuditActionChallengeCreate}, notif.events)
}

func TestChallengeCreatePeerVoteDefaultShares(t *testing.T) {
	repo := newChallengeStoreStub()
	masters := &masterRosterStub{master: &models.TeamMaster{UserID: "incumbent", RoleName: "backend"}}
	svc := newTestChallengeService(repo, masters, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, &auditStub{}, &notifierStub{}, nil)

	ch, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypePeerVote,
	}, "contender")
	require.NoError(t, err)
	require.NotNil(t, ch.Criteria.PeerVote)
	require.InDelta(t, 0.51, ch.Criteria.PeerVote.MasterShare, 0.0001)
	require.InDelta(t, 0.60, ch.Criteria.PeerVote.ChallengerShare, 0.0001)
}

func TestChallengeCreateRejectsSelfChallenge(t *testing.T) {
	repo := newChallengeStoreStub()
	masters := &masterRosterStub{master: &models.TeamMaster{UserID: "incumbent", RoleName: "backend"}}
	svc := newTestChallengeService(repo, masters, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypePerformance,
	}, "incumbent")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Equal(t, "cannot challenge yourself", appErr.Message)
}

func TestChallengeCreateNoActiveMaster(t *testing.T) {
	repo := newChallengeStoreStub()
	masters := &masterRosterStub{err: sql.ErrNoRows}
	svc := newTestChallengeService(repo, masters, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypePerformance,
	}, "contender")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	require.Equal(t, "no active master holds this role", appErr.Message)
}

func TestChallengeCreateProjectRequiresAdjudicationRef(t *testing.T) {
	svc := newTestChallengeService(newChallengeStoreStub(), &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypeProject,
	}, "contender")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChallengeCreatePassesThroughConflict(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.createErr = appErrors.Clone(appErrors.ErrConflict, "an open challenge already targets this master")
	masters := &masterRosterStub{master: &models.TeamMaster{UserID: "incumbent", RoleName: "backend"}}
	svc := newTestChallengeService(repo, masters, &eligibilityStub{result: models.EligibilityResult{Eligible: true}}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Create(context.Background(), dto.CreateChallengeRequest{
		RoleName: "backend",
		Type:     models.ChallengeTypePerformance,
	}, "contender")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestChallengeRespondOnlyMasterMayAnswer(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{
		ID:       "ch-1",
		MasterID: "incumbent",
		Status:   models.ChallengeStatusPending,
		Type:     models.ChallengeTypePerformance,
	}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Respond(context.Background(), "ch-1", dto.RespondChallengeRequest{Accept: true}, "bystander")
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestChallengeRespondAcceptSetsTypeWindow(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{
		ID:       "ch-1",
		MasterID: "incumbent",
		Status:   models.ChallengeStatusPending,
		Type:     models.ChallengeTypePeerVote,
	}
	var gotDeadline time.Time
	repo.respondFn = func(id string, accept bool, deadline time.Time, note *string, now time.Time) (*models.MasterChallenge, error) {
		gotDeadline = deadline
		ch := *repo.challenges[id]
		ch.Status = models.ChallengeStatusInProgress
		ch.Deadline = &deadline
		return &ch, nil
	}
	audit := &auditStub{}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, audit, &notifierStub{}, nil)

	ch, err := svc.Respond(context.Background(), "ch-1", dto.RespondChallengeRequest{Accept: true}, "incumbent")
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusInProgress, ch.Status)
	require.Equal(t, svc.now().Add(168*time.Hour), gotDeadline)
	require.Equal(t, []string{models.AuditActionChallengeRespond}, audit.actions())
}

func TestChallengeSubmitMetricsValidatesSide(t *testing.T) {
	svc := newTestChallengeService(newChallengeStoreStub(), &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.SubmitMetrics(context.Background(), "ch-1", dto.SubmitMetricsRequest{Side: "REFEREE"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChallengeSubmitMetricsStateGates(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["done"] = &models.MasterChallenge{ID: "done", Status: models.ChallengeStatusCompleted, Type: models.ChallengeTypePerformance}
	repo.challenges["pending"] = &models.MasterChallenge{ID: "pending", Status: models.ChallengeStatusPending, Type: models.ChallengeTypePerformance}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)
	lateDeadline := svc.now().Add(-time.Minute)
	repo.challenges["late"] = &models.MasterChallenge{ID: "late", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePerformance, Deadline: &lateDeadline}

	// A resolved challenge is an invalid target regardless of its deadline.
	_, err := svc.SubmitMetrics(context.Background(), "done", dto.SubmitMetricsRequest{Side: models.SideMaster})
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = svc.SubmitMetrics(context.Background(), "pending", dto.SubmitMetricsRequest{Side: models.SideMaster})
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = svc.SubmitMetrics(context.Background(), "late", dto.SubmitMetricsRequest{Side: models.SideMaster})
	require.ErrorIs(t, err, appErrors.ErrWindowClosed)
}

func TestChallengeSubmitMetricsRejectsOutOfRangeValues(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePerformance}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.SubmitMetrics(context.Background(), "ch-1", dto.SubmitMetricsRequest{
		Side:               models.SideMaster,
		TasksOnTimePercent: 150,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.SubmitMetrics(context.Background(), "ch-1", dto.SubmitMetricsRequest{
		Side:          models.SideMaster,
		FeedbackScore: 9,
	})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Nil(t, repo.upserted)
}

func TestChallengeSubmitMetricsUpserts(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePerformance}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	m, err := svc.SubmitMetrics(context.Background(), "ch-1", dto.SubmitMetricsRequest{
		Side:               models.SideChallenger,
		TasksCompleted:     7,
		TasksOnTimePercent: 85,
		ObvsValidated:      3,
		FeedbackScore:      4.1,
		Initiative:         3.5,
	})
	require.NoError(t, err)
	require.Equal(t, models.SideChallenger, m.Side)
	require.Equal(t, svc.now(), m.UpdatedAt)
	require.NotNil(t, repo.upserted)
	require.Equal(t, 7, repo.upserted.TasksCompleted)
}

func TestChallengeCastVotePassesThroughWindowClosed(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.castVoteFn = func(vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error) {
		return nil, appErrors.ErrWindowClosed
	}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.CastVote(context.Background(), "ch-1", dto.CastChallengeVoteRequest{ForChallenger: true}, "voter-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrWindowClosed.Code, appErr.Code)
}

func TestChallengeCastVoteRecordsAudit(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.castVoteFn = func(vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error) {
		return &models.MasterChallenge{ID: vote.ChallengeID, Status: models.ChallengeStatusInProgress}, nil
	}
	audit := &auditStub{}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, audit, &notifierStub{}, nil)

	ch, err := svc.CastVote(context.Background(), "ch-1", dto.CastChallengeVoteRequest{ForChallenger: true}, "voter-1")
	require.NoError(t, err)
	require.Equal(t, "ch-1", ch.ID)
	require.Equal(t, []string{models.AuditActionChallengeVote}, audit.actions())
}

func TestChallengeListVotesSealedUntilCompleted(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePeerVote}
	repo.ballots = []models.ChallengeVote{
		{ID: "v-1", ChallengeID: "ch-1", VoterID: "voter-1", ForChallenger: true},
		{ID: "v-2", ChallengeID: "ch-1", VoterID: "voter-2", ForChallenger: false},
	}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.ListVotes(context.Background(), "ch-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)

	repo.challenges["ch-1"].Status = models.ChallengeStatusCompleted
	votes, err := svc.ListVotes(context.Background(), "ch-1")
	require.NoError(t, err)
	require.Len(t, votes, 2)
}

func TestChallengeListVotesOnlyPeerVote(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusCompleted, Type: models.ChallengeTypePerformance}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.ListVotes(context.Background(), "ch-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestChallengeAdjudicateValidatesResult(t *testing.T) {
	svc := newTestChallengeService(newChallengeStoreStub(), &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Adjudicate(context.Background(), "ch-1", dto.AdjudicateRequest{Result: "SPLIT_DECISION"}, "admin")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestChallengeLiveScoreOnlyPerformance(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePeerVote}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.LiveScore(context.Background(), "ch-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestChallengeLiveScoreComputesBothSides(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePerformance}
	repo.metrics = []models.ChallengeMetrics{
		{Side: models.SideChallenger, TasksCompleted: 10, TasksOnTimePercent: 100, ObvsValidated: 10, FeedbackScore: 5, Initiative: 5},
		{Side: models.SideMaster, TasksCompleted: 5, TasksOnTimePercent: 50, ObvsValidated: 5, FeedbackScore: 2.5, Initiative: 2.5},
	}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	score, err := svc.LiveScore(context.Background(), "ch-1")
	require.NoError(t, err)
	require.InDelta(t, 100.0, score.ChallengerScore, 0.0001)
	require.InDelta(t, 50.0, score.MasterScore, 0.0001)
	require.Equal(t, svc.now(), score.ComputedAt)
}

func TestChallengeProgressHidesSplitUntilCompleted(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePeerVote, RoleName: "backend"}
	repo.tally = models.ChallengeTally{ChallengerVotes: 3, MasterVotes: 2}
	provider := &providerStub{pool: 12}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, provider)

	progress, err := svc.Progress(context.Background(), "ch-1")
	require.NoError(t, err)
	require.Equal(t, 5, progress.VotesCast)
	require.Equal(t, 12, progress.TotalVoters)
	require.Nil(t, progress.ChallengerVotes)
	require.Nil(t, progress.MasterVotes)

	repo.challenges["ch-1"].Status = models.ChallengeStatusCompleted
	progress, err = svc.Progress(context.Background(), "ch-1")
	require.NoError(t, err)
	require.NotNil(t, progress.ChallengerVotes)
	require.Equal(t, 3, *progress.ChallengerVotes)
	require.NotNil(t, progress.MasterVotes)
	require.Equal(t, 2, *progress.MasterVotes)
}

func TestChallengeProgressOnlyPeerVote(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.challenges["ch-1"] = &models.MasterChallenge{ID: "ch-1", Status: models.ChallengeStatusInProgress, Type: models.ChallengeTypePerformance}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, &auditStub{}, &notifierStub{}, nil)

	_, err := svc.Progress(context.Background(), "ch-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestChallengeSweepResponsesCountsDeclines(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.overdue = []models.MasterChallenge{{ID: "ch-1"}, {ID: "ch-2"}, {ID: "ch-3"}}
	repo.declineFn = func(id string, now time.Time) (*models.MasterChallenge, bool, error) {
		switch id {
		case "ch-1":
			return &models.MasterChallenge{ID: id, Status: models.ChallengeStatusDeclined}, true, nil
		case "ch-2":
			// Answered between the scan and the lock.
			return &models.MasterChallenge{ID: id, Status: models.ChallengeStatusInProgress}, false, nil
		default:
			return nil, false, errors.New("lock timeout")
		}
	}
	audit := &auditStub{}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, audit, &notifierStub{}, nil)

	declined, err := svc.SweepResponses(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, declined)
	require.Equal(t, []string{models.AuditActionChallengeResolve}, audit.actions())
}

func TestChallengeSweepCompletionsPromotesWinner(t *testing.T) {
	repo := newChallengeStoreStub()
	repo.dueCompletion = []models.MasterChallenge{{ID: "ch-1"}, {ID: "ch-2"}}
	winner := models.ResultChallengerWins
	repo.completeFn = func(id string, now time.Time, decide repository.DecideChallengeFunc) (*models.MasterChallenge, *models.TeamMaster, bool, error) {
		if id == "ch-2" {
			return &models.MasterChallenge{ID: id, Status: models.ChallengeStatusCompleted}, nil, false, nil
		}
		ch := &models.MasterChallenge{ID: id, Status: models.ChallengeStatusCompleted, Result: &winner}
		promoted := &models.TeamMaster{ID: "master-2", UserID: "contender", RoleName: "backend", IsActive: true}
		return ch, promoted, true, nil
	}
	audit := &auditStub{}
	notif := &notifierStub{}
	svc := newTestChallengeService(repo, &masterRosterStub{}, &eligibilityStub{}, audit, notif, nil)

	completed, err := svc.SweepCompletions(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, completed)
	require.Contains(t, audit.actions(), models.AuditActionChallengeResolve)
	require.Contains(t, audit.actions(), models.AuditActionMasterSupersede)
	require.Contains(t, notif.events, models.AuditActionMasterSupersede)
}
