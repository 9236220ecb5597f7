package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/internal/repository"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type challengeStore interface {
	Create(ctx context.Context, ch *models.MasterChallenge) error
	GetByID(ctx context.Context, id string) (*models.MasterChallenge, error)
	List(ctx context.Context, filter models.ChallengeFilter) ([]models.MasterChallenge, error)
	Respond(ctx context.Context, id string, accept bool, deadline time.Time, note *string, now time.Time) (*models.MasterChallenge, error)
	UpsertMetrics(ctx context.Context, m *models.ChallengeMetrics) error
	GetMetrics(ctx context.Context, challengeID string) ([]models.ChallengeMetrics, error)
	CastVote(ctx context.Context, vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error)
	Tally(ctx context.Context, challengeID string) (models.ChallengeTally, error)
	ListVotes(ctx context.Context, challengeID string) ([]models.ChallengeVote, error)
	Adjudicate(ctx context.Context, id string, result models.ChallengeResult, notes string) (*models.MasterChallenge, error)
	ListPendingOverdue(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error)
	DeclineOverdue(ctx context.Context, id string, now time.Time) (*models.MasterChallenge, bool, error)
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error)
	Complete(ctx context.Context, id string, now time.Time, decide repository.DecideChallengeFunc) (*models.MasterChallenge, *models.TeamMaster, bool, error)
}

type masterRoster interface {
	GetActive(ctx context.Context, roleName string, projectID *string) (*models.TeamMaster, error)
}

// ChallengeService runs the challenge ledger: initiation, the master's
// response, metric and ballot intake, and deadline completion.
type ChallengeService struct {
	repo        challengeStore
	masters     masterRoster
	eligibility eligibilityChecker
	scoring     *ScoringEngine
	cache       *CacheService
	audit       auditLogger
	notifier    notifier
	metrics     *MetricsService
	provider    MetricsProvider
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.GovernanceConfig
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewChallengeService constructs the service.
func NewChallengeService(repo challengeStore, masters masterRoster, eligibility eligibilityChecker, scoring *ScoringEngine, cache *CacheService, audit auditLogger, notif notifier, metrics *MetricsService, provider MetricsProvider, logger *zap.Logger, cfg config.GovernanceConfig, cacheTTL time.Duration) *ChallengeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	return &ChallengeService{
		repo:        repo,
		masters:     masters,
		eligibility: eligibility,
		scoring:     scoring,
		cache:       cache,
		audit:       audit,
		notifier:    notif,
		metrics:     metrics,
		provider:    provider,
		validator:   validator.New(),
		logger:      logger,
		cfg:         cfg,
		cacheTTL:    cacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a challenge against the active master of a role slot.
func (s *ChallengeService) Create(ctx context.Context, req dto.CreateChallengeRequest, actorID string) (*models.MasterChallenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	roleName := strings.TrimSpace(req.RoleName)
	if roleName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roleName is required")
	}
	criteria, err := s.buildCriteria(req)
	if err != nil {
		return nil, err
	}

	result, err := s.eligibility.Evaluate(ctx, actorID, roleName)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		return nil, appErrors.WithReasons(appErrors.ErrNotEligible, result.Reasons)
	}

	master, err := s.masters.GetActive(ctx, roleName, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active master holds this role")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active master")
	}
	if master.UserID == actorID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot challenge yourself")
	}

	now := s.now()
	ch := &models.MasterChallenge{
		ChallengerID:     actorID,
		MasterID:         master.UserID,
		RoleName:         roleName,
		ProjectID:        req.ProjectID,
		Status:           models.ChallengeStatusPending,
		Type:             req.Type,
		Criteria:         criteria,
		ResponseDeadline: now.Add(s.cfg.ResponseWindow),
		CreatedAt:        now,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create challenge")
	}

	s.emitAudit(ctx, actorID, models.AuditActionChallengeCreate, ch.ID, ch)
	s.notify(ctx, models.AuditActionChallengeCreate, ch.ID, ch)
	return ch, nil
}

// Get returns one challenge.
func (s *ChallengeService) Get(ctx context.Context, id string) (*models.MasterChallenge, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challenge")
	}
	return ch, nil
}

// List returns challenges matching the query.
func (s *ChallengeService) List(ctx context.Context, query dto.ChallengeQuery) ([]models.MasterChallenge, error) {
	challenges, err := s.repo.List(ctx, models.ChallengeFilter{
		Status:       query.Status,
		Type:         query.Type,
		RoleName:     query.RoleName,
		ChallengerID: query.ChallengerID,
		MasterID:     query.MasterID,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list challenges")
	}
	return challenges, nil
}

// Respond records the challenged master's accept or decline decision. Only
// the targeted master may respond; acceptance fixes the measurement
// deadline from the per-type window.
func (s *ChallengeService) Respond(ctx context.Context, id string, req dto.RespondChallengeRequest, actorID string) (*models.MasterChallenge, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.MasterID != actorID {
		return nil, appErrors.ErrForbidden
	}

	now := s.now()
	deadline := now.Add(s.windowFor(ch.Type))
	ch, err = s.repo.Respond(ctx, id, req.Accept, deadline, req.Note, now)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return ch, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to respond to challenge")
	}

	s.emitAudit(ctx, actorID, models.AuditActionChallengeRespond, ch.ID, ch)
	s.notify(ctx, models.AuditActionChallengeRespond, ch.ID, ch)
	if ch.Status == models.ChallengeStatusDeclined {
		s.metrics.RecordTransition("challenge", string(ch.Status))
	}
	return ch, nil
}

// SubmitMetrics upserts one side's performance snapshot for an open
// challenge.
func (s *ChallengeService) SubmitMetrics(ctx context.Context, id string, req dto.SubmitMetricsRequest) (*models.ChallengeMetrics, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.Side != models.SideChallenger && req.Side != models.SideMaster {
		return nil, appErrors.Clone(appErrors.ErrValidation, "side must be CHALLENGER or MASTER")
	}
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Status != models.ChallengeStatusInProgress {
		return nil, appErrors.ErrInvalidState
	}
	if ch.Deadline != nil && !s.now().Before(*ch.Deadline) {
		// The completion sweep owns this transition; late snapshots bounce.
		return nil, appErrors.ErrWindowClosed
	}

	m := &models.ChallengeMetrics{
		ChallengeID:        id,
		Side:               req.Side,
		TasksCompleted:     req.TasksCompleted,
		TasksOnTimePercent: req.TasksOnTimePercent,
		ObvsValidated:      req.ObvsValidated,
		FeedbackScore:      req.FeedbackScore,
		Initiative:         req.Initiative,
		UpdatedAt:          s.now(),
	}
	if err := s.repo.UpsertMetrics(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store metrics")
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, scoreCacheKey(id))
	}
	return m, nil
}

// CastVote records one peer-vote ballot and returns the challenge state.
func (s *ChallengeService) CastVote(ctx context.Context, id string, req dto.CastChallengeVoteRequest, actorID string) (*models.MasterChallenge, error) {
	vote := &models.ChallengeVote{
		ChallengeID:   id,
		VoterID:       actorID,
		ForChallenger: req.ForChallenger,
	}
	ch, err := s.repo.CastVote(ctx, vote, s.now())
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return ch, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cast ballot")
	}

	s.metrics.RecordVoteCast("challenge")
	s.emitAudit(ctx, actorID, models.AuditActionChallengeVote, id, nil)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, progressCacheKey(id))
	}
	return ch, nil
}

// ListVotes returns the ballots of a completed peer-vote challenge.
// Ballots stay sealed while the challenge is open.
func (s *ChallengeService) ListVotes(ctx context.Context, id string) ([]models.ChallengeVote, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Type != models.ChallengeTypePeerVote {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "ballots apply to peer-vote challenges only")
	}
	if ch.Status != models.ChallengeStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "ballots stay sealed until the challenge completes")
	}
	votes, err := s.repo.ListVotes(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ballots")
	}
	return votes, nil
}

// Adjudicate records the externally decided outcome of a project showdown.
func (s *ChallengeService) Adjudicate(ctx context.Context, id string, req dto.AdjudicateRequest, actorID string) (*models.MasterChallenge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	switch req.Result {
	case models.ResultChallengerWins, models.ResultMasterWins, models.ResultDraw:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "result must be CHALLENGER_WINS, MASTER_WINS, or DRAW")
	}
	ch, err := s.repo.Adjudicate(ctx, id, req.Result, req.Notes)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return ch, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record adjudication")
	}

	s.emitAudit(ctx, actorID, models.AuditActionChallengeAdjudicate, id, ch)
	return ch, nil
}

// LiveScore computes the current battle score of a performance challenge.
func (s *ChallengeService) LiveScore(ctx context.Context, id string) (*models.BattleScore, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Type != models.ChallengeTypePerformance {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "live score applies to performance challenges only")
	}

	var cached models.BattleScore
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, scoreCacheKey(id), &cached); hit {
			return &cached, nil
		}
	}

	metrics, err := s.repo.GetMetrics(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load metrics")
	}
	score := s.scoring.LiveBattleScore(id, metrics)
	score.ComputedAt = s.now()

	if s.cache != nil {
		_ = s.cache.Set(ctx, scoreCacheKey(id), score, s.cacheTTL)
	}
	return &score, nil
}

// Progress reports peer-vote participation. The for/against split stays
// hidden until the challenge completes.
func (s *ChallengeService) Progress(ctx context.Context, id string) (*models.VotingProgress, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Type != models.ChallengeTypePeerVote {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "voting progress applies to peer-vote challenges only")
	}

	var cached models.VotingProgress
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, progressCacheKey(id), &cached); hit {
			return &cached, nil
		}
	}

	tally, err := s.repo.Tally(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to tally ballots")
	}
	progress := &models.VotingProgress{
		ChallengeID: id,
		VotesCast:   tally.VotesCast(),
	}
	if s.provider != nil {
		pool, err := s.provider.VoterPool(ctx, ch.RoleName, ch.ProjectID)
		if err != nil {
			s.logger.Warn("failed to resolve voter pool", zap.String("challenge_id", id), zap.Error(err))
		} else {
			progress.TotalVoters = pool
		}
	}
	if ch.Status == models.ChallengeStatusCompleted {
		challengerVotes := tally.ChallengerVotes
		masterVotes := tally.MasterVotes
		progress.ChallengerVotes = &challengerVotes
		progress.MasterVotes = &masterVotes
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, progressCacheKey(id), progress, s.cacheTTL)
	}
	return progress, nil
}

// SweepResponses declines every challenge whose master never answered in
// time and returns how many transitions were made.
func (s *ChallengeService) SweepResponses(ctx context.Context, batchSize int) (int, error) {
	now := s.now()
	overdue, err := s.repo.ListPendingOverdue(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	declined := 0
	for _, candidate := range overdue {
		ch, transitioned, err := s.repo.DeclineOverdue(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Warn("failed to decline overdue challenge", zap.String("challenge_id", candidate.ID), zap.Error(err))
			continue
		}
		if !transitioned {
			continue
		}
		declined++
		s.metrics.RecordTransition("challenge", string(ch.Status))
		s.emitAudit(ctx, "", models.AuditActionChallengeResolve, ch.ID, ch)
		s.notify(ctx, models.AuditActionChallengeResolve, ch.ID, ch)
	}
	return declined, nil
}

// SweepCompletions finalizes every challenge whose measurement window has
// elapsed and returns how many completions were made.
func (s *ChallengeService) SweepCompletions(ctx context.Context, batchSize int) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueForCompletion(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, candidate := range due {
		ch, promoted, transitioned, err := s.repo.Complete(ctx, candidate.ID, now, s.scoring.Decide)
		if err != nil {
			s.logger.Warn("failed to complete challenge", zap.String("challenge_id", candidate.ID), zap.Error(err))
			continue
		}
		if !transitioned {
			continue
		}
		completed++
		outcome := ""
		if ch.Result != nil {
			outcome = string(*ch.Result)
		}
		s.metrics.RecordTransition("challenge", outcome)
		s.emitAudit(ctx, "", models.AuditActionChallengeResolve, ch.ID, ch)
		s.notify(ctx, models.AuditActionChallengeResolve, ch.ID, ch)
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx, scoreCacheKey(ch.ID))
			_ = s.cache.Invalidate(ctx, progressCacheKey(ch.ID))
		}
		if promoted != nil {
			s.emitAudit(ctx, "", models.AuditActionMasterSupersede, promoted.ID, promoted)
			s.notify(ctx, models.AuditActionMasterSupersede, promoted.ID, promoted)
		}
	}
	return completed, nil
}

func (s *ChallengeService) buildCriteria(req dto.CreateChallengeRequest) (models.ChallengeCriteria, error) {
	switch req.Type {
	case models.ChallengeTypePerformance:
		return models.ChallengeCriteria{}, nil
	case models.ChallengeTypePeerVote:
		criteria := &models.PeerVoteCriteria{
			MasterShare:     s.cfg.MasterVoteShare,
			ChallengerShare: s.cfg.ChallengerVoteShare,
		}
		if req.MasterShare > 0 {
			criteria.MasterShare = req.MasterShare
		}
		if req.ChallengerShare > 0 {
			criteria.ChallengerShare = req.ChallengerShare
		}
		return models.ChallengeCriteria{PeerVote: criteria}, nil
	case models.ChallengeTypeProject:
		if strings.TrimSpace(req.AdjudicationRef) == "" {
			return models.ChallengeCriteria{}, appErrors.Clone(appErrors.ErrValidation, "adjudicationRef is required for project challenges")
		}
		return models.ChallengeCriteria{Project: &models.ProjectCriteria{AdjudicationRef: req.AdjudicationRef}}, nil
	default:
		return models.ChallengeCriteria{}, appErrors.Clone(appErrors.ErrValidation, "challengeType must be PERFORMANCE, PROJECT, or PEER_VOTE")
	}
}

func (s *ChallengeService) windowFor(challengeType models.ChallengeType) time.Duration {
	switch challengeType {
	case models.ChallengeTypeProject:
		return s.cfg.ProjectWindow
	case models.ChallengeTypePeerVote:
		return s.cfg.PeerVoteWindow
	default:
		return s.cfg.PerformanceWindow
	}
}

func (s *ChallengeService) emitAudit(ctx context.Context, actorID, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "master_challenge",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "challenge-service",
	}
	if action == models.AuditActionMasterSupersede {
		log.Resource = "team_master"
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			log.NewValues = data
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *ChallengeService) notify(ctx context.Context, event, resourceID string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	resource := "master_challenge"
	if event == models.AuditActionMasterSupersede {
		resource = "team_master"
	}
	s.notifier.Notify(ctx, event, resource, resourceID, payload)
}

func scoreCacheKey(id string) string {
	return fmt.Sprintf("challenge:score:%s", id)
}

func progressCacheKey(id string) string {
	return fmt.Sprintf("challenge:progress:%s", id)
}
