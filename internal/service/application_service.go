package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.MasterApplication) error
	GetByID(ctx context.Context, id string) (*models.MasterApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.MasterApplication, error)
	ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error)
	CastVote(ctx context.Context, vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.MasterApplication, error)
	Resolve(ctx context.Context, id string, now time.Time) (*models.MasterApplication, *models.TeamMaster, bool, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type eligibilityChecker interface {
	Evaluate(ctx context.Context, userID, roleName string) (*models.EligibilityResult, error)
}

type notifier interface {
	Notify(ctx context.Context, event, resource, resourceID string, payload interface{})
}

// ApplicationService runs the master-application ledger: submissions,
// quorum voting, and deadline resolution.
type ApplicationService struct {
	repo        applicationStore
	eligibility eligibilityChecker
	audit       auditLogger
	notifier    notifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.GovernanceConfig
	now         func() time.Time
}

// NewApplicationService constructs the service.
func NewApplicationService(repo applicationStore, eligibility eligibilityChecker, audit auditLogger, notifier notifier, metrics *MetricsService, logger *zap.Logger, cfg config.GovernanceConfig) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultVotesRequired <= 0 {
		cfg.DefaultVotesRequired = 8
	}
	if cfg.VotingWindow <= 0 {
		cfg.VotingWindow = 168 * time.Hour
	}
	return &ApplicationService{
		repo:        repo,
		eligibility: eligibility,
		audit:       audit,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validator.New(),
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the candidate against the eligibility gates and opens
// the application for voting.
func (s *ApplicationService) Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.MasterApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	roleName := strings.TrimSpace(req.RoleName)
	if roleName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roleName is required")
	}
	if strings.TrimSpace(req.Motivation) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "motivation is required")
	}

	result, err := s.eligibility.Evaluate(ctx, actorID, roleName)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		return nil, appErrors.WithReasons(appErrors.ErrNotEligible, result.Reasons)
	}

	votesRequired := req.VotesRequired
	if votesRequired <= 0 {
		votesRequired = s.cfg.DefaultVotesRequired
	}
	now := s.now()
	app := &models.MasterApplication{
		UserID:         actorID,
		RoleName:       roleName,
		ProjectID:      req.ProjectID,
		Status:         models.ApplicationStatusVoting,
		Motivation:     req.Motivation,
		Achievements:   req.Achievements,
		VotesRequired:  votesRequired,
		VotingDeadline: now.Add(s.cfg.VotingWindow),
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.emitAudit(ctx, actorID, models.AuditActionApplicationSubmit, app.ID, app)
	s.notify(ctx, models.AuditActionApplicationSubmit, app.ID, app)
	return app, nil
}

// Get returns one application.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.MasterApplication, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// List returns applications matching the query.
func (s *ApplicationService) List(ctx context.Context, query dto.ApplicationQuery) ([]models.MasterApplication, error) {
	apps, err := s.repo.List(ctx, models.ApplicationFilter{
		Status:   query.Status,
		RoleName: query.RoleName,
		UserID:   query.UserID,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, nil
}

// CastVote records the actor's ballot and returns the resulting application
// state. Contended transactions are retried before giving up.
func (s *ApplicationService) CastVote(ctx context.Context, applicationID string, req dto.CastVoteRequest, actorID string) (*models.MasterApplication, error) {
	var (
		app    *models.MasterApplication
		master *models.TeamMaster
		err    error
	)
	attempts := s.cfg.VoteRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		vote := &models.MasterVote{
			ApplicationID: applicationID,
			VoterID:       actorID,
			InFavor:       req.InFavor,
			Comment:       req.Comment,
		}
		app, master, err = s.repo.CastVote(ctx, vote, s.now())
		if err == nil || !isRetryableTxError(err) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.VoteRetryBackoff):
		}
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return app, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cast vote")
	}

	s.metrics.RecordVoteCast("application")
	s.emitAudit(ctx, actorID, models.AuditActionApplicationVote, applicationID, app)
	if app.Status.Terminal() {
		s.recordOutcome(ctx, app, master)
	}
	return app, nil
}

// ListVotes returns the ballots for an application.
func (s *ApplicationService) ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error) {
	if _, err := s.Get(ctx, applicationID); err != nil {
		return nil, err
	}
	votes, err := s.repo.ListVotes(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list votes")
	}
	return votes, nil
}

// SweepDue resolves every application whose voting window has elapsed and
// returns how many transitions were made.
func (s *ApplicationService) SweepDue(ctx context.Context, batchSize int) (int, error) {
	now := s.now()
	due, err := s.repo.ListDue(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, candidate := range due {
		app, master, transitioned, err := s.repo.Resolve(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Warn("failed to resolve application", zap.String("application_id", candidate.ID), zap.Error(err))
			continue
		}
		if !transitioned {
			continue
		}
		resolved++
		s.emitAudit(ctx, "", models.AuditActionApplicationResolve, app.ID, app)
		s.recordOutcome(ctx, app, master)
	}
	return resolved, nil
}

func (s *ApplicationService) recordOutcome(ctx context.Context, app *models.MasterApplication, master *models.TeamMaster) {
	s.metrics.RecordTransition("application", string(app.Status))
	s.notify(ctx, models.AuditActionApplicationResolve, app.ID, app)
	if master != nil {
		s.emitAudit(ctx, "", models.AuditActionMasterAppoint, master.ID, master)
		s.notify(ctx, models.AuditActionMasterAppoint, master.ID, master)
	}
}

func (s *ApplicationService) emitAudit(ctx context.Context, actorID, action, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "master_application",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "application-service",
	}
	if action == models.AuditActionMasterAppoint {
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

func (s *ApplicationService) notify(ctx context.Context, event, resourceID string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	resource := "master_application"
	if event == models.AuditActionMasterAppoint {
		resource = "team_master"
	}
	s.notifier.Notify(ctx, event, resource, resourceID, payload)
}

// isRetryableTxError reports serialization failures and deadlocks, the two
// conditions worth replaying a vote transaction for.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
