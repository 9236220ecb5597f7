package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
)

type applicationSweeper interface {
	SweepDue(ctx context.Context, batchSize int) (int, error)
}

type challengeSweeper interface {
	SweepResponses(ctx context.Context, batchSize int) (int, error)
	SweepCompletions(ctx context.Context, batchSize int) (int, error)
}

// SweeperService is the sole authority for time-based transitions. It
// ticks on an interval and resolves every deadline that has elapsed;
// individual failures are logged and retried on the next pass.
type SweeperService struct {
	applications applicationSweeper
	challenges   challengeSweeper
	audit        auditLogger
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          config.SweeperConfig
}

// NewSweeperService constructs the service.
func NewSweeperService(applications applicationSweeper, challenges challengeSweeper, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg config.SweeperConfig) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &SweeperService{
		applications: applications,
		challenges:   challenges,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start boots the ticker loop until the context is cancelled.
func (s *SweeperService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep across all deadline kinds.
func (s *SweeperService) RunOnce(ctx context.Context) dto.SweepSummary {
	summary := dto.SweepSummary{}

	resolved, err := s.applications.SweepDue(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("application sweep failed", zap.Error(err))
	}
	summary.ApplicationsResolved = resolved

	declined, err := s.challenges.SweepResponses(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("challenge response sweep failed", zap.Error(err))
	}
	summary.ChallengesDeclined = declined

	completed, err := s.challenges.SweepCompletions(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn("challenge completion sweep failed", zap.Error(err))
	}
	summary.ChallengesCompleted = completed

	s.metrics.RecordSweeperRun()
	if summary.ApplicationsResolved+summary.ChallengesDeclined+summary.ChallengesCompleted > 0 {
		s.logger.Info("sweeper pass resolved deadlines",
			zap.Int("applications_resolved", summary.ApplicationsResolved),
			zap.Int("challenges_declined", summary.ChallengesDeclined),
			zap.Int("challenges_completed", summary.ChallengesCompleted))
		s.recordRun(ctx, summary)
	}
	return summary
}

func (s *SweeperService) recordRun(ctx context.Context, summary dto.SweepSummary) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	log := &models.AuditLog{
		Action:    models.AuditActionSweeperRun,
		Resource:  "sweeper",
		NewValues: payload,
		IPAddress: "system",
		UserAgent: "sweeper-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist sweeper audit log", zap.Error(err))
	}
}
