package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/internal/repository"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
	"github.com/noah-isme/teamops-governance-api/pkg/jobs"
)

type dossierJobStore interface {
	Create(ctx context.Context, job *models.DossierJob) error
	GetByID(ctx context.Context, id string) (*models.DossierJob, error)
	Update(ctx context.Context, id string, params repository.UpdateDossierJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.DossierJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DossierJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type dossierGenerator interface {
	Generate(ctx context.Context, job *models.DossierJob) (*ExportResult, error)
}

// DossierService orchestrates decision-record export jobs.
type DossierService struct {
	repo         dossierJobStore
	applications applicationSource
	challenges   challengeSource
	queue        jobDispatcher
	exporter     *ExportService
	logger       *zap.Logger
	cfg          DossierServiceConfig
}

// DossierServiceConfig governs queue recovery and cleanup.
type DossierServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// DossierDownload aggregates resolved download data.
type DossierDownload struct {
	File      *os.File
	Filename  string
	Format    models.DossierFormat
	ExpiresAt time.Time
}

// NewDossierService constructs the dossier service.
func NewDossierService(repo dossierJobStore, applications applicationSource, challenges challengeSource, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg DossierServiceConfig) *DossierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &DossierService{
		repo:         repo,
		applications: applications,
		challenges:   challenges,
		queue:        queue,
		exporter:     exporter,
		logger:       logger,
		cfg:          cfg,
	}
}

// CreateJob validates the request, persists the job, and enqueues
// processing. Dossiers document decisions, so the entity must already be
// resolved.
func (s *DossierService) CreateJob(ctx context.Context, req dto.DossierRequest, actorID string) (*dto.DossierJobResponse, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	job := &models.DossierJob{
		Kind:      req.Kind,
		EntityID:  req.EntityID,
		Format:    req.Format,
		Status:    models.DossierStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create dossier job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Kind)}); err != nil {
		status := models.DossierStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateDossierJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue dossier job")
	}
	return &dto.DossierJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata, enforcing ownership for members.
func (s *DossierService) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.DossierStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dossier job")
	}
	if role == models.RoleMember && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.DossierStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *DossierService) ResolveDownload(ctx context.Context, token string) (*DossierDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dossier job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.DossierStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "dossier not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &DossierDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *DossierService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued dossier jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Kind)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *DossierService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *DossierService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		if len(finished) == 0 {
			break
		}
		for _, job := range finished {
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(finished) < 100 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *DossierService) validateRequest(ctx context.Context, req dto.DossierRequest) error {
	if req.EntityID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "entityId is required")
	}
	if req.Format != models.DossierFormatCSV && req.Format != models.DossierFormatPDF {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported dossier format")
	}
	switch req.Kind {
	case models.DossierKindApplication:
		app, err := s.applications.GetByID(ctx, req.EntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if !app.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidState, "decision record requires a resolved application")
		}
	case models.DossierKindChallenge:
		ch, err := s.challenges.GetByID(ctx, req.EntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challenge")
		}
		if !ch.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidState, "decision record requires a resolved challenge")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported dossier kind")
	}
	return nil
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// DossierWorker bridges queue jobs to the ExportService.
type DossierWorker struct {
	repo       dossierJobStore
	exporter   dossierGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewDossierWorker constructs a worker.
func NewDossierWorker(repo dossierJobStore, exporter dossierGenerator, maxRetries int, logger *zap.Logger) *DossierWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &DossierWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *DossierWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.DossierStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateDossierJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.DossierStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateDossierJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.DossierStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateDossierJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.DossierStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateDossierJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
