package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/export"
	"github.com/noah-isme/teamops-governance-api/pkg/storage"
)

type applicationSource interface {
	GetByID(ctx context.Context, id string) (*models.MasterApplication, error)
	ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error)
}

type challengeSource interface {
	GetByID(ctx context.Context, id string) (*models.MasterChallenge, error)
	GetMetrics(ctx context.Context, challengeID string) ([]models.ChallengeMetrics, error)
	Tally(ctx context.Context, challengeID string) (models.ChallengeTally, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.DossierFormat
	ExpiresAt    time.Time
}

// ExportService renders decision records into downloadable files.
type ExportService struct {
	applications applicationSource
	challenges   challengeSource
	scoring      *ScoringEngine
	storage      fileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(applications applicationSource, challenges challengeSource, scoring *ScoringEngine, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		applications: applications,
		challenges:   challenges,
		scoring:      scoring,
		storage:      store,
		csv:          csv,
		pdf:          pdf,
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Generate builds the decision record for the job and stores the rendered
// file.
func (s *ExportService) Generate(ctx context.Context, job *models.DossierJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.DossierFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.DossierFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/dossiers/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.DossierJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	entityPart := sanitizeFilename(job.EntityID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Kind)), entityPart, timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.DossierJob) (export.Dataset, string, error) {
	switch job.Kind {
	case models.DossierKindApplication:
		return s.buildApplicationDataset(ctx, job.EntityID)
	case models.DossierKindChallenge:
		return s.buildChallengeDataset(ctx, job.EntityID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported dossier kind %s", job.Kind)
	}
}

func (s *ExportService) buildApplicationDataset(ctx context.Context, id string) (export.Dataset, string, error) {
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return export.Dataset{}, "", err
	}
	votes, err := s.applications.ListVotes(ctx, id)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := []map[string]string{
		{"Field": "Application ID", "Value": app.ID},
		{"Field": "Applicant", "Value": app.UserID},
		{"Field": "Role", "Value": app.RoleName},
		{"Field": "Status", "Value": string(app.Status)},
		{"Field": "Votes For", "Value": fmt.Sprintf("%d", app.VotesFor)},
		{"Field": "Votes Against", "Value": fmt.Sprintf("%d", app.VotesAgainst)},
		{"Field": "Votes Required", "Value": fmt.Sprintf("%d", app.VotesRequired)},
		{"Field": "Voting Deadline", "Value": app.VotingDeadline.UTC().Format(time.RFC3339)},
		{"Field": "Resolved At", "Value": formatOptionalTime(app.ReviewedAt)},
	}
	for _, vote := range votes {
		decision := "AGAINST"
		if vote.InFavor {
			decision = "FOR"
		}
		if vote.Comment != nil && *vote.Comment != "" {
			decision = fmt.Sprintf("%s (%s)", decision, *vote.Comment)
		}
		rows = append(rows, map[string]string{
			"Field": fmt.Sprintf("Ballot by %s", vote.VoterID),
			"Value": decision,
		})
	}

	dataset := export.Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
	title := fmt.Sprintf("Application Decision Record %s", app.ID)
	return dataset, title, nil
}

func (s *ExportService) buildChallengeDataset(ctx context.Context, id string) (export.Dataset, string, error) {
	ch, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		return export.Dataset{}, "", err
	}

	result := ""
	if ch.Result != nil {
		result = string(*ch.Result)
	}
	rows := []map[string]string{
		{"Field": "Challenge ID", "Value": ch.ID},
		{"Field": "Challenger", "Value": ch.ChallengerID},
		{"Field": "Master", "Value": ch.MasterID},
		{"Field": "Role", "Value": ch.RoleName},
		{"Field": "Type", "Value": string(ch.Type)},
		{"Field": "Status", "Value": string(ch.Status)},
		{"Field": "Result", "Value": result},
		{"Field": "Result Notes", "Value": derefString(ch.ResultNotes)},
		{"Field": "Completed At", "Value": formatOptionalTime(ch.CompletedAt)},
	}

	switch ch.Type {
	case models.ChallengeTypePerformance:
		metrics, err := s.challenges.GetMetrics(ctx, id)
		if err != nil {
			return export.Dataset{}, "", err
		}
		score := s.scoring.LiveBattleScore(id, metrics)
		rows = append(rows,
			map[string]string{"Field": "Challenger Score", "Value": fmt.Sprintf("%.2f", score.ChallengerScore)},
			map[string]string{"Field": "Master Score", "Value": fmt.Sprintf("%.2f", score.MasterScore)},
		)
	case models.ChallengeTypePeerVote:
		tally, err := s.challenges.Tally(ctx, id)
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows = append(rows,
			map[string]string{"Field": "Challenger Votes", "Value": fmt.Sprintf("%d", tally.ChallengerVotes)},
			map[string]string{"Field": "Master Votes", "Value": fmt.Sprintf("%d", tally.MasterVotes)},
		)
	}

	dataset := export.Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
	title := fmt.Sprintf("Challenge Decision Record %s", ch.ID)
	return dataset, title, nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
