package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

const applicationColumns = `id, user_id, role_name, project_id, status, motivation, achievements,
       votes_for, votes_against, votes_required, voting_deadline, reviewed_at, created_at`

// ApplicationRepository persists master applications and their votes. Tally
// movements and terminal transitions happen inside row-locked transactions
// so a tally can never drift from its vote rows.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.MasterApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusVoting
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO master_applications
	(id, user_id, role_name, project_id, status, motivation, achievements, votes_for, votes_against, votes_required, voting_deadline, reviewed_at, created_at)
	VALUES (:id, :user_id, :role_name, :project_id, :status, :motivation, :achievements, :votes_for, :votes_against, :votes_required, :voting_deadline, :reviewed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetByID fetches an application by identifier.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.MasterApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_applications WHERE id = $1`, applicationColumns)
	var app models.MasterApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter (latest first).
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.MasterApplication, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM master_applications`, applicationColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RoleName != "" {
		args = append(args, filter.RoleName)
		conditions = append(conditions, fmt.Sprintf("role_name = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var apps []models.MasterApplication
	if err := r.db.SelectContext(ctx, &apps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// ListVotes returns all votes for an application (oldest first).
func (r *ApplicationRepository) ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error) {
	const query = `SELECT id, application_id, voter_id, in_favor, comment, created_at
	FROM master_votes WHERE application_id = $1 ORDER BY created_at ASC`
	var votes []models.MasterVote
	if err := r.db.SelectContext(ctx, &votes, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application votes: %w", err)
	}
	return votes, nil
}

// CastVote records a ballot and moves the tally as one atomic unit. The
// application row is locked first so concurrent ballots serialize; the
// per-voter uniqueness constraint turns double voting into ErrDuplicateVote.
// A favorable ballot that reaches quorum approves the application and
// appoints the applicant in the same transaction; the promoted master row
// is returned alongside the updated application.
func (r *ApplicationRepository) CastVote(ctx context.Context, vote *models.MasterVote, now time.Time) (*models.MasterApplication, *models.TeamMaster, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin vote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	app, err := lockApplication(ctx, tx, vote.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	if app.Status != models.ApplicationStatusVoting {
		return app, nil, appErrors.ErrInvalidState
	}
	if !now.Before(app.VotingDeadline) {
		// The deadline sweep owns this transition; late ballots bounce.
		return app, nil, appErrors.ErrWindowClosed
	}

	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	vote.CreatedAt = now
	const insertVote = `INSERT INTO master_votes (id, application_id, voter_id, in_favor, comment, created_at)
	VALUES (:id, :application_id, :voter_id, :in_favor, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertVote, vote); err != nil {
		if isUniqueViolation(err) {
			return app, nil, appErrors.ErrDuplicateVote
		}
		return nil, nil, fmt.Errorf("insert application vote: %w", err)
	}

	tallyColumn := "votes_against"
	if vote.InFavor {
		tallyColumn = "votes_for"
	}
	query := fmt.Sprintf(`UPDATE master_applications SET %s = %s + 1 WHERE id = $1`, tallyColumn, tallyColumn)
	if _, err := tx.ExecContext(ctx, query, app.ID); err != nil {
		return nil, nil, fmt.Errorf("increment tally: %w", err)
	}
	if vote.InFavor {
		app.VotesFor++
	} else {
		app.VotesAgainst++
	}

	var master *models.TeamMaster
	if vote.InFavor && app.VotesFor >= app.VotesRequired {
		if err := transitionApplication(ctx, tx, app, models.ApplicationStatusApproved, now); err != nil {
			return nil, nil, err
		}
		master, err = appointMaster(ctx, tx, app.UserID, app.RoleName, app.ProjectID, now)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit vote: %w", err)
	}
	return app, master, nil
}

// ListDue returns applications whose voting window has elapsed.
func (r *ApplicationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.MasterApplication, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM master_applications
	WHERE status = 'VOTING' AND voting_deadline <= $1 ORDER BY voting_deadline ASC LIMIT $2`, applicationColumns)
	var apps []models.MasterApplication
	if err := r.db.SelectContext(ctx, &apps, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due applications: %w", err)
	}
	return apps, nil
}

// Resolve applies the deadline outcome to one application. It re-checks the
// state under lock, so a vote that already closed the application makes this
// a no-op; the returned bool reports whether a transition happened.
func (r *ApplicationRepository) Resolve(ctx context.Context, id string, now time.Time) (*models.MasterApplication, *models.TeamMaster, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	app, err := lockApplication(ctx, tx, id)
	if err != nil {
		return nil, nil, false, err
	}
	if app.Status != models.ApplicationStatusVoting || now.Before(app.VotingDeadline) {
		return app, nil, false, nil
	}

	if err := transitionApplication(ctx, tx, app, app.ResolvedStatus(), now); err != nil {
		return nil, nil, false, err
	}

	var master *models.TeamMaster
	if app.Status == models.ApplicationStatusApproved {
		master, err = appointMaster(ctx, tx, app.UserID, app.RoleName, app.ProjectID, now)
		if err != nil {
			return nil, nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("commit resolve: %w", err)
	}
	return app, master, true, nil
}

func lockApplication(ctx context.Context, tx *sqlx.Tx, id string) (*models.MasterApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	var app models.MasterApplication
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// transitionApplication moves a VOTING row to a terminal status. The status
// guard keeps the transition at-most-once even if the lock was lost.
func transitionApplication(ctx context.Context, tx *sqlx.Tx, app *models.MasterApplication, status models.ApplicationStatus, now time.Time) error {
	const query = `UPDATE master_applications SET status = $1, reviewed_at = $2 WHERE id = $3 AND status = 'VOTING'`
	result, err := tx.ExecContext(ctx, query, status, now, app.ID)
	if err != nil {
		return fmt.Errorf("transition application: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	app.Status = status
	app.ReviewedAt = &now
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
