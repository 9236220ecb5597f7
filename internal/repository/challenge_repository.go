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

	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

const challengeColumns = `id, challenger_id, master_id, role_name, project_id, status, challenge_type,
       criteria, response_deadline, deadline, result, result_notes, completed_at, created_at`

const metricsColumns = `id, challenge_id, side, tasks_completed, tasks_on_time_percent,
       obvs_validated, feedback_score, initiative, updated_at`

// DecideChallengeFunc picks the outcome of a challenge from the state read
// under the completion lock.
type DecideChallengeFunc func(ch *models.MasterChallenge, metrics []models.ChallengeMetrics, tally models.ChallengeTally) (models.ChallengeResult, string)

// ChallengeRepository persists master challenges, their metric snapshots and
// peer-vote ballots. Lifecycle transitions run inside row-locked
// transactions with status-guarded updates.
type ChallengeRepository struct {
	db *sqlx.DB
}

// NewChallengeRepository constructs the repository.
func NewChallengeRepository(db *sqlx.DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Create inserts a challenge after verifying no other open challenge
// targets the same master and role.
func (r *ChallengeRepository) Create(ctx context.Context, ch *models.MasterChallenge) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.Status == "" {
		ch.Status = models.ChallengeStatusPending
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin challenge tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const conflictQuery = `SELECT id FROM master_challenges
	WHERE master_id = $1 AND role_name = $2 AND status IN ('PENDING', 'ACCEPTED', 'IN_PROGRESS') LIMIT 1`
	var existing string
	err = tx.GetContext(ctx, &existing, conflictQuery, ch.MasterID, ch.RoleName)
	if err == nil {
		return appErrors.ErrConflictingChallenge
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check open challenges: %w", err)
	}

	const insert = `INSERT INTO master_challenges
	(id, challenger_id, master_id, role_name, project_id, status, challenge_type, criteria, response_deadline, deadline, result, result_notes, completed_at, created_at)
	VALUES (:id, :challenger_id, :master_id, :role_name, :project_id, :status, :challenge_type, :criteria, :response_deadline, :deadline, :result, :result_notes, :completed_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, ch); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrConflictingChallenge
		}
		return fmt.Errorf("create challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit challenge: %w", err)
	}
	return nil
}

// GetByID fetches a challenge by identifier.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*models.MasterChallenge, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_challenges WHERE id = $1`, challengeColumns)
	var ch models.MasterChallenge
	if err := r.db.GetContext(ctx, &ch, query, id); err != nil {
		return nil, err
	}
	return &ch, nil
}

// List returns challenges matching the filter (latest first).
func (r *ChallengeRepository) List(ctx context.Context, filter models.ChallengeFilter) ([]models.MasterChallenge, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM master_challenges`, challengeColumns))

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("challenge_type = $%d", len(args)))
	}
	if filter.RoleName != "" {
		args = append(args, filter.RoleName)
		conditions = append(conditions, fmt.Sprintf("role_name = $%d", len(args)))
	}
	if filter.ChallengerID != "" {
		args = append(args, filter.ChallengerID)
		conditions = append(conditions, fmt.Sprintf("challenger_id = $%d", len(args)))
	}
	if filter.MasterID != "" {
		args = append(args, filter.MasterID)
		conditions = append(conditions, fmt.Sprintf("master_id = $%d", len(args)))
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

	var challenges []models.MasterChallenge
	if err := r.db.SelectContext(ctx, &challenges, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

// Respond applies the master's accept or decline decision. Acceptance fixes
// the measurement deadline; both paths are guarded on the PENDING status.
func (r *ChallengeRepository) Respond(ctx context.Context, id string, accept bool, deadline time.Time, note *string, now time.Time) (*models.MasterChallenge, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin respond tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ch, err := lockChallenge(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if ch.Status != models.ChallengeStatusPending {
		return ch, appErrors.ErrInvalidState
	}
	if !now.Before(ch.ResponseDeadline) {
		return ch, appErrors.ErrWindowClosed
	}

	if accept {
		const query = `UPDATE master_challenges SET status = 'IN_PROGRESS', deadline = $1
		WHERE id = $2 AND status = 'PENDING'`
		if err := execGuarded(ctx, tx, query, deadline, id); err != nil {
			return nil, fmt.Errorf("accept challenge: %w", err)
		}
		ch.Status = models.ChallengeStatusInProgress
		ch.Deadline = &deadline
	} else {
		const query = `UPDATE master_challenges SET status = 'DECLINED', result_notes = $1
		WHERE id = $2 AND status = 'PENDING'`
		if err := execGuarded(ctx, tx, query, note, id); err != nil {
			return nil, fmt.Errorf("decline challenge: %w", err)
		}
		ch.Status = models.ChallengeStatusDeclined
		ch.ResultNotes = note
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit respond: %w", err)
	}
	return ch, nil
}

// UpsertMetrics stores the latest performance snapshot for one side.
func (r *ChallengeRepository) UpsertMetrics(ctx context.Context, m *models.ChallengeMetrics) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO challenge_metrics
	(id, challenge_id, side, tasks_completed, tasks_on_time_percent, obvs_validated, feedback_score, initiative, updated_at)
	VALUES (:id, :challenge_id, :side, :tasks_completed, :tasks_on_time_percent, :obvs_validated, :feedback_score, :initiative, :updated_at)
	ON CONFLICT (challenge_id, side)
	DO UPDATE SET tasks_completed = EXCLUDED.tasks_completed, tasks_on_time_percent = EXCLUDED.tasks_on_time_percent,
	obvs_validated = EXCLUDED.obvs_validated, feedback_score = EXCLUDED.feedback_score,
	initiative = EXCLUDED.initiative, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("upsert challenge metrics: %w", err)
	}
	return nil
}

// GetMetrics returns the recorded snapshots for a challenge.
func (r *ChallengeRepository) GetMetrics(ctx context.Context, challengeID string) ([]models.ChallengeMetrics, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenge_metrics WHERE challenge_id = $1 ORDER BY side ASC`, metricsColumns)
	var metrics []models.ChallengeMetrics
	if err := r.db.SelectContext(ctx, &metrics, query, challengeID); err != nil {
		return nil, fmt.Errorf("get challenge metrics: %w", err)
	}
	return metrics, nil
}

// CastVote records one peer-vote ballot under the challenge row lock.
func (r *ChallengeRepository) CastVote(ctx context.Context, vote *models.ChallengeVote, now time.Time) (*models.MasterChallenge, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ballot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ch, err := lockChallenge(ctx, tx, vote.ChallengeID)
	if err != nil {
		return nil, err
	}
	if ch.Type != models.ChallengeTypePeerVote {
		return ch, appErrors.ErrInvalidState
	}
	if ch.Status != models.ChallengeStatusInProgress {
		return ch, appErrors.ErrInvalidState
	}
	if ch.Deadline != nil && !now.Before(*ch.Deadline) {
		return ch, appErrors.ErrWindowClosed
	}

	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	vote.CreatedAt = now
	const insert = `INSERT INTO challenge_votes (id, challenge_id, voter_id, for_challenger, created_at)
	VALUES (:id, :challenge_id, :voter_id, :for_challenger, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, vote); err != nil {
		if isUniqueViolation(err) {
			return ch, appErrors.ErrDuplicateVote
		}
		return nil, fmt.Errorf("insert challenge vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ballot: %w", err)
	}
	return ch, nil
}

// Tally counts the ballots cast so far.
func (r *ChallengeRepository) Tally(ctx context.Context, challengeID string) (models.ChallengeTally, error) {
	const query = `SELECT COUNT(*) FILTER (WHERE for_challenger) AS challenger_votes,
	COUNT(*) FILTER (WHERE NOT for_challenger) AS master_votes
	FROM challenge_votes WHERE challenge_id = $1`
	var tally models.ChallengeTally
	if err := r.db.GetContext(ctx, &tally, query, challengeID); err != nil {
		return models.ChallengeTally{}, fmt.Errorf("tally challenge votes: %w", err)
	}
	return tally, nil
}

// ListVotes returns all ballots for a completed challenge (oldest first).
func (r *ChallengeRepository) ListVotes(ctx context.Context, challengeID string) ([]models.ChallengeVote, error) {
	const query = `SELECT id, challenge_id, voter_id, for_challenger, created_at
	FROM challenge_votes WHERE challenge_id = $1 ORDER BY created_at ASC`
	var votes []models.ChallengeVote
	if err := r.db.SelectContext(ctx, &votes, query, challengeID); err != nil {
		return nil, fmt.Errorf("list challenge votes: %w", err)
	}
	return votes, nil
}

// Adjudicate records the externally decided outcome of a project showdown
// inside the criteria payload. The result itself is finalized at the
// deadline sweep.
func (r *ChallengeRepository) Adjudicate(ctx context.Context, id string, result models.ChallengeResult, notes string) (*models.MasterChallenge, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin adjudicate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ch, err := lockChallenge(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if ch.Type != models.ChallengeTypeProject {
		return ch, appErrors.ErrInvalidState
	}
	if ch.Status != models.ChallengeStatusInProgress {
		return ch, appErrors.ErrInvalidState
	}

	if ch.Criteria.Project == nil {
		ch.Criteria.Project = &models.ProjectCriteria{}
	}
	ch.Criteria.Project.AdjudicatedResult = &result
	ch.Criteria.Project.AdjudicationNotes = notes

	const query = `UPDATE master_challenges SET criteria = $1 WHERE id = $2 AND status = 'IN_PROGRESS'`
	if err := execGuarded(ctx, tx, query, ch.Criteria, id); err != nil {
		return nil, fmt.Errorf("store adjudication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjudicate: %w", err)
	}
	return ch, nil
}

// ListPendingOverdue returns challenges whose response window has elapsed.
func (r *ChallengeRepository) ListPendingOverdue(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM master_challenges
	WHERE status = 'PENDING' AND response_deadline <= $1 ORDER BY response_deadline ASC LIMIT $2`, challengeColumns)
	var challenges []models.MasterChallenge
	if err := r.db.SelectContext(ctx, &challenges, query, now, limit); err != nil {
		return nil, fmt.Errorf("list overdue challenges: %w", err)
	}
	return challenges, nil
}

// DeclineOverdue declines a challenge whose master never responded. The
// returned bool reports whether the transition happened.
func (r *ChallengeRepository) DeclineOverdue(ctx context.Context, id string, now time.Time) (*models.MasterChallenge, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin decline tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ch, err := lockChallenge(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if ch.Status != models.ChallengeStatusPending || now.Before(ch.ResponseDeadline) {
		return ch, false, nil
	}

	note := "response window elapsed"
	const query = `UPDATE master_challenges SET status = 'DECLINED', result_notes = $1
	WHERE id = $2 AND status = 'PENDING'`
	if err := execGuarded(ctx, tx, query, note, id); err != nil {
		return nil, false, fmt.Errorf("decline overdue challenge: %w", err)
	}
	ch.Status = models.ChallengeStatusDeclined
	ch.ResultNotes = &note

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit decline: %w", err)
	}
	return ch, true, nil
}

// ListDueForCompletion returns accepted challenges whose measurement window
// has elapsed.
func (r *ChallengeRepository) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]models.MasterChallenge, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM master_challenges
	WHERE status = 'IN_PROGRESS' AND deadline IS NOT NULL AND deadline <= $1 ORDER BY deadline ASC LIMIT $2`, challengeColumns)
	var challenges []models.MasterChallenge
	if err := r.db.SelectContext(ctx, &challenges, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due challenges: %w", err)
	}
	return challenges, nil
}

// Complete finalizes a challenge at its deadline. The metric snapshots and
// ballot tally are read under the row lock, handed to decide, and the
// outcome is applied together with the roster change it implies. The
// returned bool reports whether the transition happened.
func (r *ChallengeRepository) Complete(ctx context.Context, id string, now time.Time, decide DecideChallengeFunc) (*models.MasterChallenge, *models.TeamMaster, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ch, err := lockChallenge(ctx, tx, id)
	if err != nil {
		return nil, nil, false, err
	}
	if ch.Status != models.ChallengeStatusInProgress || ch.Deadline == nil || now.Before(*ch.Deadline) {
		return ch, nil, false, nil
	}

	metricsQuery := fmt.Sprintf(`SELECT %s FROM challenge_metrics WHERE challenge_id = $1 ORDER BY side ASC`, metricsColumns)
	var metrics []models.ChallengeMetrics
	if err := tx.SelectContext(ctx, &metrics, metricsQuery, id); err != nil {
		return nil, nil, false, fmt.Errorf("read metrics for completion: %w", err)
	}

	const tallyQuery = `SELECT COUNT(*) FILTER (WHERE for_challenger) AS challenger_votes,
	COUNT(*) FILTER (WHERE NOT for_challenger) AS master_votes
	FROM challenge_votes WHERE challenge_id = $1`
	var tally models.ChallengeTally
	if err := tx.GetContext(ctx, &tally, tallyQuery, id); err != nil {
		return nil, nil, false, fmt.Errorf("read tally for completion: %w", err)
	}

	result, notes := decide(ch, metrics, tally)

	const query = `UPDATE master_challenges SET status = 'COMPLETED', result = $1, result_notes = $2, completed_at = $3
	WHERE id = $4 AND status = 'IN_PROGRESS'`
	if err := execGuarded(ctx, tx, query, result, notes, now, id); err != nil {
		return nil, nil, false, fmt.Errorf("complete challenge: %w", err)
	}
	ch.Status = models.ChallengeStatusCompleted
	ch.Result = &result
	ch.ResultNotes = &notes
	ch.CompletedAt = &now

	var promoted *models.TeamMaster
	switch result {
	case models.ResultChallengerWins:
		promoted, err = appointMaster(ctx, tx, ch.ChallengerID, ch.RoleName, ch.ProjectID, now)
		if err != nil {
			return nil, nil, false, err
		}
	case models.ResultMasterWins:
		if err := recordDefense(ctx, tx, ch.MasterID, ch.RoleName, ch.ProjectID); err != nil {
			return nil, nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("commit complete: %w", err)
	}
	return ch, promoted, true, nil
}

func lockChallenge(ctx context.Context, tx *sqlx.Tx, id string) (*models.MasterChallenge, error) {
	query := fmt.Sprintf(`SELECT %s FROM master_challenges WHERE id = $1 FOR UPDATE`, challengeColumns)
	var ch models.MasterChallenge
	if err := tx.GetContext(ctx, &ch, query, id); err != nil {
		return nil, err
	}
	return &ch, nil
}

// execGuarded runs a status-guarded update and reports a lost guard as
// sql.ErrNoRows.
func execGuarded(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
