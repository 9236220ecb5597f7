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
)

const masterColumns = `id, user_id, role_name, project_id, level, title, is_active,
       appointed_at, expires_at, total_mentees, successful_defenses`

// MasterRepository reads the team-master roster. Writes happen only through
// the transactional helpers below, invoked from approval and challenge
// completion so the roster never drifts from the decisions that shaped it.
type MasterRepository struct {
	db *sqlx.DB
}

// NewMasterRepository constructs the repository.
func NewMasterRepository(db *sqlx.DB) *MasterRepository {
	return &MasterRepository{db: db}
}

// GetActive returns the active master for a role slot, if any.
func (r *MasterRepository) GetActive(ctx context.Context, roleName string, projectID *string) (*models.TeamMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM team_masters
	WHERE role_name = $1 AND project_id IS NOT DISTINCT FROM $2 AND is_active = TRUE`, masterColumns)
	var master models.TeamMaster
	if err := r.db.GetContext(ctx, &master, query, roleName, projectID); err != nil {
		return nil, err
	}
	return &master, nil
}

// GetByID fetches a master row by identifier.
func (r *MasterRepository) GetByID(ctx context.Context, id string) (*models.TeamMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM team_masters WHERE id = $1`, masterColumns)
	var master models.TeamMaster
	if err := r.db.GetContext(ctx, &master, query, id); err != nil {
		return nil, err
	}
	return &master, nil
}

// List returns masters matching the filter (most recently appointed first).
func (r *MasterRepository) List(ctx context.Context, filter models.MasterFilter) ([]models.TeamMaster, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM team_masters`, masterColumns))

	conditions := make([]string, 0, 3)
	if filter.RoleName != "" {
		args = append(args, filter.RoleName)
		conditions = append(conditions, fmt.Sprintf("role_name = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY appointed_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var masters []models.TeamMaster
	if err := r.db.SelectContext(ctx, &masters, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list masters: %w", err)
	}
	return masters, nil
}

// appointMaster makes userID the active master of a role slot within the
// caller's transaction. Any other active holder is deactivated; a previous
// row for the same user is reactivated with a level bump, otherwise a fresh
// level-1 row is inserted.
func appointMaster(ctx context.Context, tx *sqlx.Tx, userID, roleName string, projectID *string, now time.Time) (*models.TeamMaster, error) {
	const deactivate = `UPDATE team_masters SET is_active = FALSE, expires_at = $1
	WHERE role_name = $2 AND project_id IS NOT DISTINCT FROM $3 AND is_active = TRUE AND user_id <> $4`
	if _, err := tx.ExecContext(ctx, deactivate, now, roleName, projectID, userID); err != nil {
		return nil, fmt.Errorf("deactivate master: %w", err)
	}

	reactivate := fmt.Sprintf(`UPDATE team_masters
	SET is_active = TRUE, level = level + 1, appointed_at = $1, expires_at = NULL
	WHERE user_id = $2 AND role_name = $3 AND project_id IS NOT DISTINCT FROM $4
	RETURNING %s`, masterColumns)
	var master models.TeamMaster
	err := tx.GetContext(ctx, &master, reactivate, now, userID, roleName, projectID)
	if err == nil {
		return &master, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reactivate master: %w", err)
	}

	master = models.TeamMaster{
		ID:          uuid.NewString(),
		UserID:      userID,
		RoleName:    roleName,
		ProjectID:   projectID,
		Level:       1,
		Title:       fmt.Sprintf("%s Master", roleName),
		IsActive:    true,
		AppointedAt: now,
	}
	const insert = `INSERT INTO team_masters
	(id, user_id, role_name, project_id, level, title, is_active, appointed_at, expires_at, total_mentees, successful_defenses)
	VALUES (:id, :user_id, :role_name, :project_id, :level, :title, :is_active, :appointed_at, :expires_at, :total_mentees, :successful_defenses)`
	if _, err := tx.NamedExecContext(ctx, insert, &master); err != nil {
		return nil, fmt.Errorf("insert master: %w", err)
	}
	return &master, nil
}

// recordDefense credits the active holder of a role slot with a successful
// challenge defense.
func recordDefense(ctx context.Context, tx *sqlx.Tx, userID, roleName string, projectID *string) error {
	const query = `UPDATE team_masters SET successful_defenses = successful_defenses + 1, level = level + 1
	WHERE user_id = $1 AND role_name = $2 AND project_id IS NOT DISTINCT FROM $3 AND is_active = TRUE`
	if _, err := tx.ExecContext(ctx, query, userID, roleName, projectID); err != nil {
		return fmt.Errorf("record defense: %w", err)
	}
	return nil
}
