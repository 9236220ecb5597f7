package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/models"
)

func newMasterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var masterTestColumns = []string{
	"id", "user_id", "role_name", "project_id", "level", "title", "is_active",
	"appointed_at", "expires_at", "total_mentees", "successful_defenses",
}

func TestMasterRepositoryGetActive(t *testing.T) {
	db, mock, cleanup := newMasterRepoMock(t)
	defer cleanup()

	repo := NewMasterRepository(db)
	rows := sqlmock.NewRows(masterTestColumns).
		AddRow("master-1", "user-1", "backend", nil, 3, "backend Master", true, time.Now(), nil, 2, 4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, role_name")).
		WithArgs("backend", nil).
		WillReturnRows(rows)

	master, err := repo.GetActive(context.Background(), "backend", nil)
	require.NoError(t, err)
	require.Equal(t, "user-1", master.UserID)
	require.Equal(t, 3, master.Level)
	require.True(t, master.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterRepositoryGetActiveVacantSlot(t *testing.T) {
	db, mock, cleanup := newMasterRepoMock(t)
	defer cleanup()

	repo := NewMasterRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, role_name")).
		WithArgs("backend", nil).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActive(context.Background(), "backend", nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMasterRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMasterRepoMock(t)
	defer cleanup()

	repo := NewMasterRepository(db)
	rows := sqlmock.NewRows(masterTestColumns).
		AddRow("master-1", "user-1", "backend", nil, 1, "backend Master", true, time.Now(), nil, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, role_name")).
		WithArgs("backend").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.MasterFilter{
		RoleName:   "backend",
		ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "master-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
