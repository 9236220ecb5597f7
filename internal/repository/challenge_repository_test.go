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
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

func newChallengeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var challengeTestColumns = []string{
	"id", "challenger_id", "master_id", "role_name", "project_id", "status", "challenge_type",
	"criteria", "response_deadline", "deadline", "result", "result_notes", "completed_at", "created_at",
}

func challengeRow(id string, status models.ChallengeStatus, challengeType models.ChallengeType, responseDeadline time.Time, deadline *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(challengeTestColumns).
		AddRow(id, "contender", "incumbent", "backend", nil, status, challengeType,
			[]byte(`{}`), responseDeadline, deadline, nil, nil, nil, time.Now())
}

func TestChallengeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM master_challenges")).
		WithArgs("incumbent", "backend").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO master_challenges")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ch := &models.MasterChallenge{
		ChallengerID:     "contender",
		MasterID:         "incumbent",
		RoleName:         "backend",
		Type:             models.ChallengeTypePerformance,
		ResponseDeadline: time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), ch))
	require.NotEmpty(t, ch.ID)
	require.Equal(t, models.ChallengeStatusPending, ch.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCreateRejectsOpenConflict(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM master_challenges")).
		WithArgs("incumbent", "backend").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ch-0"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.MasterChallenge{
		ChallengerID: "contender",
		MasterID:     "incumbent",
		RoleName:     "backend",
		Type:         models.ChallengeTypePerformance,
	})
	require.ErrorIs(t, err, appErrors.ErrConflictingChallenge)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryRespondAccept(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(336 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusPending, models.ChallengeTypePerformance, now.Add(time.Hour), nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE master_challenges SET status = 'IN_PROGRESS'")).
		WithArgs(deadline, "ch-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ch, err := repo.Respond(context.Background(), "ch-1", true, deadline, nil, now)
	require.NoError(t, err)
	require.Equal(t, models.ChallengeStatusInProgress, ch.Status)
	require.NotNil(t, ch.Deadline)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryRespondAfterWindow(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusPending, models.ChallengeTypePerformance, now.Add(-time.Minute), nil))
	mock.ExpectRollback()

	_, err := repo.Respond(context.Background(), "ch-1", true, now.Add(336*time.Hour), nil, now)
	require.ErrorIs(t, err, appErrors.ErrWindowClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCastVoteRequiresPeerVote(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusInProgress, models.ChallengeTypePerformance, now.Add(-time.Hour), &deadline))
	mock.ExpectRollback()

	_, err := repo.CastVote(context.Background(), &models.ChallengeVote{
		ChallengeID: "ch-1",
		VoterID:     "voter-1",
	}, now)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCastVoteOnCompletedChallenge(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(time.Hour)

	// A completed challenge is an invalid target even before its deadline.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusCompleted, models.ChallengeTypePeerVote, now.Add(-time.Hour), &deadline))
	mock.ExpectRollback()

	_, err := repo.CastVote(context.Background(), &models.ChallengeVote{
		ChallengeID:   "ch-1",
		VoterID:       "voter-1",
		ForChallenger: true,
	}, now)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCastVote(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusInProgress, models.ChallengeTypePeerVote, now.Add(-time.Hour), &deadline))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO challenge_votes")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ch, err := repo.CastVote(context.Background(), &models.ChallengeVote{
		ChallengeID:   "ch-1",
		VoterID:       "voter-1",
		ForChallenger: true,
	}, now)
	require.NoError(t, err)
	require.Equal(t, "ch-1", ch.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryDeclineOverdue(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusPending, models.ChallengeTypePerformance, now.Add(-time.Hour), nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE master_challenges SET status = 'DECLINED'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ch, transitioned, err := repo.DeclineOverdue(context.Background(), "ch-1", now)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, models.ChallengeStatusDeclined, ch.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryDeclineOverdueNoOpWhenAnswered(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusInProgress, models.ChallengeTypePerformance, now.Add(-time.Hour), &deadline))
	mock.ExpectRollback()

	_, transitioned, err := repo.DeclineOverdue(context.Background(), "ch-1", now)
	require.NoError(t, err)
	require.False(t, transitioned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepositoryCompletePromotesChallenger(t *testing.T) {
	db, mock, cleanup := newChallengeRepoMock(t)
	defer cleanup()

	repo := NewChallengeRepository(db)
	now := time.Now()
	deadline := now.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenger_id, master_id")).
		WithArgs("ch-1").
		WillReturnRows(challengeRow("ch-1", models.ChallengeStatusInProgress, models.ChallengeTypePeerVote, now.Add(-time.Hour), &deadline))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, challenge_id, side")).
		WithArgs("ch-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "challenge_id", "side", "tasks_completed", "tasks_on_time_percent",
			"obvs_validated", "feedback_score", "initiative", "updated_at",
		}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FILTER (WHERE for_challenger)")).
		WithArgs("ch-1").
		WillReturnRows(sqlmock.NewRows([]string{"challenger_votes", "master_votes"}).AddRow(7, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE master_challenges SET status = 'COMPLETED'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE team_masters SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	masterRows := sqlmock.NewRows([]string{
		"id", "user_id", "role_name", "project_id", "level", "title", "is_active",
		"appointed_at", "expires_at", "total_mentees", "successful_defenses",
	}).AddRow("master-2", "contender", "backend", nil, 2, "backend Master", true, now, nil, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE team_masters")).
		WillReturnRows(masterRows)
	mock.ExpectCommit()

	decide := func(ch *models.MasterChallenge, metrics []models.ChallengeMetrics, tally models.ChallengeTally) (models.ChallengeResult, string) {
		require.Equal(t, 7, tally.ChallengerVotes)
		return models.ResultChallengerWins, "challenger 7/10 (70%), master 3/10 (30%)"
	}
	ch, promoted, transitioned, err := repo.Complete(context.Background(), "ch-1", now, decide)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, models.ChallengeStatusCompleted, ch.Status)
	require.NotNil(t, ch.Result)
	require.Equal(t, models.ResultChallengerWins, *ch.Result)
	require.NotNil(t, promoted)
	require.Equal(t, "contender", promoted.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
