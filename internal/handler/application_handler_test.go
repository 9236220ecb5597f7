package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/dto"
	"github.com/noah-isme/teamops-governance-api/internal/middleware"
	"github.com/noah-isme/teamops-governance-api/internal/models"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

type applicationServiceMock struct {
	submitted *dto.SubmitApplicationRequest
	actorID   string
	listQuery *dto.ApplicationQuery
	voteErr   error
}

func (m *applicationServiceMock) Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.MasterApplication, error) {
	m.submitted = &req
	m.actorID = actorID
	return &models.MasterApplication{ID: "app-1", UserID: actorID, RoleName: req.RoleName, Status: models.ApplicationStatusVoting}, nil
}

func (m *applicationServiceMock) Get(ctx context.Context, id string) (*models.MasterApplication, error) {
	if id != "app-1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.MasterApplication{ID: id}, nil
}

func (m *applicationServiceMock) List(ctx context.Context, query dto.ApplicationQuery) ([]models.MasterApplication, error) {
	m.listQuery = &query
	return []models.MasterApplication{}, nil
}

func (m *applicationServiceMock) CastVote(ctx context.Context, applicationID string, req dto.CastVoteRequest, actorID string) (*models.MasterApplication, error) {
	if m.voteErr != nil {
		return nil, m.voteErr
	}
	return &models.MasterApplication{ID: applicationID, VotesFor: 1}, nil
}

func (m *applicationServiceMock) ListVotes(ctx context.Context, applicationID string) ([]models.MasterVote, error) {
	return []models.MasterVote{}, nil
}

func newApplicationTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})
	return c, w
}

func TestApplicationHandlerSubmit(t *testing.T) {
	mock := &applicationServiceMock{}
	handler := NewApplicationHandler(mock)
	c, w := newApplicationTestContext(t, http.MethodPost, "/applications",
		[]byte(`{"role_name":"backend","motivation":"ready to lead"}`))

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.submitted)
	require.Equal(t, "backend", mock.submitted.RoleName)
	require.Equal(t, "user-1", mock.actorID)
}

func TestApplicationHandlerSubmitInvalidPayload(t *testing.T) {
	handler := NewApplicationHandler(&applicationServiceMock{})
	c, w := newApplicationTestContext(t, http.MethodPost, "/applications", []byte(`{not json`))

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplicationHandlerSubmitRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApplicationHandler(&applicationServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications", bytes.NewReader([]byte(`{}`)))
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplicationHandlerListParsesQuery(t *testing.T) {
	mock := &applicationServiceMock{}
	handler := NewApplicationHandler(mock)
	c, w := newApplicationTestContext(t, http.MethodGet,
		"/applications?status=voting,approved&role=backend&limit=20&offset=40", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.listQuery)
	require.Equal(t, []models.ApplicationStatus{models.ApplicationStatusVoting, models.ApplicationStatusApproved}, mock.listQuery.Status)
	require.Equal(t, "backend", mock.listQuery.RoleName)
	require.Equal(t, 20, mock.listQuery.Limit)
	require.Equal(t, 40, mock.listQuery.Offset)
}

func TestApplicationHandlerCastVoteDuplicate(t *testing.T) {
	mock := &applicationServiceMock{voteErr: appErrors.ErrDuplicateVote}
	handler := NewApplicationHandler(mock)
	c, w := newApplicationTestContext(t, http.MethodPost, "/applications/app-1/votes",
		[]byte(`{"in_favor":true}`))
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}

	handler.CastVote(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestApplicationHandlerGetNotFound(t *testing.T) {
	handler := NewApplicationHandler(&applicationServiceMock{})
	c, w := newApplicationTestContext(t, http.MethodGet, "/applications/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
