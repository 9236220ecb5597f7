package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
	appErrors "github.com/noah-isme/teamops-governance-api/pkg/errors"
)

// TelemetryClient fetches candidate performance numbers and voter rosters
// from the upstream telemetry service. It is the production MetricsProvider.
type TelemetryClient struct {
	baseURL string
	client  *http.Client
}

// NewTelemetryClient constructs the client from config.
func NewTelemetryClient(cfg config.TelemetryConfig) *TelemetryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelemetryClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CandidateMetrics returns the aggregated performance snapshot for a user
// acting in a role.
func (t *TelemetryClient) CandidateMetrics(ctx context.Context, userID, roleName string) (*models.CandidateMetrics, error) {
	endpoint := fmt.Sprintf("%s/metrics/candidates/%s?role=%s", t.baseURL, url.PathEscape(userID), url.QueryEscape(roleName))
	var metrics models.CandidateMetrics
	if err := t.getJSON(ctx, endpoint, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// VoterPool returns how many members are entitled to vote on contests for
// the given role, optionally scoped to a project.
func (t *TelemetryClient) VoterPool(ctx context.Context, roleName string, projectID *string) (int, error) {
	endpoint := fmt.Sprintf("%s/metrics/voters?role=%s", t.baseURL, url.QueryEscape(roleName))
	if projectID != nil && *projectID != "" {
		endpoint += "&projectId=" + url.QueryEscape(*projectID)
	}
	var payload struct {
		Total int `json:"total"`
	}
	if err := t.getJSON(ctx, endpoint, &payload); err != nil {
		return 0, err
	}
	return payload.Total, nil
}

func (t *TelemetryClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "build telemetry request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "telemetry service unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return appErrors.Clone(appErrors.ErrNotFound, "telemetry data not found")
	}
	if resp.StatusCode != http.StatusOK {
		return appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrInternal.Code, http.StatusBadGateway, "telemetry service error")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "decode telemetry response")
	}
	return nil
}
