package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/teamops-governance-api/pkg/config"
	"github.com/noah-isme/teamops-governance-api/pkg/jobs"
)

// NotificationEvent is the webhook payload for a governance event.
type NotificationEvent struct {
	Event      string      `json:"event"`
	Resource   string      `json:"resource"`
	ResourceID string      `json:"resource_id"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NotificationService fans governance events out to a webhook through the
// background queue. Delivery is fire-and-forget; failures are retried by
// the queue and then logged, never surfaced to the caller.
type NotificationService struct {
	cfg    config.NotificationsConfig
	client *http.Client
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its delivery queue.
func NewNotificationService(cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &NotificationService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start boots the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled() {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	if !s.enabled() {
		return
	}
	s.queue.Stop()
}

// Notify enqueues a webhook delivery for the event.
func (s *NotificationService) Notify(ctx context.Context, event, resource, resourceID string, payload interface{}) {
	if !s.enabled() {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: event,
		Payload: NotificationEvent{
			Event:      event,
			Resource:   resource,
			ResourceID: resourceID,
			Payload:    payload,
			OccurredAt: time.Now().UTC(),
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("event", event), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func (s *NotificationService) enabled() bool {
	return s != nil && s.cfg.Enabled && s.cfg.WebhookURL != ""
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(NotificationEvent)
	if !ok {
		s.logger.Warn("dropping notification with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("dropping unmarshalable notification", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
