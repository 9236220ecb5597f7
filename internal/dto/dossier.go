package dto

import "github.com/noah-isme/teamops-governance-api/internal/models"

// DossierRequest queues a decision-record export.
type DossierRequest struct {
	Kind     models.DossierKind   `json:"kind" validate:"required"`
	EntityID string               `json:"entity_id" validate:"required"`
	Format   models.DossierFormat `json:"format" validate:"required"`
}

// DossierJobResponse acknowledges a queued export.
type DossierJobResponse struct {
	ID       string               `json:"id"`
	Status   models.DossierStatus `json:"status"`
	Progress int                  `json:"progress"`
}

// DossierStatusResponse exposes job progress and the download URL once
// the export finished.
type DossierStatusResponse struct {
	ID        string               `json:"id"`
	Status    models.DossierStatus `json:"status"`
	Progress  int                  `json:"progress"`
	ResultURL *string              `json:"result_url,omitempty"`
	Error     *string              `json:"error,omitempty"`
}
