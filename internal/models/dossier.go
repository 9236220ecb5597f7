package models

import "time"

// DossierKind identifies which entity a decision record documents.
type DossierKind string

const (
	DossierKindApplication DossierKind = "APPLICATION"
	DossierKindChallenge   DossierKind = "CHALLENGE"
)

// DossierFormat enumerates supported export formats.
type DossierFormat string

const (
	DossierFormatCSV DossierFormat = "csv"
	DossierFormatPDF DossierFormat = "pdf"
)

// DossierStatus captures background job lifecycle states.
type DossierStatus string

const (
	DossierStatusQueued     DossierStatus = "QUEUED"
	DossierStatusProcessing DossierStatus = "PROCESSING"
	DossierStatusFinished   DossierStatus = "FINISHED"
	DossierStatusFailed     DossierStatus = "FAILED"
)

// DossierJob is an asynchronous export of a resolved application or
// challenge decision record.
type DossierJob struct {
	ID           string        `db:"id" json:"id"`
	Kind         DossierKind   `db:"kind" json:"kind"`
	EntityID     string        `db:"entity_id" json:"entity_id"`
	Format       DossierFormat `db:"format" json:"format"`
	Status       DossierStatus `db:"status" json:"status"`
	Progress     int           `db:"progress" json:"progress"`
	ResultURL    *string       `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
}
