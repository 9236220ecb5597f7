package models

import "time"

// TeamMaster is the recognized holder of a role, optionally scoped to a
// project. Exactly one active row exists per (role_name, project_id);
// superseded holders are deactivated, never deleted.
type TeamMaster struct {
	ID                 string     `db:"id" json:"id"`
	UserID             string     `db:"user_id" json:"user_id"`
	RoleName           string     `db:"role_name" json:"role_name"`
	ProjectID          *string    `db:"project_id" json:"project_id,omitempty"`
	Level              int        `db:"level" json:"level"`
	Title              string     `db:"title" json:"title"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	AppointedAt        time.Time  `db:"appointed_at" json:"appointed_at"`
	ExpiresAt          *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	TotalMentees       int        `db:"total_mentees" json:"total_mentees"`
	SuccessfulDefenses int        `db:"successful_defenses" json:"successful_defenses"`
}

// MasterFilter constrains listing queries.
type MasterFilter struct {
	RoleName   string
	UserID     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
