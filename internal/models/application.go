package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApplicationStatus captures the master-application lifecycle states.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusVoting   ApplicationStatus = "VOTING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
	ApplicationStatusExpired  ApplicationStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusExpired:
		return true
	default:
		return false
	}
}

// Achievement is one entry of an applicant's track record.
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AchievementList stores the ordered achievements as JSONB.
type AchievementList []Achievement

// Value marshals the list to JSON for persistence.
func (l AchievementList) Value() (driver.Value, error) {
	if l == nil {
		l = AchievementList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal achievements: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the list.
func (l *AchievementList) Scan(value interface{}) error {
	if value == nil {
		*l = AchievementList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AchievementList", value)
	}
	if len(data) == 0 {
		*l = AchievementList{}
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal achievements: %w", err)
	}
	return nil
}

// MasterApplication is an append-only record of a member's bid to become
// Master of a role. Tallies mutate only through vote casting; status moves
// only through the transition rules enforced by the ledger.
type MasterApplication struct {
	ID             string            `db:"id" json:"id"`
	UserID         string            `db:"user_id" json:"user_id"`
	RoleName       string            `db:"role_name" json:"role_name"`
	ProjectID      *string           `db:"project_id" json:"project_id,omitempty"`
	Status         ApplicationStatus `db:"status" json:"status"`
	Motivation     string            `db:"motivation" json:"motivation"`
	Achievements   AchievementList   `db:"achievements" json:"achievements"`
	VotesFor       int               `db:"votes_for" json:"votes_for"`
	VotesAgainst   int               `db:"votes_against" json:"votes_against"`
	VotesRequired  int               `db:"votes_required" json:"votes_required"`
	VotingDeadline time.Time         `db:"voting_deadline" json:"voting_deadline"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// ResolvedStatus returns the terminal status a voting-window expiry
// produces from the current tally.
func (a *MasterApplication) ResolvedStatus() ApplicationStatus {
	switch {
	case a.VotesFor >= a.VotesRequired:
		return ApplicationStatusApproved
	case a.VotesAgainst > a.VotesFor:
		return ApplicationStatusRejected
	default:
		return ApplicationStatusExpired
	}
}

// MasterVote is one voter's immutable decision on one application.
type MasterVote struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	VoterID       string    `db:"voter_id" json:"voter_id"`
	InFavor       bool      `db:"in_favor" json:"in_favor"`
	Comment       *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	Status   []ApplicationStatus
	RoleName string
	UserID   string
	Limit    int
	Offset   int
}
