package dto

import "github.com/noah-isme/teamops-governance-api/internal/models"

// SubmitApplicationRequest payload for a master-promotion bid.
type SubmitApplicationRequest struct {
	RoleName      string                 `json:"role_name" validate:"required"`
	ProjectID     *string                `json:"project_id,omitempty"`
	Motivation    string                 `json:"motivation" validate:"required"`
	Achievements  models.AchievementList `json:"achievements"`
	VotesRequired int                    `json:"votes_required" validate:"omitempty,min=1"`
}

// CastVoteRequest payload for an application or challenge ballot.
type CastVoteRequest struct {
	InFavor bool    `json:"in_favor"`
	Comment *string `json:"comment,omitempty"`
}

// CastChallengeVoteRequest payload for a peer-vote ballot.
type CastChallengeVoteRequest struct {
	ForChallenger bool `json:"for_challenger"`
}

// CreateChallengeRequest payload for initiating a contest against the
// incumbent master of a role.
type CreateChallengeRequest struct {
	RoleName        string               `json:"role_name" validate:"required"`
	ProjectID       *string              `json:"project_id,omitempty"`
	Type            models.ChallengeType `json:"challenge_type" validate:"required"`
	MasterShare     float64              `json:"master_share" validate:"omitempty,gt=0,lte=1"`
	ChallengerShare float64              `json:"challenger_share" validate:"omitempty,gt=0,lte=1"`
	AdjudicationRef string               `json:"adjudication_ref,omitempty"`
}

// RespondChallengeRequest captures the master's accept/decline decision.
type RespondChallengeRequest struct {
	Accept bool    `json:"accept"`
	Note   *string `json:"note,omitempty"`
}

// SubmitMetricsRequest upserts a side's performance snapshot, supplied by
// external telemetry sources over the challenge window.
type SubmitMetricsRequest struct {
	Side               models.ChallengeSide `json:"side" validate:"required"`
	TasksCompleted     int                  `json:"tasks_completed" validate:"min=0"`
	TasksOnTimePercent float64              `json:"tasks_on_time_percent" validate:"min=0,max=100"`
	ObvsValidated      int                  `json:"obvs_validated" validate:"min=0"`
	FeedbackScore      float64              `json:"feedback_score" validate:"min=0,max=5"`
	Initiative         float64              `json:"initiative" validate:"min=0,max=5"`
}

// AdjudicateRequest records the externally decided project-showdown outcome.
type AdjudicateRequest struct {
	Result models.ChallengeResult `json:"result" validate:"required"`
	Notes  string                 `json:"notes"`
}

// ApplicationQuery mirrors supported application listing filters.
type ApplicationQuery struct {
	Status   []models.ApplicationStatus
	RoleName string
	UserID   string
	Limit    int
	Offset   int
}

// ChallengeQuery mirrors supported challenge listing filters.
type ChallengeQuery struct {
	Status       []models.ChallengeStatus
	Type         models.ChallengeType
	RoleName     string
	ChallengerID string
	MasterID     string
	Limit        int
	Offset       int
}

// SweepSummary reports what a sweeper pass resolved.
type SweepSummary struct {
	ApplicationsResolved int `json:"applications_resolved"`
	ChallengesDeclined   int `json:"challenges_declined"`
	ChallengesCompleted  int `json:"challenges_completed"`
}
