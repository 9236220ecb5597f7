package models

// CandidateMetrics aggregates the upstream performance numbers consumed by
// the eligibility gate. The raw computation happens in external modules;
// this service only applies threshold rules.
type CandidateMetrics struct {
	UserID         string  `json:"user_id"`
	RoleName       string  `json:"role_name"`
	FitScore       float64 `json:"fit_score"`
	WeeksInRole    int     `json:"weeks_in_role"`
	RoleRanking    int     `json:"role_ranking"`
	OnTimeTaskRate float64 `json:"on_time_task_rate"`
	FeedbackCount  int     `json:"feedback_count"`
	ValidatedObvs  int     `json:"validated_obvs"`
}

// EligibilityResult reports the gate decision with one reason per failing
// criterion, including the measured value.
type EligibilityResult struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}
