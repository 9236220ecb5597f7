package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChallengeStatus captures the challenge lifecycle states.
type ChallengeStatus string

const (
	ChallengeStatusPending    ChallengeStatus = "PENDING"
	ChallengeStatusAccepted   ChallengeStatus = "ACCEPTED"
	ChallengeStatusInProgress ChallengeStatus = "IN_PROGRESS"
	ChallengeStatusCompleted  ChallengeStatus = "COMPLETED"
	ChallengeStatusDeclined   ChallengeStatus = "DECLINED"
	ChallengeStatusExpired    ChallengeStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s ChallengeStatus) Terminal() bool {
	switch s {
	case ChallengeStatusCompleted, ChallengeStatusDeclined, ChallengeStatusExpired:
		return true
	default:
		return false
	}
}

// ChallengeType enumerates the supported competition formats.
type ChallengeType string

const (
	ChallengeTypePerformance ChallengeType = "PERFORMANCE"
	ChallengeTypeProject     ChallengeType = "PROJECT"
	ChallengeTypePeerVote    ChallengeType = "PEER_VOTE"
)

// ChallengeResult enumerates final outcomes.
type ChallengeResult string

const (
	ResultChallengerWins ChallengeResult = "CHALLENGER_WINS"
	ResultMasterWins     ChallengeResult = "MASTER_WINS"
	ResultDraw           ChallengeResult = "DRAW"
)

// ChallengeSide identifies whose metrics a snapshot belongs to.
type ChallengeSide string

const (
	SideChallenger ChallengeSide = "CHALLENGER"
	SideMaster     ChallengeSide = "MASTER"
)

// PeerVoteCriteria carries the asymmetric win thresholds, measured as
// side_votes / votes_cast.
type PeerVoteCriteria struct {
	MasterShare     float64 `json:"master_share"`
	ChallengerShare float64 `json:"challenger_share"`
}

// ProjectCriteria references the external adjudication of a project
// showdown. The adjudicated outcome is recorded here while the challenge
// is still open and finalized onto the row at the deadline.
type ProjectCriteria struct {
	AdjudicationRef   string           `json:"adjudication_ref"`
	AdjudicatedResult *ChallengeResult `json:"adjudicated_result,omitempty"`
	AdjudicationNotes string           `json:"adjudication_notes,omitempty"`
}

// ChallengeCriteria is a tagged union keyed by challenge type; performance
// challenges carry no parameters.
type ChallengeCriteria struct {
	PeerVote *PeerVoteCriteria `json:"peer_vote,omitempty"`
	Project  *ProjectCriteria  `json:"project,omitempty"`
}

// Value marshals the criteria to JSON for persistence.
func (c ChallengeCriteria) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge criteria: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the criteria struct.
func (c *ChallengeCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = ChallengeCriteria{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ChallengeCriteria", value)
	}
	if len(data) == 0 {
		*c = ChallengeCriteria{}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal challenge criteria: %w", err)
	}
	return nil
}

// MasterChallenge is a contest between a challenger and the incumbent
// master of a role. At most one open challenge may target a given
// (master, role) pair.
type MasterChallenge struct {
	ID               string            `db:"id" json:"id"`
	ChallengerID     string            `db:"challenger_id" json:"challenger_id"`
	MasterID         string            `db:"master_id" json:"master_id"`
	RoleName         string            `db:"role_name" json:"role_name"`
	ProjectID        *string           `db:"project_id" json:"project_id,omitempty"`
	Status           ChallengeStatus   `db:"status" json:"status"`
	Type             ChallengeType     `db:"challenge_type" json:"challenge_type"`
	Criteria         ChallengeCriteria `db:"criteria" json:"criteria"`
	ResponseDeadline time.Time         `db:"response_deadline" json:"response_deadline"`
	Deadline         *time.Time        `db:"deadline" json:"deadline,omitempty"`
	Result           *ChallengeResult  `db:"result" json:"result,omitempty"`
	ResultNotes      *string           `db:"result_notes" json:"result_notes,omitempty"`
	CompletedAt      *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// ChallengeMetrics is the latest performance snapshot for one side of a
// challenge; external telemetry upserts it over the measurement window.
type ChallengeMetrics struct {
	ID                 string        `db:"id" json:"id"`
	ChallengeID        string        `db:"challenge_id" json:"challenge_id"`
	Side               ChallengeSide `db:"side" json:"side"`
	TasksCompleted     int           `db:"tasks_completed" json:"tasks_completed"`
	TasksOnTimePercent float64       `db:"tasks_on_time_percent" json:"tasks_on_time_percent"`
	ObvsValidated      int           `db:"obvs_validated" json:"obvs_validated"`
	FeedbackScore      float64       `db:"feedback_score" json:"feedback_score"`
	Initiative         float64       `db:"initiative" json:"initiative"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// ChallengeVote is one ballot in a peer-vote challenge. Ballots are never
// exposed individually before the challenge completes.
type ChallengeVote struct {
	ID            string    `db:"id" json:"id"`
	ChallengeID   string    `db:"challenge_id" json:"challenge_id"`
	VoterID       string    `db:"voter_id" json:"voter_id"`
	ForChallenger bool      `db:"for_challenger" json:"for_challenger"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ChallengeTally holds the ballot counts of a peer vote.
type ChallengeTally struct {
	ChallengerVotes int `db:"challenger_votes" json:"challenger_votes"`
	MasterVotes     int `db:"master_votes" json:"master_votes"`
}

// VotesCast returns the number of ballots in the tally.
func (t ChallengeTally) VotesCast() int {
	return t.ChallengerVotes + t.MasterVotes
}

// VotingProgress is the public read model of a peer vote. The split is
// populated only once the challenge is completed.
type VotingProgress struct {
	ChallengeID     string `json:"challenge_id"`
	TotalVoters     int    `json:"total_voters"`
	VotesCast       int    `json:"votes_cast"`
	ChallengerVotes *int   `json:"challenger_votes,omitempty"`
	MasterVotes     *int   `json:"master_votes,omitempty"`
}

// BattleScore pairs the two live performance-battle scores.
type BattleScore struct {
	ChallengeID     string    `json:"challenge_id"`
	ChallengerScore float64   `json:"challenger_score"`
	MasterScore     float64   `json:"master_score"`
	ComputedAt      time.Time `json:"computed_at"`
}

// ChallengeFilter constrains listing queries.
type ChallengeFilter struct {
	Status       []ChallengeStatus
	Type         ChallengeType
	RoleName     string
	ChallengerID string
	MasterID     string
	Limit        int
	Offset       int
}
