package service

import (
	"fmt"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
)

// ScoringEngine turns metric snapshots and ballot tallies into challenge
// outcomes. All methods are pure; live score reads and deadline
// finalization share the same arithmetic.
type ScoringEngine struct {
	masterShare     float64
	challengerShare float64
}

// NewScoringEngine constructs the engine with the configured peer-vote
// win thresholds.
func NewScoringEngine(cfg config.GovernanceConfig) *ScoringEngine {
	masterShare := cfg.MasterVoteShare
	if masterShare <= 0 || masterShare > 1 {
		masterShare = 0.51
	}
	challengerShare := cfg.ChallengerVoteShare
	if challengerShare <= 0 || challengerShare > 1 {
		challengerShare = 0.60
	}
	return &ScoringEngine{masterShare: masterShare, challengerShare: challengerShare}
}

// BattleScore computes the weighted performance score for one side.
// Each term saturates at its weight, so the result stays within [0, 100].
func (e *ScoringEngine) BattleScore(m models.ChallengeMetrics) float64 {
	tasks := float64(m.TasksCompleted)
	if tasks > 10 {
		tasks = 10
	}
	obvs := float64(m.ObvsValidated)
	if obvs > 10 {
		obvs = 10
	}
	onTime := m.TasksOnTimePercent
	if onTime < 0 {
		onTime = 0
	} else if onTime > 100 {
		onTime = 100
	}
	feedback := m.FeedbackScore
	if feedback < 0 {
		feedback = 0
	} else if feedback > 5 {
		feedback = 5
	}
	initiative := m.Initiative
	if initiative < 0 {
		initiative = 0
	} else if initiative > 5 {
		initiative = 5
	}

	return 30*tasks/10 + 0.20*onTime + 20*obvs/10 + 20*feedback/5 + 10*initiative/5
}

// LiveBattleScore pairs both sides' current scores; a side without a
// snapshot scores zero.
func (e *ScoringEngine) LiveBattleScore(challengeID string, metrics []models.ChallengeMetrics) models.BattleScore {
	score := models.BattleScore{ChallengeID: challengeID}
	for _, m := range metrics {
		switch m.Side {
		case models.SideChallenger:
			score.ChallengerScore = e.BattleScore(m)
		case models.SideMaster:
			score.MasterScore = e.BattleScore(m)
		}
	}
	return score
}

// PeerVoteOutcome resolves a peer vote from its tally. The challenger's
// higher bar is checked first; with no ballots or neither bar cleared the
// result is a draw and the incumbent stays.
func (e *ScoringEngine) PeerVoteOutcome(tally models.ChallengeTally, criteria *models.PeerVoteCriteria) (models.ChallengeResult, string) {
	masterShare := e.masterShare
	challengerShare := e.challengerShare
	if criteria != nil {
		if criteria.MasterShare > 0 && criteria.MasterShare <= 1 {
			masterShare = criteria.MasterShare
		}
		if criteria.ChallengerShare > 0 && criteria.ChallengerShare <= 1 {
			challengerShare = criteria.ChallengerShare
		}
	}

	cast := tally.VotesCast()
	if cast == 0 {
		return models.ResultDraw, "no ballots cast"
	}

	challengerRatio := float64(tally.ChallengerVotes) / float64(cast)
	masterRatio := float64(tally.MasterVotes) / float64(cast)
	notes := fmt.Sprintf("challenger %d/%d (%.0f%%), master %d/%d (%.0f%%)",
		tally.ChallengerVotes, cast, challengerRatio*100,
		tally.MasterVotes, cast, masterRatio*100)

	if challengerRatio >= challengerShare {
		return models.ResultChallengerWins, notes
	}
	if masterRatio >= masterShare {
		return models.ResultMasterWins, notes
	}
	return models.ResultDraw, notes
}

// Decide resolves a due challenge from the state read under its completion
// lock. It satisfies repository.DecideChallengeFunc.
func (e *ScoringEngine) Decide(ch *models.MasterChallenge, metrics []models.ChallengeMetrics, tally models.ChallengeTally) (models.ChallengeResult, string) {
	switch ch.Type {
	case models.ChallengeTypePerformance:
		score := e.LiveBattleScore(ch.ID, metrics)
		notes := fmt.Sprintf("challenger %.2f, master %.2f", score.ChallengerScore, score.MasterScore)
		switch {
		case score.ChallengerScore > score.MasterScore:
			return models.ResultChallengerWins, notes
		case score.MasterScore > score.ChallengerScore:
			return models.ResultMasterWins, notes
		default:
			return models.ResultDraw, notes
		}
	case models.ChallengeTypePeerVote:
		return e.PeerVoteOutcome(tally, ch.Criteria.PeerVote)
	case models.ChallengeTypeProject:
		if ch.Criteria.Project != nil && ch.Criteria.Project.AdjudicatedResult != nil {
			notes := ch.Criteria.Project.AdjudicationNotes
			if notes == "" {
				notes = "adjudicated externally"
			}
			return *ch.Criteria.Project.AdjudicatedResult, notes
		}
		return models.ResultDraw, "no adjudicated result recorded"
	default:
		return models.ResultDraw, fmt.Sprintf("unknown challenge type %s", ch.Type)
	}
}
