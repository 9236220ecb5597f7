package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamops-governance-api/internal/models"
	"github.com/noah-isme/teamops-governance-api/pkg/config"
)

func newTestScoringEngine() *ScoringEngine {
	return NewScoringEngine(config.GovernanceConfig{
		MasterVoteShare:     0.51,
		ChallengerVoteShare: 0.60,
	})
}

func TestBattleScoreWeights(t *testing.T) {
	engine := newTestScoringEngine()

	perfect := models.ChallengeMetrics{
		TasksCompleted:     10,
		TasksOnTimePercent: 100,
		ObvsValidated:      10,
		FeedbackScore:      5,
		Initiative:         5,
	}
	require.InDelta(t, 100.0, engine.BattleScore(perfect), 0.0001)

	require.InDelta(t, 0.0, engine.BattleScore(models.ChallengeMetrics{}), 0.0001)

	half := models.ChallengeMetrics{
		TasksCompleted:     5,
		TasksOnTimePercent: 50,
		ObvsValidated:      5,
		FeedbackScore:      2.5,
		Initiative:         2.5,
	}
	require.InDelta(t, 50.0, engine.BattleScore(half), 0.0001)
}

func TestBattleScoreClampsInputs(t *testing.T) {
	engine := newTestScoringEngine()

	overdriven := models.ChallengeMetrics{
		TasksCompleted:     25,
		TasksOnTimePercent: 180,
		ObvsValidated:      40,
		FeedbackScore:      9,
		Initiative:         12,
	}
	require.InDelta(t, 100.0, engine.BattleScore(overdriven), 0.0001)

	negative := models.ChallengeMetrics{
		TasksOnTimePercent: -10,
		FeedbackScore:      -1,
		Initiative:         -3,
	}
	require.InDelta(t, 0.0, engine.BattleScore(negative), 0.0001)
}

func TestLiveBattleScoreMissingSideScoresZero(t *testing.T) {
	engine := newTestScoringEngine()

	score := engine.LiveBattleScore("ch-1", []models.ChallengeMetrics{
		{Side: models.SideChallenger, TasksCompleted: 10, TasksOnTimePercent: 100, ObvsValidated: 10, FeedbackScore: 5, Initiative: 5},
	})
	require.Equal(t, "ch-1", score.ChallengeID)
	require.InDelta(t, 100.0, score.ChallengerScore, 0.0001)
	require.Zero(t, score.MasterScore)
}

func TestPeerVoteOutcome(t *testing.T) {
	engine := newTestScoringEngine()

	result, notes := engine.PeerVoteOutcome(models.ChallengeTally{}, nil)
	require.Equal(t, models.ResultDraw, result)
	require.Equal(t, "no ballots cast", notes)

	// 6 of 10 hits the challenger bar exactly.
	result, notes = engine.PeerVoteOutcome(models.ChallengeTally{ChallengerVotes: 6, MasterVotes: 4}, nil)
	require.Equal(t, models.ResultChallengerWins, result)
	require.Contains(t, notes, "challenger 6/10 (60%)")

	// 5 of 10 clears neither bar: the incumbent needs 51%.
	result, _ = engine.PeerVoteOutcome(models.ChallengeTally{ChallengerVotes: 5, MasterVotes: 5}, nil)
	require.Equal(t, models.ResultDraw, result)

	result, _ = engine.PeerVoteOutcome(models.ChallengeTally{ChallengerVotes: 3, MasterVotes: 4}, nil)
	require.Equal(t, models.ResultMasterWins, result)
}

func TestPeerVoteOutcomeCriteriaOverride(t *testing.T) {
	engine := newTestScoringEngine()

	criteria := &models.PeerVoteCriteria{MasterShare: 0.9, ChallengerShare: 0.4}
	result, _ := engine.PeerVoteOutcome(models.ChallengeTally{ChallengerVotes: 4, MasterVotes: 6}, criteria)
	require.Equal(t, models.ResultChallengerWins, result)

	// Out-of-range overrides fall back to the engine defaults.
	criteria = &models.PeerVoteCriteria{MasterShare: 1.5, ChallengerShare: -1}
	result, _ = engine.PeerVoteOutcome(models.ChallengeTally{ChallengerVotes: 5, MasterVotes: 5}, criteria)
	require.Equal(t, models.ResultDraw, result)
}

func TestDecidePerformance(t *testing.T) {
	engine := newTestScoringEngine()
	ch := &models.MasterChallenge{ID: "ch-1", Type: models.ChallengeTypePerformance}

	metrics := []models.ChallengeMetrics{
		{Side: models.SideChallenger, TasksCompleted: 8, TasksOnTimePercent: 90, ObvsValidated: 6, FeedbackScore: 4, Initiative: 4},
		{Side: models.SideMaster, TasksCompleted: 5, TasksOnTimePercent: 70, ObvsValidated: 4, FeedbackScore: 3, Initiative: 3},
	}
	result, notes := engine.Decide(ch, metrics, models.ChallengeTally{})
	require.Equal(t, models.ResultChallengerWins, result)
	require.Contains(t, notes, "challenger")

	result, _ = engine.Decide(ch, nil, models.ChallengeTally{})
	require.Equal(t, models.ResultDraw, result)
}

func TestDecideProject(t *testing.T) {
	engine := newTestScoringEngine()
	adjudicated := models.ResultMasterWins
	ch := &models.MasterChallenge{
		ID:   "ch-2",
		Type: models.ChallengeTypeProject,
		Criteria: models.ChallengeCriteria{Project: &models.ProjectCriteria{
			AdjudicationRef:   "review-42",
			AdjudicatedResult: &adjudicated,
			AdjudicationNotes: "panel ruling",
		}},
	}
	result, notes := engine.Decide(ch, nil, models.ChallengeTally{})
	require.Equal(t, models.ResultMasterWins, result)
	require.Equal(t, "panel ruling", notes)

	unruled := &models.MasterChallenge{
		ID:       "ch-3",
		Type:     models.ChallengeTypeProject,
		Criteria: models.ChallengeCriteria{Project: &models.ProjectCriteria{AdjudicationRef: "review-43"}},
	}
	result, notes = engine.Decide(unruled, nil, models.ChallengeTally{})
	require.Equal(t, models.ResultDraw, result)
	require.Equal(t, "no adjudicated result recorded", notes)
}

func TestDecidePeerVoteUsesCriteria(t *testing.T) {
	engine := newTestScoringEngine()
	ch := &models.MasterChallenge{
		ID:       "ch-4",
		Type:     models.ChallengeTypePeerVote,
		Criteria: models.ChallengeCriteria{PeerVote: &models.PeerVoteCriteria{MasterShare: 0.51, ChallengerShare: 0.60}},
	}
	result, _ := engine.Decide(ch, nil, models.ChallengeTally{ChallengerVotes: 9, MasterVotes: 1})
	require.Equal(t, models.ResultChallengerWins, result)
}
