package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/scoring"
)

func newTestResolver(difficulty internal.Difficulty, rng random.Source) *Resolver {
	return NewResolver(scoring.NewScorer(), rng, DefaultSettings().ForDifficulty(difficulty), zap.NewNop())
}

func candidate(id string, score int, flags ...scoring.Flag) Candidate {
	return Candidate{
		Participant: internal.Participant{ID: id, Name: id},
		Result:      scoring.Result{ParticipantID: id, Score: score, Flags: flags},
	}
}

func msg(id, author string, kind internal.MessageKind, content string) internal.Message {
	return internal.Message{ID: id, ParticipantID: author, ParticipantName: author, Round: 1, Content: content, Kind: kind}
}

const aiLine = "I think the practical option makes the most sense here, because it keeps everyone comfortable and still leaves room for a little adventure later on."

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		tally      map[string]int
		eliminated string
		tie        bool
	}{
		{name: "clear majority", tally: map[string]int{"a": 3, "b": 1}, eliminated: "a"},
		{name: "plurality", tally: map[string]int{"a": 2, "b": 1, "c": 1}, eliminated: "a"},
		{name: "two way tie", tally: map[string]int{"a": 2, "b": 2, "c": 1}, tie: true},
		{name: "tie with the human", tally: map[string]int{"human": 2, "b": 2}, tie: true},
		{name: "everyone tied", tally: map[string]int{"a": 1, "b": 1, "c": 1}, tie: true},
		{name: "no votes", tally: map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eliminated, tie := Resolve(tt.tally)
			assert.Equal(t, tt.eliminated, eliminated)
			assert.Equal(t, tt.tie, tie)
		})
	}
}

func TestTopScorers(t *testing.T) {
	top := TopScorers([]Candidate{candidate("a", 20), candidate("b", 5), candidate("c", 20)})
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Participant.ID)
	assert.Equal(t, "c", top[1].Participant.ID)

	assert.Nil(t, TopScorers(nil))
}

func TestChooseTargetHardSplitsTies(t *testing.T) {
	r := newTestResolver(internal.DifficultyHard, random.NewLocked(11))
	candidates := []Candidate{candidate("a", 20), candidate("b", 20), candidate("c", 5)}

	picks := make(map[string]int)
	const trials = 4000
	for i := 0; i < trials; i++ {
		target, _, ok := r.ChooseTarget(candidates)
		require.True(t, ok)
		picks[target.Participant.ID]++
	}

	assert.Zero(t, picks["c"])
	assert.InDelta(t, 0.5, float64(picks["a"])/trials, 0.05)
	assert.InDelta(t, 0.5, float64(picks["b"])/trials, 0.05)
}

func TestChooseTargetReasoning(t *testing.T) {
	flags := []scoring.Flag{
		{Text: "Only 4 words (AIs write 20-30)", Weight: 10},
		{Text: "Well-structured message", Weight: -6},
		{Text: `Used "lol" (informal)`, Weight: 12},
		{Text: "Started with lowercase", Weight: 12},
		{Text: "No ending punctuation", Weight: 12},
	}

	t.Run("hard cites three flags", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyHard, random.NewLocked(1))
		_, reasoning, ok := r.ChooseTarget([]Candidate{candidate("a", 40, flags...)})
		require.True(t, ok)
		assert.Equal(t, `Only 4 words (AIs write 20-30); Used "lol" (informal); Started with lowercase.`, reasoning)
	})

	t.Run("medium cites two flags", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyMedium, &random.Sequence{Floats: []float64{0.9}})
		_, reasoning, ok := r.ChooseTarget([]Candidate{candidate("a", 40, flags...)})
		require.True(t, ok)
		assert.Equal(t, `Only 4 words (AIs write 20-30); Used "lol" (informal).`, reasoning)
	})

	t.Run("no evidence", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyHard, random.NewLocked(1))
		_, reasoning, ok := r.ChooseTarget([]Candidate{candidate("a", 0)})
		require.True(t, ok)
		assert.Equal(t, "Making a guess based on intuition.", reasoning)
	})

	t.Run("nobody to vote for", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyHard, random.NewLocked(1))
		_, _, ok := r.ChooseTarget(nil)
		assert.False(t, ok)
	})
}

func TestChooseTargetRandomOverride(t *testing.T) {
	candidates := []Candidate{candidate("a", 40), candidate("b", 0), candidate("c", 0)}

	t.Run("easy override ignores the scores", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyEasy, &random.Sequence{Floats: []float64{0.1}, Ints: []int{2}})
		target, reasoning, ok := r.ChooseTarget(candidates)
		require.True(t, ok)
		assert.Equal(t, "c", target.Participant.ID)
		assert.Equal(t, "Just a hunch.", reasoning)
	})

	t.Run("medium override", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyMedium, &random.Sequence{Floats: []float64{0.2}, Ints: []int{1}})
		target, reasoning, _ := r.ChooseTarget(candidates)
		assert.Equal(t, "b", target.Participant.ID)
		assert.Equal(t, "Going with my gut.", reasoning)
	})

	t.Run("medium without override", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyMedium, &random.Sequence{Floats: []float64{0.3}, Ints: []int{1}})
		target, _, _ := r.ChooseTarget(candidates)
		assert.Equal(t, "a", target.Participant.ID)
	})

	t.Run("hard never overrides", func(t *testing.T) {
		r := newTestResolver(internal.DifficultyHard, &random.Sequence{Floats: []float64{0}, Ints: []int{2}})
		target, _, _ := r.ChooseTarget(candidates)
		assert.Equal(t, "a", target.Participant.ID)
	})
}

func TestCollectAIVotesTargetsSilentParticipant(t *testing.T) {
	active := roster(3)
	transcript := []internal.Message{
		msg("m1", "ai-Alex", internal.MessageKindChat, aiLine),
		msg("m2", "ai-Sam", internal.MessageKindChat, aiLine),
		msg("m3", "ai-Casey", internal.MessageKindChat, aiLine),
	}
	r := newTestResolver(internal.DifficultyHard, random.NewLocked(5))

	votes, err := r.CollectAIVotes(context.Background(), 1, active, transcript)
	require.NoError(t, err)
	require.Len(t, votes, 3)

	for i, v := range votes {
		assert.Equal(t, active[i].ID, v.VoterID, "votes keep roster order")
		assert.Equal(t, internal.HumanParticipantID, v.TargetID)
		assert.Equal(t, 1, v.Round)
		assert.Equal(t, "No participation.", v.Reasoning)
	}
}

func TestCollectAIVotesNeverSelf(t *testing.T) {
	active := roster(4)
	r := newTestResolver(internal.DifficultyEasy, random.NewLocked(9))

	for i := 0; i < 50; i++ {
		votes, err := r.CollectAIVotes(context.Background(), 1, active, nil)
		require.NoError(t, err)
		for _, v := range votes {
			assert.NotEqual(t, v.VoterID, v.TargetID)
		}
	}
}

func TestCollectAIVotesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestResolver(internal.DifficultyHard, random.NewLocked(1))
	_, err := r.CollectAIVotes(ctx, 1, roster(3), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveRound(t *testing.T) {
	active := roster(3)
	r := newTestResolver(internal.DifficultyHard, random.NewLocked(1))
	transcript := []internal.Message{
		msg("m1", "ai-Alex", internal.MessageKindChat, aiLine),
		msg("m2", internal.HumanParticipantID, internal.MessageKindChat, "yeah lol"),
		msg("m3", internal.HumanParticipantID, internal.MessageKindSuspicion, "I suspect Alex. Too polished."),
	}
	vote := func(voter, target string) internal.Vote {
		return internal.Vote{VoterID: voter, TargetID: target, Round: 1}
	}

	t.Run("human eliminated", func(t *testing.T) {
		votes := []internal.Vote{
			vote(internal.HumanParticipantID, "ai-Alex"),
			vote("ai-Alex", internal.HumanParticipantID),
			vote("ai-Sam", internal.HumanParticipantID),
			vote("ai-Casey", "ai-Sam"),
		}
		res, err := r.ResolveRound(1, active, votes, transcript)
		require.NoError(t, err)

		assert.Equal(t, internal.HumanParticipantID, res.EliminatedID)
		assert.Equal(t, 2, res.Tally[internal.HumanParticipantID])
		require.NotNil(t, res.Record)
		assert.True(t, res.Record.WasHuman)
		assert.Len(t, res.Record.Votes, 4)
		require.NotNil(t, res.Record.Analysis)
		assert.Equal(t, []string{"yeah lol"}, res.Record.Analysis.ExampleMessages)
		assert.NotEmpty(t, res.Record.Analysis.Flags)
	})

	t.Run("AI eliminated", func(t *testing.T) {
		votes := []internal.Vote{
			vote(internal.HumanParticipantID, "ai-Sam"),
			vote("ai-Alex", "ai-Sam"),
			vote("ai-Sam", internal.HumanParticipantID),
		}
		res, err := r.ResolveRound(1, active, votes, transcript)
		require.NoError(t, err)

		assert.Equal(t, "ai-Sam", res.EliminatedID)
		require.NotNil(t, res.Record)
		assert.False(t, res.Record.WasHuman)
		assert.Nil(t, res.Record.Analysis)
	})

	t.Run("tie involving the human", func(t *testing.T) {
		votes := []internal.Vote{
			vote(internal.HumanParticipantID, "ai-Sam"),
			vote("ai-Alex", internal.HumanParticipantID),
		}
		res, err := r.ResolveRound(1, active, votes, transcript)
		require.NoError(t, err)

		assert.True(t, res.Tie)
		assert.Empty(t, res.EliminatedID)
		assert.Nil(t, res.Record)
	})

	t.Run("no active participants", func(t *testing.T) {
		_, err := r.ResolveRound(1, nil, nil, transcript)
		assert.ErrorIs(t, err, internal.ErrInvalidState)
	})
}

func TestAnalyze(t *testing.T) {
	r := newTestResolver(internal.DifficultyMedium, random.NewLocked(1))

	t.Run("silent human", func(t *testing.T) {
		a := r.Analyze(internal.HumanParticipantID, nil)
		assert.Equal(t, []string{"No participation"}, a.Flags)
		assert.Empty(t, a.ExampleMessages)
		assert.Equal(t, []string{"Participate more! Staying quiet makes you very suspicious."}, a.Tips)
	})

	t.Run("examples are capped", func(t *testing.T) {
		transcript := []internal.Message{
			msg("m1", internal.HumanParticipantID, internal.MessageKindChat, "ok"),
			msg("m2", internal.HumanParticipantID, internal.MessageKindChat, "sure"),
			msg("m3", internal.HumanParticipantID, internal.MessageKindChat, "idk"),
			msg("m4", internal.HumanParticipantID, internal.MessageKindChat, "lol"),
		}
		a := r.Analyze(internal.HumanParticipantID, transcript)
		assert.Equal(t, []string{"ok", "sure", "idk"}, a.ExampleMessages)
		assert.Contains(t, a.Tips, tipsByCategory[0].tip)
		assert.NotContains(t, a.Tips, playedWellTip)
	})

	t.Run("polished human", func(t *testing.T) {
		transcript := []internal.Message{
			msg("m1", internal.HumanParticipantID, internal.MessageKindChat, formalHuman),
			msg("m2", internal.HumanParticipantID, internal.MessageKindChat, formalHuman),
		}
		a := r.Analyze(internal.HumanParticipantID, transcript)
		assert.Equal(t, []string{playedWellTip}, a.Tips)
	})
}

const formalHuman = "Furthermore, I believe the practical choice remains the most sensible option because it balances comfort, cost, and convenience for everyone involved in this particular decision today."
