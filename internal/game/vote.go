package game

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/scoring"
)

const maxExampleMessages = 3

// Candidate is one participant as seen by a voter.
type Candidate struct {
	Participant internal.Participant
	Result      scoring.Result
}

// =============================================================================
// VOTE RESOLVER
// =============================================================================

type Resolver struct {
	scorer     *scoring.Scorer
	rng        random.Source
	difficulty DifficultySettings
	log        *zap.Logger
}

func NewResolver(scorer *scoring.Scorer, rng random.Source, difficulty DifficultySettings, log *zap.Logger) *Resolver {
	return &Resolver{scorer: scorer, rng: rng, difficulty: difficulty, log: log}
}

// Candidates scores every active participant except voterID on transcript.
func (r *Resolver) Candidates(voterID string, active []internal.Participant, transcript []internal.Message) []Candidate {
	out := make([]Candidate, 0, len(active))
	for _, p := range active {
		if p.ID == voterID {
			continue
		}
		out = append(out, Candidate{Participant: p, Result: r.scorer.Score(p.ID, transcript)})
	}
	return out
}

// ChooseTarget applies the difficulty tier to scored candidates and returns the
// chosen one with the vote reasoning. ok is false when there is nobody to vote for.
func (r *Resolver) ChooseTarget(candidates []Candidate) (target Candidate, reasoning string, ok bool) {
	if len(candidates) == 0 {
		return Candidate{}, "", false
	}

	if r.difficulty.RandomVoteProbability > 0 && r.rng.Float64() < r.difficulty.RandomVoteProbability {
		return random.Pick(r.rng, candidates), r.difficulty.RandomVoteReasoning, true
	}

	target = random.Pick(r.rng, TopScorers(candidates))
	evidence := scoring.Texts(target.Result.Evidence(r.difficulty.EvidenceFlags))
	if len(evidence) == 0 {
		return target, llm.ReasoningIntuition, true
	}
	return target, strings.Join(evidence, "; ") + ".", true
}

// TopScorers returns every candidate sharing the highest score, in input order.
func TopScorers(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0].Result.Score
	for _, c := range candidates[1:] {
		best = max(best, c.Result.Score)
	}
	top := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Result.Score == best {
			top = append(top, c)
		}
	}
	return top
}

// CollectAIVotes computes one vote per active AI concurrently. Each goroutine reads
// the shared transcript and writes only its own slot, so the result keeps roster order.
func (r *Resolver) CollectAIVotes(ctx context.Context, round int, active []internal.Participant, transcript []internal.Message) ([]internal.Vote, error) {
	ais := make([]internal.Participant, 0, len(active))
	for _, p := range active {
		if !p.IsHuman {
			ais = append(ais, p)
		}
	}

	slots := make([]*internal.Vote, len(ais))
	g, ctx := errgroup.WithContext(ctx)
	for i, ai := range ais {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target, reasoning, ok := r.ChooseTarget(r.Candidates(ai.ID, active, transcript))
			if !ok {
				return nil
			}
			slots[i] = &internal.Vote{
				VoterID:   ai.ID,
				TargetID:  target.Participant.ID,
				Round:     round,
				Reasoning: reasoning,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect votes: %w", err)
	}

	votes := make([]internal.Vote, 0, len(slots))
	for _, v := range slots {
		if v != nil {
			votes = append(votes, *v)
		}
	}
	return votes, nil
}

// Tally counts votes per target.
func Tally(votes []internal.Vote) map[string]int {
	tally := make(map[string]int)
	for _, v := range votes {
		tally[v.TargetID]++
	}
	return tally
}

// Resolve returns the unique participant with strictly more votes than every other.
// tie is true when two or more share the maximum; nobody is eliminated then.
func Resolve(tally map[string]int) (eliminated string, tie bool) {
	best := 0
	for id, n := range tally {
		switch {
		case n > best:
			best = n
			eliminated = id
			tie = false
		case n == best && n > 0:
			tie = true
		}
	}
	if tie {
		return "", true
	}
	return eliminated, false
}

// ResolveRound tallies the round's votes and builds the elimination record, with an
// analysis attached when the eliminated participant is the human. It does not mutate
// anything.
func (r *Resolver) ResolveRound(round int, active []internal.Participant, votes []internal.Vote, transcript []internal.Message) (internal.RoundResult, error) {
	if len(active) == 0 {
		return internal.RoundResult{}, fmt.Errorf("%w: no active participants in round %d", internal.ErrInvalidState, round)
	}

	tally := Tally(votes)
	eliminated, tie := Resolve(tally)
	result := internal.RoundResult{Round: round, Tally: tally, Tie: tie}
	if eliminated == "" {
		return result, nil
	}

	var target internal.Participant
	found := false
	for _, p := range active {
		if p.ID == eliminated {
			target, found = p, true
			break
		}
	}
	if !found {
		return internal.RoundResult{}, fmt.Errorf("%w: %q is not active", internal.ErrInvalidState, eliminated)
	}

	result.EliminatedID = eliminated
	result.Record = &internal.EliminationRecord{
		Round:        round,
		EliminatedID: eliminated,
		Votes:        votes,
		WasHuman:     target.IsHuman,
	}
	if target.IsHuman {
		result.Record.Analysis = r.Analyze(target.ID, transcript)
	}
	return result, nil
}

// =============================================================================
// HUMAN ANALYSIS
// =============================================================================

var tipsByCategory = []struct {
	category scoring.Category
	tip      string
}{
	{scoring.CategoryBrevity, "Write longer messages (20-30 words). AIs write complete thoughts with context."},
	{scoring.CategoryInformality, `Avoid shortcuts like "ur", "u", "idk". AIs use proper spelling.`},
	{scoring.CategoryGrammar, "Use proper capitalization and punctuation. AIs always end with . ! or ?"},
	{scoring.CategoryParticipation, "Participate more! Staying quiet makes you very suspicious."},
	{scoring.CategoryPunctuation, `Avoid "..." and "!!!" - these are human tells. Keep it clean.`},
	{scoring.CategoryAgreement, "Don't just agree! Add NEW perspectives and insights to the discussion."},
	{scoring.CategoryRepetition, "Avoid repeating what others said. Bring original thoughts and new angles to the topic."},
}

const playedWellTip = "You played well! Try mimicking AI style: 20-30 words, proper grammar, mention names."

// Analyze explains to an eliminated human what gave them away.
func (r *Resolver) Analyze(humanID string, transcript []internal.Message) *internal.HumanAnalysis {
	res := r.scorer.Score(humanID, transcript)

	examples := make([]string, 0, maxExampleMessages)
	for _, m := range transcript {
		if m.ParticipantID == humanID && m.Kind == internal.MessageKindChat {
			examples = append(examples, m.Content)
			if len(examples) == maxExampleMessages {
				break
			}
		}
	}

	tips := make([]string, 0)
	for _, t := range tipsByCategory {
		if res.HasCategory(t.category) {
			tips = append(tips, t.tip)
		}
	}
	if len(tips) == 0 {
		tips = append(tips, playedWellTip)
	}

	return &internal.HumanAnalysis{
		Flags:           scoring.Texts(res.Flags),
		ExampleMessages: examples,
		Tips:            tips,
	}
}
