package game

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/scoring"
)

const (
	suspicionFlags          = 2
	subtleSuspicionScore    = 5
	suspicionStatementStart = "I suspect"
)

// Statement formats a suspicion as it appears in the transcript.
func Statement(suspectName, reasoning string) string {
	return fmt.Sprintf("%s %s. %s", suspicionStatementStart, suspectName, reasoning)
}

// SuspicionReasoning explains why a suspect was picked, from its strongest flags.
func SuspicionReasoning(suspect Candidate) string {
	name := suspect.Participant.Name
	evidence := scoring.Texts(suspect.Result.Evidence(suspicionFlags))
	switch {
	case len(evidence) > 0:
		return fmt.Sprintf("%s: %s", name, strings.Join(evidence, ", "))
	case suspect.Result.Score > subtleSuspicionScore:
		return fmt.Sprintf("%s shows subtle patterns worth noting", name)
	default:
		return fmt.Sprintf("%s's style is consistent but something feels slightly off", name)
	}
}

// CollectAISuspicions has every active AI name its most human-looking peer. The
// highest score wins and ties go to the earliest participant in roster order.
func (r *Resolver) CollectAISuspicions(ctx context.Context, round int, active []internal.Participant, transcript []internal.Message) ([]internal.Suspicion, error) {
	ais := make([]internal.Participant, 0, len(active))
	for _, p := range active {
		if !p.IsHuman {
			ais = append(ais, p)
		}
	}

	slots := make([]*internal.Suspicion, len(ais))
	g, ctx := errgroup.WithContext(ctx)
	for i, ai := range ais {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			top := TopScorers(r.Candidates(ai.ID, active, transcript))
			if len(top) == 0 {
				return nil
			}
			slots[i] = &internal.Suspicion{
				ParticipantID: ai.ID,
				SuspectID:     top[0].Participant.ID,
				Round:         round,
				Reasoning:     SuspicionReasoning(top[0]),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect suspicions: %w", err)
	}

	out := make([]internal.Suspicion, 0, len(slots))
	for _, sp := range slots {
		if sp != nil {
			out = append(out, *sp)
		}
	}
	return out, nil
}
