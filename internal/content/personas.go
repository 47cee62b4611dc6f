package content

import (
	"fmt"
	"slices"
	"strings"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/random"
)

const humanAvatar = "😊"

func (p PersonaTemplate) bios() []string {
	return []string{
		fmt.Sprintf("%s is a %s %s who loves connecting with others.", p.Name, p.Trait, p.Occupation),
		fmt.Sprintf("Hey everyone! I'm %s, %s by day, adventurer by night.", p.Name, p.Occupation),
		fmt.Sprintf("%s here - %s and always ready for a good conversation!", p.Name, p.Trait),
		fmt.Sprintf("As a %s %s, %s brings unique perspectives to every discussion.", p.Trait, p.Occupation, p.Name),
	}
}

// Participant turns the template into an AI participant with a randomly chosen bio.
func (p PersonaTemplate) Participant(rng random.Source) internal.Participant {
	return internal.Participant{
		ID:          "ai-" + strings.ToLower(p.Name),
		Name:        p.Name,
		Personality: p.Trait + " " + p.Occupation,
		Bio:         random.Pick(rng, p.bios()),
		Avatar:      p.Avatar,
	}
}

// Cast picks count personas at random, adds the human and shuffles the roster.
// Personas sharing the human's name are skipped.
func (c *Catalog) Cast(humanName string, count int, rng random.Source) ([]internal.Participant, error) {
	if count < internal.MinAIParticipants || count > internal.MaxAIParticipants {
		return nil, fmt.Errorf("%w: %d AI participants, want %d-%d",
			internal.ErrInputRejected, count, internal.MinAIParticipants, internal.MaxAIParticipants)
	}

	pool := slices.DeleteFunc(slices.Clone(c.Personas), func(p PersonaTemplate) bool {
		return strings.EqualFold(p.Name, humanName)
	})
	if len(pool) < count {
		return nil, fmt.Errorf("%w: only %d personas available, need %d", internal.ErrInputRejected, len(pool), count)
	}
	random.Shuffle(rng, pool)

	roster := make([]internal.Participant, 0, count+1)
	for _, tmpl := range pool[:count] {
		roster = append(roster, tmpl.Participant(rng))
	}
	roster = append(roster, internal.Participant{
		ID:      internal.HumanParticipantID,
		Name:    humanName,
		IsHuman: true,
		Avatar:  humanAvatar,
	})
	random.Shuffle(rng, roster)
	return roster, nil
}
