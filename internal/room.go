package internal

// Methods (GameState struct)
func (g *GameState) Participant(id string) (Participant, bool) {
	for _, p := range g.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

func (g *GameState) ActiveParticipants() []Participant {
	active := make([]Participant, 0, len(g.Participants))
	for _, p := range g.Participants {
		if !p.IsEliminated {
			active = append(active, p)
		}
	}
	return active
}

func (g *GameState) ActiveAIs() []Participant {
	ais := make([]Participant, 0, len(g.Participants))
	for _, p := range g.Participants {
		if !p.IsEliminated && !p.IsHuman {
			ais = append(ais, p)
		}
	}
	return ais
}

func (g *GameState) Human() (Participant, bool) {
	for _, p := range g.Participants {
		if p.IsHuman {
			return p, true
		}
	}
	return Participant{}, false
}

func (g *GameState) RoundMessages(round int) []Message {
	msgs := make([]Message, 0)
	for _, m := range g.Messages {
		if m.Round == round {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func (g *GameState) RoundVotes(round int) []Vote {
	votes := make([]Vote, 0)
	for _, v := range g.Votes {
		if v.Round == round {
			votes = append(votes, v)
		}
	}
	return votes
}

// IsActive reports whether id names a participant that has not been eliminated.
func (g *GameState) IsActive(id string) bool {
	p, ok := g.Participant(id)
	return ok && !p.IsEliminated
}
