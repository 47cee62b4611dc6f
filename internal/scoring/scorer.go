// Package scoring estimates how human a participant's chat looks from the
// round transcript. The score is a pure function of its input: no randomness,
// no clocks, no shared state.
package scoring

import (
	"fmt"
	"strings"

	"github.com/scythe504/whos-human-backend/internal"
)

// Flag is one piece of evidence behind a score.
type Flag struct {
	Rule      string   `json:"rule"`
	Text      string   `json:"text"`
	Trigger   string   `json:"trigger,omitempty"`
	Weight    int      `json:"weight"`
	Category  Category `json:"category,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
}

type Result struct {
	ParticipantID string `json:"participant_id"`
	Score         int    `json:"score"`
	Flags         []Flag `json:"flags"`
	MessageCount  int    `json:"message_count"`
}

// Evidence returns up to k flags that raised the score, in evaluation order.
// k <= 0 returns all of them.
func (r Result) Evidence(k int) []Flag {
	out := make([]Flag, 0)
	for _, f := range r.Flags {
		if f.Weight <= 0 {
			continue
		}
		out = append(out, f)
		if k > 0 && len(out) == k {
			break
		}
	}
	return out
}

// Texts renders flags for display.
func Texts(flags []Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Text
	}
	return out
}

// HasCategory reports whether any flag belongs to c.
func (r Result) HasCategory(c Category) bool {
	for _, f := range r.Flags {
		if f.Category == c {
			return true
		}
	}
	return false
}

type Scorer struct {
	participation []ParticipationRule
	rules         []Rule
}

// NewScorer returns a scorer over the default rule tables.
func NewScorer() *Scorer {
	return NewScorerWithRules(DefaultParticipationRules, DefaultRules)
}

func NewScorerWithRules(participation []ParticipationRule, rules []Rule) *Scorer {
	return &Scorer{participation: participation, rules: rules}
}

// Score analyzes participantID's chat messages in transcript, which must hold the
// messages of a single round in append order. Suspicion statements are ignored.
func (s *Scorer) Score(participantID string, transcript []internal.Message) Result {
	chat := make([]internal.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Kind == internal.MessageKindChat || m.Kind == "" {
			chat = append(chat, m)
		}
	}

	own := make([]int, 0)
	for i, m := range chat {
		if m.ParticipantID == participantID {
			own = append(own, i)
		}
	}

	res := Result{ParticipantID: participantID, Flags: make([]Flag, 0), MessageCount: len(own)}

	for _, rule := range s.participation {
		if !rule.Match(len(own)) {
			continue
		}
		res.Score += rule.Weight
		res.Flags = append(res.Flags, Flag{
			Rule:     rule.Name,
			Text:     rule.Label,
			Weight:   rule.Weight,
			Category: rule.Category,
		})
		if rule.Stop {
			return res.clamped()
		}
	}

	for _, idx := range own {
		msg := chat[idx]
		earlier := make([]internal.Message, 0, idx)
		for _, prev := range chat[:idx] {
			if prev.ParticipantID != participantID {
				earlier = append(earlier, prev)
			}
		}

		mc := newMessageContext(msg, earlier)
		for _, rule := range s.rules {
			trigger, ok := rule.Match(mc)
			if !ok {
				continue
			}
			res.Score += rule.Weight
			if rule.Silent {
				continue
			}
			res.Flags = append(res.Flags, Flag{
				Rule:      rule.Name,
				Text:      render(rule.Label, trigger),
				Trigger:   trigger,
				Weight:    rule.Weight,
				Category:  rule.Category,
				MessageID: msg.ID,
			})
		}
	}

	return res.clamped()
}

func (r Result) clamped() Result {
	if r.Score < 0 {
		r.Score = 0
	}
	return r
}

func render(label, trigger string) string {
	if strings.Contains(label, "%") {
		return fmt.Sprintf(label, trigger)
	}
	return label
}
