package llm

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/scythe504/whos-human-backend/internal"
)

const recentContextSize = 3

// ChatPromptInput is everything a persona needs to say its next line.
type ChatPromptInput struct {
	Speaker internal.Participant
	Topic   string
	// Others are the names of every other active participant, human included.
	Others []string
	// Transcript is the current round's messages in order.
	Transcript []internal.Message
}

// BuildChatPrompt renders the persona prompt sent to the generation backend.
func BuildChatPrompt(in ChatPromptInput) string {
	recent := make([]string, 0, recentContextSize)
	for i := len(in.Transcript) - 1; i >= 0 && len(recent) < recentContextSize; i-- {
		m := in.Transcript[i]
		if m.ParticipantID == in.Speaker.ID {
			continue
		}
		recent = append(recent, fmt.Sprintf("%s: %s", m.ParticipantName, m.Content))
	}
	slices.Reverse(recent)

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s", in.Speaker.Name)
	if in.Speaker.Personality != "" {
		fmt.Fprintf(&b, ", a %s", in.Speaker.Personality)
	}
	fmt.Fprintf(&b, ". Topic: %q\n\n", in.Topic)

	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		b.WriteString(strings.Join(recent, "\n"))
		b.WriteString("\n\n")
	}
	if len(in.Others) > 0 {
		fmt.Fprintf(&b, "Everyone in chat: %s\n\n", strings.Join(in.Others, ", "))
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Write 1-2 sentences on the topic (20-30 words total).\n")
	if len(recent) > 0 {
		b.WriteString("- Either react to someone's point or add a new angle.\n")
	} else {
		b.WriteString("- Share your own take on the topic.\n")
	}
	fmt.Fprintf(&b, "- You are %s: say \"I think\", never \"%s thinks\".\n", in.Speaker.Name, in.Speaker.Name)
	b.WriteString("- Proper grammar and punctuation.\n\n")
	b.WriteString("Your response:")
	return b.String()
}

var capitalizedRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

var sentenceStarters = map[string]bool{
	"I": true, "The": true, "That": true, "This": true, "It": true, "We": true,
	"You": true, "But": true, "And": true, "So": true, "Honestly": true, "Maybe": true,
	"Yeah": true, "What": true, "How": true, "Why": true, "If": true, "Oh": true,
	"Hmm": true, "Well": true, "Also": true, "Here": true, "There": true,
}

// UnknownNames lists capitalized words in text that look like names but are not on
// the roster. The result is diagnostic only.
func UnknownNames(text string, roster []string) []string {
	known := make(map[string]bool, len(roster))
	for _, name := range roster {
		known[name] = true
	}

	out := make([]string, 0)
	for _, word := range capitalizedRe.FindAllString(text, -1) {
		if known[word] || sentenceStarters[word] || slices.Contains(out, word) {
			continue
		}
		out = append(out, word)
	}
	return out
}
