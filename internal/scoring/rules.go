package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/scythe504/whos-human-backend/internal"
)

// Category groups flags for the tips shown to an eliminated human.
type Category string

const (
	CategoryNone          Category = ""
	CategoryBrevity       Category = "brevity"
	CategoryInformality   Category = "informality"
	CategoryGrammar       Category = "grammar"
	CategoryParticipation Category = "participation"
	CategoryPunctuation   Category = "punctuation"
	CategoryAgreement     Category = "over_agreement"
	CategoryRepetition    Category = "repetition"
)

// Rule is one row of the scoring table. Match returns the literal text that
// triggered the rule (may be empty) and whether it fired. Label is rendered with
// the trigger through a single %s verb when it has one.
type Rule struct {
	Name     string
	Weight   int
	Label    string
	Category Category
	// Silent rules move the score without emitting a flag.
	Silent bool
	Match  func(m *messageContext) (string, bool)
}

// ParticipationRule fires on the number of messages a participant sent in the round.
// A Stop rule ends the analysis for that participant.
type ParticipationRule struct {
	Name     string
	Weight   int
	Label    string
	Category Category
	Stop     bool
	Match    func(count int) bool
}

const (
	similarityThreshold = 0.6
	minSignificantWords = 5
	significantWordLen  = 3
)

var (
	vagueRe    = regexp.MustCompile(`\b(ok|okay|yeah|yea|sure|cool|nice|great|hmm|idk|maybe)\b`)
	informalRe = regexp.MustCompile(`\b(ur|u|ppl|r|y|idk|tbh|lol|omg|ngl|fr|bc|gonna|wanna|gotta|kinda|sorta)\b`)
	multiRe    = regexp.MustCompile(`[!?]{2,}`)
	agreeRe    = regexp.MustCompile(`^(yeah|yep|yea|true|exactly|agreed|same|i agree|that's true|good point|makes sense|fair enough)`)
	personalRe = regexp.MustCompile(`\b(i feel|i think|i dunno|i guess|honestly|personally|my opinion)\b`)
	formalRe   = regexp.MustCompile(`\b(furthermore|moreover|indeed|however|therefore|consequently|nevertheless)\b`)
)

// DefaultParticipationRules are evaluated once per participant, before any message rule.
var DefaultParticipationRules = []ParticipationRule{
	{
		Name:     "no_participation",
		Weight:   25,
		Label:    "No participation",
		Category: CategoryParticipation,
		Stop:     true,
		Match:    func(count int) bool { return count == 0 },
	},
	{
		Name:     "minimal_participation",
		Weight:   15,
		Label:    "Minimal participation",
		Category: CategoryParticipation,
		Match:    func(count int) bool { return count == 1 },
	},
}

// DefaultRules are evaluated for every message in order. Negative weights are
// evidence of a synthetic author.
var DefaultRules = []Rule{
	{
		Name:     "very_brief",
		Weight:   10,
		Label:    "Only %s words (AIs write 20-30)",
		Category: CategoryBrevity,
		Match: func(m *messageContext) (string, bool) {
			return strconv.Itoa(m.wordCount), m.wordCount < 15
		},
	},
	{
		Name:     "slightly_brief",
		Weight:   5,
		Label:    "%s words (slightly brief)",
		Category: CategoryBrevity,
		Match: func(m *messageContext) (string, bool) {
			return strconv.Itoa(m.wordCount), m.wordCount >= 15 && m.wordCount < 18
		},
	},
	{
		Name:     "vague_response",
		Weight:   8,
		Label:    "Vague response: %q",
		Category: CategoryAgreement,
		Match: func(m *messageContext) (string, bool) {
			hit := vagueRe.FindString(m.lower)
			return hit, hit != "" && m.wordCount < 10
		},
	},
	{
		Name:     "informal_language",
		Weight:   12,
		Label:    "Used %q (informal)",
		Category: CategoryInformality,
		Match: func(m *messageContext) (string, bool) {
			hit := informalRe.FindString(m.lower)
			return hit, hit != ""
		},
	},
	{
		Name:     "missing_punctuation",
		Weight:   12,
		Label:    "No ending punctuation",
		Category: CategoryGrammar,
		Match: func(m *messageContext) (string, bool) {
			return "", m.missingPunctuation()
		},
	},
	{
		Name:     "lowercase_start",
		Weight:   12,
		Label:    "Started with lowercase",
		Category: CategoryGrammar,
		Match: func(m *messageContext) (string, bool) {
			return "", m.lowercaseStart()
		},
	},
	{
		Name:     "repeated_letters",
		Weight:   10,
		Label:    "Repeated letters: %q",
		Category: CategoryInformality,
		Match: func(m *messageContext) (string, bool) {
			run := repeatedLetterRun(m.text)
			return run, run != ""
		},
	},
	{
		Name:     "ellipsis",
		Weight:   8,
		Label:    `Used "..." (ellipsis)`,
		Category: CategoryPunctuation,
		Match: func(m *messageContext) (string, bool) {
			return "...", strings.Contains(m.text, "...")
		},
	},
	{
		Name:     "multiple_punctuation",
		Weight:   7,
		Label:    "Used %q (multiple punctuation)",
		Category: CategoryPunctuation,
		Match: func(m *messageContext) (string, bool) {
			hit := multiRe.FindString(m.text)
			return hit, hit != ""
		},
	},
	{
		Name:     "just_agreeing",
		Weight:   9,
		Label:    "Just agreeing, no new insight",
		Category: CategoryAgreement,
		Match: func(m *messageContext) (string, bool) {
			hit := agreeRe.FindString(m.lower)
			return hit, hit != "" && m.wordCount < 12
		},
	},
	{
		Name:     "rephrasing",
		Weight:   8,
		Label:    "Rephrasing previous message",
		Category: CategoryRepetition,
		Match: func(m *messageContext) (string, bool) {
			return m.rephrases()
		},
	},
	{
		Name:   "personal_expression",
		Weight: 6,
		Label:  "Personal expression: %q",
		Match: func(m *messageContext) (string, bool) {
			hit := personalRe.FindString(m.lower)
			return hit, hit != ""
		},
	},
	{
		Name:   "single_question",
		Weight: 3,
		Silent: true,
		Match: func(m *messageContext) (string, bool) {
			return "?", strings.Count(m.text, "?") == 1
		},
	},
	{
		Name:   "well_structured",
		Weight: -6,
		Label:  "Well-structured message",
		Match: func(m *messageContext) (string, bool) {
			return "", m.wordCount >= 20 && m.wordCount <= 35
		},
	},
	{
		Name:   "perfect_grammar",
		Weight: -5,
		Label:  "Perfect grammar",
		Match: func(m *messageContext) (string, bool) {
			first, _ := utf8.DecodeRuneInString(m.text)
			return "", m.wordCount > 20 && unicode.IsUpper(first) && !m.missingPunctuation() && endsWithTerminal(m.text)
		},
	},
	{
		Name:   "formal_language",
		Weight: -6,
		Label:  "Very formal language: %q",
		Match: func(m *messageContext) (string, bool) {
			hit := formalRe.FindString(m.lower)
			return hit, hit != ""
		},
	},
}

// =============================================================================
// MESSAGE CONTEXT
// =============================================================================

type messageContext struct {
	msg       internal.Message
	text      string
	lower     string
	wordCount int
	// earlier holds chat messages from other participants that precede msg in the round.
	earlier []internal.Message
}

func newMessageContext(msg internal.Message, earlier []internal.Message) *messageContext {
	text := strings.TrimSpace(msg.Content)
	return &messageContext{
		msg:       msg,
		text:      text,
		lower:     strings.ToLower(text),
		wordCount: len(strings.Fields(text)),
		earlier:   earlier,
	}
}

func (m *messageContext) missingPunctuation() bool {
	return len(m.text) > 5 && !endsWithTerminal(m.text)
}

func (m *messageContext) lowercaseStart() bool {
	return len(m.text) > 0 && m.text[0] >= 'a' && m.text[0] <= 'z'
}

func (m *messageContext) rephrases() (string, bool) {
	words := significantWords(m.lower)
	if len(words) <= minSignificantWords {
		return "", false
	}
	for _, prev := range m.earlier {
		prevSet := make(map[string]bool)
		for _, w := range significantWords(strings.ToLower(prev.Content)) {
			prevSet[w] = true
		}
		common := 0
		for _, w := range words {
			if prevSet[w] {
				common++
			}
		}
		if float64(common)/float64(len(words)) > similarityThreshold {
			return prev.Content, true
		}
	}
	return "", false
}

func significantWords(lower string) []string {
	out := make([]string, 0)
	for _, w := range strings.Fields(lower) {
		if len(w) > significantWordLen {
			out = append(out, w)
		}
	}
	return out
}

// repeatedLetterRun returns the first run of one letter repeated three or more times,
// compared case-insensitively.
func repeatedLetterRun(text string) string {
	runes := []rune(text)
	for i := 0; i < len(runes); {
		if !unicode.IsLetter(runes[i]) {
			i++
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.ToLower(runes[j]) == unicode.ToLower(runes[i]) {
			j++
		}
		if j-i >= 3 {
			return string(runes[i:j])
		}
		i = j
	}
	return ""
}

func endsWithTerminal(text string) bool {
	last, _ := utf8.DecodeLastRuneInString(text)
	return last == '.' || last == '!' || last == '?'
}
