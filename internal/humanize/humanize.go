// Package humanize normalizes generated chat lines and, now and then, roughens
// AI lines with one small human-looking slip.
package humanize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/scythe504/whos-human-backend/internal/random"
)

type Corruption int

const (
	CorruptionNone Corruption = iota
	CorruptionFirstSentence
	CorruptionContraction
	CorruptionDropPunctuation
	CorruptionLowercaseStart
	CorruptionDoubledLetter
	CorruptionEllipsis
)

const corruptionKinds = 6

func (c Corruption) String() string {
	switch c {
	case CorruptionFirstSentence:
		return "first_sentence"
	case CorruptionContraction:
		return "contraction"
	case CorruptionDropPunctuation:
		return "drop_punctuation"
	case CorruptionLowercaseStart:
		return "lowercase_start"
	case CorruptionDoubledLetter:
		return "doubled_letter"
	case CorruptionEllipsis:
		return "ellipsis"
	}
	return "none"
}

// SkipsCapitalization reports whether c deliberately leaves the first letter lowercase.
func (c Corruption) SkipsCapitalization() bool {
	return c == CorruptionLowercaseStart
}

// SkipsTerminalPunctuation reports whether c owns the end of the line.
func (c Corruption) SkipsTerminalPunctuation() bool {
	return c == CorruptionDropPunctuation || c == CorruptionEllipsis
}

// growth is the most runes c can add to a line.
func (c Corruption) growth() int {
	switch c {
	case CorruptionDoubledLetter:
		return 1
	case CorruptionEllipsis:
		return 2
	}
	return 0
}

const emptyFallback = "I'm still thinking about this one."

type Options struct {
	MaxWords              int
	MaxChars              int
	CorruptionProbability float64
}

func DefaultOptions() Options {
	return Options{
		MaxWords:              35,
		MaxChars:              200,
		CorruptionProbability: 0.2,
	}
}

type Humanizer struct {
	opts Options
	rng  random.Source
}

func New(rng random.Source, opts Options) *Humanizer {
	return &Humanizer{opts: opts, rng: rng}
}

type Result struct {
	Text       string
	Corruption Corruption
}

// Humanize prepares an AI-authored line: normalization plus, with the configured
// probability, exactly one corruption.
func (h *Humanizer) Humanize(raw, speaker string) Result {
	text := h.clean(raw, speaker)

	applied := CorruptionNone
	if text != "" && h.rng.Float64() < h.opts.CorruptionProbability {
		kind := Corruption(h.rng.Intn(corruptionKinds) + 1)
		candidate := text
		if g := kind.growth(); g > 0 {
			candidate = truncateChars(text, h.opts.MaxChars-g)
		}
		if out, ok := h.corrupt(candidate, kind); ok {
			text = out
			applied = kind
		}
	}

	return Result{Text: h.finish(text, applied), Corruption: applied}
}

// Normalize applies every normalization step and never corrupts.
func (h *Humanizer) Normalize(raw, speaker string) string {
	return h.finish(h.clean(raw, speaker), CorruptionNone)
}

func (h *Humanizer) clean(raw, speaker string) string {
	text := strings.TrimSpace(raw)
	text = stripSpeakerLabel(text, speaker)
	text = stripWrappingQuotes(text)
	text = stripSelfReferences(text, speaker)
	text = truncateWords(text, h.opts.MaxWords)
	text = truncateChars(text, h.opts.MaxChars)
	return strings.TrimSpace(text)
}

func (h *Humanizer) finish(text string, applied Corruption) string {
	if text == "" {
		return emptyFallback
	}
	if !applied.SkipsCapitalization() {
		text = capitalize(text)
	}
	if !applied.SkipsTerminalPunctuation() && !endsWithTerminal(text) {
		// The closing period must fit in MaxChars too.
		if h.opts.MaxChars > 0 && utf8.RuneCountInString(text) >= h.opts.MaxChars {
			text = truncateChars(text, h.opts.MaxChars-1)
		}
		if !endsWithTerminal(text) {
			text += "."
		}
	}
	return text
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func stripSpeakerLabel(text, speaker string) string {
	if speaker == "" {
		return text
	}
	label := speaker + ":"
	if len(text) >= len(label) && strings.EqualFold(text[:len(label)], label) {
		return strings.TrimSpace(text[len(label):])
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
}

func stripWrappingQuotes(text string) string {
	for {
		first, size := utf8.DecodeRuneInString(text)
		closing, ok := quotePairs[first]
		if !ok || len(text) <= size {
			return text
		}
		last, lastSize := utf8.DecodeLastRuneInString(text)
		if last != closing {
			return text
		}
		text = strings.TrimSpace(text[size : len(text)-lastSize])
	}
}

func stripSelfReferences(text, speaker string) string {
	if speaker == "" {
		return text
	}
	name := regexp.QuoteMeta(speaker)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i),\s*` + name + `\s+(thinks?|says?)\.$`),
		regexp.MustCompile(`(?i)\b` + name + `\s+(thinks?|says?|believes?|feels?)\b`),
		regexp.MustCompile(`(?i)\b` + name + `'s\s+(opinion|thought|view|perspective)\b`),
	}
	for _, re := range patterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// splitSentences breaks text after runs of . ! ? that are followed by whitespace or
// the end of the text. Sentences keep their punctuation.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 == len(runes) || unicode.IsSpace(runes[j+1]) {
			if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = j + 1
		}
		i = j
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func truncateWords(text string, maxWords int) string {
	if maxWords <= 0 || len(strings.Fields(text)) <= maxWords {
		return text
	}

	kept := make([]string, 0)
	count := 0
	for _, sentence := range splitSentences(text) {
		n := len(strings.Fields(sentence))
		if count+n > maxWords {
			break
		}
		kept = append(kept, sentence)
		count += n
	}
	if len(kept) > 0 && endsWithTerminal(kept[len(kept)-1]) {
		return strings.Join(kept, " ")
	}
	return strings.Join(strings.Fields(text)[:maxWords], " ") + "..."
}

func truncateChars(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 3 || len(runes) <= maxChars {
		return text
	}
	head := runes[:maxChars]
	for i := len(head) - 1; i > 0; i-- {
		if isTerminal(head[i]) {
			return string(head[:i+1])
		}
	}
	return strings.TrimSpace(string(runes[:maxChars-3])) + "..."
}

func capitalize(text string) string {
	first, size := utf8.DecodeRuneInString(text)
	if !unicode.IsLower(first) {
		return text
	}
	return string(unicode.ToUpper(first)) + text[size:]
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func endsWithTerminal(text string) bool {
	last, _ := utf8.DecodeLastRuneInString(text)
	return isTerminal(last)
}

// =============================================================================
// CORRUPTIONS
// =============================================================================

var contractions = []struct {
	from *regexp.Regexp
	to   string
}{
	{regexp.MustCompile(`(?i)\byou are\b`), "you're"},
	{regexp.MustCompile(`\bI am\b`), "I'm"},
	{regexp.MustCompile(`(?i)\bcannot\b`), "can't"},
	{regexp.MustCompile(`(?i)\bdo not\b`), "don't"},
	{regexp.MustCompile(`(?i)\bthat is\b`), "that's"},
}

// corrupt applies kind to text. ok is false when the text offers nothing to corrupt,
// in which case the line goes out with plain normalization.
func (h *Humanizer) corrupt(text string, kind Corruption) (string, bool) {
	switch kind {
	case CorruptionFirstSentence:
		sentences := splitSentences(text)
		if len(sentences) > 1 {
			return sentences[0], true
		}

	case CorruptionContraction:
		for _, c := range contractions {
			if loc := c.from.FindStringIndex(text); loc != nil {
				return text[:loc[0]] + c.to + text[loc[1]:], true
			}
		}

	case CorruptionDropPunctuation:
		if endsWithTerminal(text) {
			if out := strings.TrimRight(text, ".!?"); out != "" {
				return out, true
			}
		}

	case CorruptionLowercaseStart:
		first, size := utf8.DecodeRuneInString(text)
		if unicode.IsUpper(first) {
			return string(unicode.ToLower(first)) + text[size:], true
		}

	case CorruptionDoubledLetter:
		words := strings.Split(text, " ")
		for i, w := range words {
			if len(w) <= 3 || !isASCIIWord(w) {
				continue
			}
			at := h.rng.Intn(len(w))
			words[i] = w[:at+1] + w[at:]
			return strings.Join(words, " "), true
		}

	case CorruptionEllipsis:
		if endsWithTerminal(text) {
			if out := strings.TrimRight(text, ".!?"); out != "" {
				return out + "...", true
			}
		}
	}
	return text, false
}

func isASCIIWord(w string) bool {
	for i := 0; i < len(w); i++ {
		c := w[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
