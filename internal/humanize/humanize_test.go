package humanize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/whos-human-backend/internal/random"
)

func never() *Humanizer {
	return New(&random.Sequence{Floats: []float64{0.99}}, DefaultOptions())
}

// forced always corrupts with the given kind.
func forced(kind Corruption, extra ...int) *Humanizer {
	ints := append([]int{int(kind) - 1}, extra...)
	return New(&random.Sequence{Floats: []float64{0}, Ints: ints}, DefaultOptions())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		speaker string
		want    string
	}{
		{name: "speaker label", raw: "Alex: I think we should stay on course.", speaker: "Alex", want: "I think we should stay on course."},
		{name: "lowercase speaker label", raw: "alex: stay on course", speaker: "Alex", want: "Stay on course."},
		{name: "wrapping quotes", raw: `"Coffee is better, obviously."`, speaker: "Sam", want: "Coffee is better, obviously."},
		{name: "curly quotes", raw: "“Tea wins every time!”", speaker: "Sam", want: "Tea wins every time!"},
		{name: "third person self reference", raw: "Honestly Casey thinks cardio matters more.", speaker: "Casey", want: "Honestly cardio matters more."},
		{name: "possessive self reference", raw: "In Riley's opinion the signal is worth it.", speaker: "Riley", want: "In the signal is worth it."},
		{name: "capitalize and terminate", raw: "delivery is easier", speaker: "Jamie", want: "Delivery is easier."},
		{name: "keeps question mark", raw: "Who brings the snacks?", speaker: "Jamie", want: "Who brings the snacks?"},
		{name: "other names untouched", raw: "Alex thinks so too.", speaker: "Sam", want: "Alex thinks so too."},
	}
	h := never()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Normalize(tt.raw, tt.speaker))
		})
	}
}

func TestNormalizeNeverReturnsEmpty(t *testing.T) {
	h := never()
	for _, raw := range []string{"", "   ", `""`, "Alex:", "Alex thinks"} {
		got := h.Normalize(raw, "Alex")
		assert.NotEmpty(t, got, "raw=%q", raw)
	}
}

func TestTruncatesAtSentenceBoundary(t *testing.T) {
	first := "I think the practical option makes the most sense because it keeps everyone comfortable and happy."
	second := "It also leaves room for a little adventure later on when everyone is rested and the weather finally improves for real."
	got := never().Normalize(first+" "+second, "Alex")

	assert.Equal(t, first, got)
	assert.LessOrEqual(t, len(strings.Fields(got)), 35)
}

func TestTruncatesWithoutBoundary(t *testing.T) {
	raw := strings.Repeat("word ", 50)
	got := never().Normalize(raw, "Alex")

	assert.True(t, strings.HasSuffix(got, "..."), got)
	assert.Len(t, strings.Fields(got), 35)
}

func TestTruncatesCharacters(t *testing.T) {
	raw := strings.Repeat("abcdefghij", 25)
	got := never().Normalize(raw, "Alex")

	assert.LessOrEqual(t, len([]rune(got)), 200)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestOutputFitsCharacterLimit(t *testing.T) {
	full := strings.Repeat("pizza ", 32) + "tonight."
	unterminated := strings.Repeat("pizza ", 32) + "tonights"
	require.Len(t, []rune(full), 200)
	require.Len(t, []rune(unterminated), 200)

	tests := []struct {
		name string
		h    *Humanizer
		raw  string
		kind Corruption
	}{
		{name: "doubled letter", h: forced(CorruptionDoubledLetter, 0), raw: full, kind: CorruptionDoubledLetter},
		{name: "ellipsis", h: forced(CorruptionEllipsis), raw: full, kind: CorruptionEllipsis},
		{name: "closing period", h: never(), raw: unterminated, kind: CorruptionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.h.Humanize(tt.raw, "Alex")
			assert.Equal(t, tt.kind, res.Corruption)
			assert.LessOrEqual(t, len([]rune(res.Text)), 200, res.Text)
		})
	}
}

func TestHumanizeCorruptions(t *testing.T) {
	const base = "I think that is fine. You are right about the sauce."
	tests := []struct {
		name string
		h    *Humanizer
		raw  string
		want string
		kind Corruption
	}{
		{name: "first sentence", h: forced(CorruptionFirstSentence), raw: base, want: "I think that is fine.", kind: CorruptionFirstSentence},
		{name: "contraction", h: forced(CorruptionContraction), raw: "I think that is fine.", want: "I think that's fine.", kind: CorruptionContraction},
		{name: "contraction keeps capital", h: forced(CorruptionContraction), raw: "You are right about the sauce.", want: "You're right about the sauce.", kind: CorruptionContraction},
		{name: "drop punctuation", h: forced(CorruptionDropPunctuation), raw: base, want: "I think that is fine. You are right about the sauce", kind: CorruptionDropPunctuation},
		{name: "lowercase start", h: forced(CorruptionLowercaseStart), raw: "Pizza is great.", want: "pizza is great.", kind: CorruptionLowercaseStart},
		{name: "doubled letter", h: forced(CorruptionDoubledLetter, 0), raw: "Pizza is great.", want: "PPizza is great.", kind: CorruptionDoubledLetter},
		{name: "ellipsis", h: forced(CorruptionEllipsis), raw: "Pizza is great!", want: "Pizza is great...", kind: CorruptionEllipsis},
		{name: "not applicable", h: forced(CorruptionFirstSentence), raw: "Pizza is great.", want: "Pizza is great.", kind: CorruptionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.h.Humanize(tt.raw, "Alex")
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, tt.kind, res.Corruption)
		})
	}
}

func TestHumanizeAppliesAtMostOneCorruption(t *testing.T) {
	rng := random.NewLocked(42)
	h := New(rng, Options{MaxWords: 35, MaxChars: 200, CorruptionProbability: 1})

	for i := 0; i < 200; i++ {
		res := h.Humanize("You are right. I am sure that is the plan.", "Alex")
		require.NotEmpty(t, res.Text)

		switch res.Corruption {
		case CorruptionLowercaseStart:
			assert.Equal(t, "you", res.Text[:3])
		case CorruptionDropPunctuation:
			assert.False(t, endsWithTerminal(res.Text))
		case CorruptionEllipsis:
			assert.True(t, strings.HasSuffix(res.Text, "..."))
		default:
			assert.True(t, endsWithTerminal(res.Text), res.Text)
			assert.Equal(t, "Y", res.Text[:1])
		}
	}
}

func TestCorruptionProbability(t *testing.T) {
	rng := random.NewLocked(7)
	h := New(rng, DefaultOptions())

	corrupted := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		if h.Humanize("I think that is fine. You are right.", "Alex").Corruption != CorruptionNone {
			corrupted++
		}
	}
	assert.InDelta(t, 0.2, float64(corrupted)/trials, 0.03)
}
