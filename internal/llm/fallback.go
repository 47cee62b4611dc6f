package llm

import (
	"github.com/scythe504/whos-human-backend/internal/random"
)

// FallbackMessages stand in for a chat line when generation fails.
var FallbackMessages = []string{
	"That's a really good point! I hadn't thought about it that way before.",
	"Oh interesting! I actually see it a bit differently based on my experience.",
	"Wait, that's fascinating. Can you explain more about what you mean?",
	"I totally agree with you on that. Anyone else feel the same way?",
	"Hmm, I'm not sure I agree but I see where you're coming from!",
}

// Vote reasonings used when an AI votes without evidence to cite.
const (
	ReasoningHunch     = "Just a hunch."
	ReasoningGut       = "Going with my gut."
	ReasoningIntuition = "Making a guess based on intuition."
)

func FallbackMessage(src random.Source) string {
	return random.Pick(src, FallbackMessages)
}
