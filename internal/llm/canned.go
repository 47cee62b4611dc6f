package llm

import (
	"context"

	"github.com/scythe504/whos-human-backend/internal/random"
)

var cannedReplies = []string{
	"I think the practical option makes the most sense here, because it keeps everyone comfortable and still leaves room for a little adventure later on.",
	"Honestly, I see both sides of this, but the long-term consequences matter more to me than whatever feels exciting in the moment.",
	"Here's another angle worth considering: timing is crucial, and we cannot delay this decision much longer without making things harder for everyone.",
	"I agree with the general direction, however we should also think about the cost before we commit to anything this big together.",
	"That is a fair point, and it reminds me that the simplest plan usually works best when a group has to agree quickly on something.",
	"I would lean toward the bold choice, since playing it safe every single time tends to make these conversations pretty forgettable in the end.",
	"Personally, I value comfort and routine, so I would pick the option that keeps things predictable and lets everyone relax a little more.",
	"Let me push back slightly: the popular answer is not always the right one, and we should test our assumptions before agreeing too fast.",
}

// Canned is an offline Generator that answers from a fixed pool. It lets the game
// run without a configured backend.
type Canned struct {
	rng random.Source
}

func NewCanned(rng random.Source) *Canned {
	return &Canned{rng: rng}
}

func (c *Canned) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return random.Pick(c.rng, cannedReplies), nil
}
