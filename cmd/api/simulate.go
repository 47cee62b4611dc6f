package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/game"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/store"
)

var simOpts struct {
	name       string
	difficulty string
	pace       string
	theme      string
	chat       time.Duration
	seed       int64
	gemini     bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a headless game with a scripted human",
	Long: `Runs a full game in-process and prints the transcript, suspicions and votes.
Delays are compressed so a game finishes in seconds. Uses canned AI replies unless
--gemini is given.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.name, "name", "Robin", "human player name")
	f.StringVar(&simOpts.difficulty, "difficulty", "medium", "easy, medium or hard")
	f.StringVar(&simOpts.pace, "pace", "fast", "relaxed, normal or fast")
	f.StringVar(&simOpts.theme, "theme", "pizza-debate", "theme id")
	f.DurationVar(&simOpts.chat, "chat", 3*time.Second, "chat phase length")
	f.Int64Var(&simOpts.seed, "seed", 0, "random seed (0 picks one)")
	f.BoolVar(&simOpts.gemini, "gemini", false, "generate AI lines with Gemini")
}

var scriptedHuman = []string{
	"honestly i think pineapple is fine but only with ham lol",
	"I would say the simplest option usually wins, but I am open to being convinced otherwise by a good argument.",
	"idk, delivery is easier but homemade tastes better tbh",
}

// compressed scales every delay down so a whole game takes seconds.
func compressed(chat time.Duration) game.Settings {
	s := game.DefaultSettings()
	s.FirstMessageDelay = 100 * time.Millisecond
	s.RetryBackoff = 100 * time.Millisecond
	s.TimerTick = 500 * time.Millisecond
	for d, ds := range s.Difficulty {
		ds.ChatDuration = chat
		ds.DiscussionDuration = chat
		s.Difficulty[d] = ds
	}
	for p, ps := range s.Pace {
		ps.Base /= 20
		ps.Jitter /= 20
		s.Pace[p] = ps
	}
	return s
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	seed := simOpts.seed
	if seed == 0 {
		var err error
		if seed, err = random.NewSeed(); err != nil {
			return err
		}
	}
	rng := random.NewLocked(seed)

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	gen, err := newGenerator(ctx, rng, !simOpts.gemini)
	if err != nil {
		return err
	}

	games := game.NewManager(game.ManagerConfig{
		Generator:      gen,
		Catalog:        catalog,
		Settings:       compressed(simOpts.chat),
		Rand:           rng,
		Log:            logger,
		AIParticipants: cfg.AIParticipants,
	})
	defer games.Close()

	ctrl, err := games.NewGame(internal.GameSettings{
		PlayerName: simOpts.name,
		Difficulty: internal.Difficulty(simOpts.difficulty),
		Pace:       internal.Pace(simOpts.pace),
		Theme:      simOpts.theme,
	})
	if err != nil {
		return err
	}
	s := ctrl.Store()
	if _, release, err := games.Attach(s.ID()); err == nil {
		defer release()
	}
	events, cancel := s.Subscribe(1024)
	defer cancel()

	fmt.Fprintf(out, "game %s (seed %d)\n", s.ID(), seed)
	for _, p := range s.Participants() {
		fmt.Fprintf(out, "  %-8s %s\n", p.Name, p.Bio)
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	for {
		round := s.Round()
		fmt.Fprintf(out, "\n== Round %d: %s\n", round, s.Prompt())

		if _, err := ctrl.SubmitMessage(ctx, scriptedHuman[(round-1)%len(scriptedHuman)]); err != nil {
			return err
		}
		if err := waitForPhase(ctx, events, internal.PhaseDiscussion, 2*simOpts.chat); err != nil {
			return err
		}

		targets := s.ActiveAIs()
		if err := ctrl.SubmitSuspicion(ctx, targets[0].ID, "Something about their tone feels off to me."); err != nil {
			return err
		}
		printRound(out, s, round)

		result, err := ctrl.CastVote(ctx, random.Pick(rng, targets).ID)
		if err != nil {
			return err
		}
		printResult(out, s, result)

		if err := ctrl.Advance(ctx); err != nil {
			return err
		}
		if s.Phase() == internal.PhaseReveal {
			break
		}
	}

	if s.Outcome().HumanWon {
		fmt.Fprintln(out, "\nThe human survived every vote.")
	} else {
		fmt.Fprintln(out, "\nThe human was found.")
	}
	return nil
}

func waitForPhase(ctx context.Context, events <-chan store.Event, phase internal.GamePhase, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("timed out waiting for %s", phase)
		case evt, ok := <-events:
			if !ok {
				return fmt.Errorf("game closed while waiting for %s", phase)
			}
			if data, isPhase := evt.Data.(internal.PhaseChangedData); isPhase && data.Phase == phase {
				return nil
			}
		}
	}
}

func printRound(out io.Writer, s *store.GameStore, round int) {
	for _, m := range s.RoundMessages(round) {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.Kind, m.ParticipantName, m.Content)
	}
}

func printResult(out io.Writer, s *store.GameStore, result internal.RoundResult) {
	for _, v := range s.RoundVotes(result.Round) {
		voter, _ := s.Participant(v.VoterID)
		target, _ := s.Participant(v.TargetID)
		fmt.Fprintf(out, "  vote %s -> %s %s\n", voter.Name, target.Name, v.Reasoning)
	}
	switch {
	case result.Tie:
		fmt.Fprintln(out, "  tie: nobody is eliminated")
	case result.EliminatedID != "":
		p, _ := s.Participant(result.EliminatedID)
		fmt.Fprintf(out, "  %s is eliminated (human: %t)\n", p.Name, p.IsHuman)
		if rec := result.Record; rec != nil && rec.Analysis != nil {
			for _, tip := range rec.Analysis.Tips {
				fmt.Fprintf(out, "  tip: %s\n", tip)
			}
		}
	}
}
