// Package archive keeps finished games in Postgres.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/store"
)

const recordTimeout = 5 * time.Second

// Summary is what the archive keeps of a finished game.
type Summary struct {
	GameID       string                       `json:"game_id"`
	PlayerName   string                       `json:"player_name"`
	Difficulty   internal.Difficulty          `json:"difficulty"`
	Pace         internal.Pace                `json:"pace"`
	Theme        string                       `json:"theme"`
	HumanWon     bool                         `json:"human_won"`
	RoundsPlayed int                          `json:"rounds_played"`
	Eliminations []internal.EliminationRecord `json:"eliminations"`
	FinishedAt   time.Time                    `json:"finished_at"`
}

// SummaryFromState builds a summary out of a store snapshot.
func SummaryFromState(state internal.GameState) Summary {
	return Summary{
		GameID:       state.ID,
		PlayerName:   state.Settings.PlayerName,
		Difficulty:   state.Settings.Difficulty,
		Pace:         state.Settings.Pace,
		Theme:        state.Settings.Theme,
		HumanWon:     state.Outcome.HumanWon,
		RoundsPlayed: state.Round,
		Eliminations: state.Eliminations,
		FinishedAt:   time.Now().UTC(),
	}
}

type Archive struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, log *zap.Logger) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	return &Archive{pool: pool, log: log}, nil
}

func (a *Archive) Close() {
	a.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id            TEXT PRIMARY KEY,
	player_name   TEXT NOT NULL,
	difficulty    TEXT NOT NULL,
	pace          TEXT NOT NULL,
	theme         TEXT NOT NULL,
	human_won     BOOLEAN NOT NULL,
	rounds_played INTEGER NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS eliminations (
	game_id        TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	round          INTEGER NOT NULL,
	eliminated_id  TEXT NOT NULL,
	was_human      BOOLEAN NOT NULL,
	votes          JSONB NOT NULL,
	human_analysis JSONB,
	PRIMARY KEY (game_id, round)
);`

// Migrate creates the tables if they do not exist.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// Record stores a summary. Recording the same game twice keeps the first copy.
func (a *Archive) Record(ctx context.Context, s Summary) error {
	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO games (id, player_name, difficulty, pace, theme, human_won, rounds_played, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			s.GameID, s.PlayerName, string(s.Difficulty), string(s.Pace), s.Theme, s.HumanWon, s.RoundsPlayed, s.FinishedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, rec := range s.Eliminations {
			votes := rec.Votes
			if votes == nil {
				votes = []internal.Vote{}
			}
			batch.Queue(`
				INSERT INTO eliminations (game_id, round, eliminated_id, was_human, votes, human_analysis)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				s.GameID, rec.Round, rec.EliminatedID, rec.WasHuman, votes, rec.Analysis)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("record game %s: %w", s.GameID, err)
	}
	return nil
}

// ErrNotArchived is returned by Get for unknown games.
var ErrNotArchived = errors.New("game not archived")

func (a *Archive) Get(ctx context.Context, gameID string) (Summary, error) {
	var s Summary
	var difficulty, pace string
	err := a.pool.QueryRow(ctx, `
		SELECT id, player_name, difficulty, pace, theme, human_won, rounds_played, finished_at
		FROM games WHERE id = $1`, gameID).
		Scan(&s.GameID, &s.PlayerName, &difficulty, &pace, &s.Theme, &s.HumanWon, &s.RoundsPlayed, &s.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotArchived, gameID)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("get game %s: %w", gameID, err)
	}
	s.Difficulty = internal.Difficulty(difficulty)
	s.Pace = internal.Pace(pace)

	rows, err := a.pool.Query(ctx, `
		SELECT round, eliminated_id, was_human, votes, human_analysis
		FROM eliminations WHERE game_id = $1 ORDER BY round`, gameID)
	if err != nil {
		return Summary{}, fmt.Errorf("get eliminations %s: %w", gameID, err)
	}
	s.Eliminations, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (internal.EliminationRecord, error) {
		var rec internal.EliminationRecord
		err := row.Scan(&rec.Round, &rec.EliminatedID, &rec.WasHuman, &rec.Votes, &rec.Analysis)
		return rec, err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("scan eliminations %s: %w", gameID, err)
	}
	return s, nil
}

// Stats are aggregate results over every archived game.
type Stats struct {
	Games     int `json:"games"`
	HumanWins int `json:"human_wins"`
}

func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := a.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE human_won) FROM games`).
		Scan(&st.Games, &st.HumanWins)
	if err != nil {
		return Stats{}, fmt.Errorf("archive stats: %w", err)
	}
	return st, nil
}

// Watch records the game held by s once it publishes game_over. The goroutine
// exits when that happens or when the store is closed.
func (a *Archive) Watch(s *store.GameStore) {
	events, cancel := s.Subscribe(64)
	go func() {
		defer cancel()
		for evt := range events {
			if evt.Type != internal.EventGameOver {
				continue
			}
			ctx, done := context.WithTimeout(context.Background(), recordTimeout)
			err := a.Record(ctx, SummaryFromState(s.Snapshot()))
			done()
			if err != nil {
				a.log.Error("[ArchiveGame] failed to record game", zap.String("game", s.ID()), zap.Error(err))
			} else {
				a.log.Info("[ArchiveGame] game recorded", zap.String("game", s.ID()))
			}
			return
		}
	}()
}
