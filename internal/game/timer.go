package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/store"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

type phaseTimer struct {
	ctx      context.Context
	cancel   context.CancelFunc
	phase    internal.GamePhase
	start    time.Time
	duration time.Duration
	active   bool
}

// PhaseTimer runs at most one countdown per game. It publishes a timer_update event
// on every tick and calls onExpire once the deadline passes, unless it was cancelled.
type PhaseTimer struct {
	store *store.GameStore
	log   *zap.Logger
	tick  time.Duration

	mu      sync.Mutex
	current *phaseTimer
	wg      sync.WaitGroup
}

func NewPhaseTimer(s *store.GameStore, log *zap.Logger, tick time.Duration) *PhaseTimer {
	if tick <= 0 {
		tick = time.Second
	}
	return &PhaseTimer{store: s, log: log, tick: tick}
}

// Start replaces any running countdown.
func (t *PhaseTimer) Start(phase internal.GamePhase, duration time.Duration, onExpire func()) {
	t.Cancel()

	// --- Critical section ---
	t.mu.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	current := &phaseTimer{
		ctx:      ctx,
		cancel:   cancel,
		phase:    phase,
		start:    time.Now(),
		duration: duration,
		active:   true,
	}
	t.current = current
	t.wg.Add(1)
	t.mu.Unlock()
	// --- End critical section ---

	t.log.Debug("[StartPhaseTimer] timer started",
		zap.String("game", t.store.ID()),
		zap.String("phase", string(phase)),
		zap.Duration("duration", duration))

	go func() {
		defer t.wg.Done()
		defer cancel()

		ticker := time.NewTicker(t.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.broadcast(current)

			case <-ctx.Done():
				// A cancelled timer never fires, even if its deadline raced the cancel.
				t.mu.Lock()
				fire := current.active && errors.Is(ctx.Err(), context.DeadlineExceeded)
				current.active = false
				t.mu.Unlock()

				if fire {
					t.log.Debug("[StartPhaseTimer] timer expired",
						zap.String("game", t.store.ID()),
						zap.String("phase", string(phase)))
					t.store.Publish(internal.EventTimerUpdate, internal.TimerUpdateData{Phase: phase})
					t.wg.Add(1)
					go func() {
						defer t.wg.Done()
						onExpire()
					}()
				}
				return
			}
		}
	}()
}

func (t *PhaseTimer) broadcast(current *phaseTimer) {
	t.mu.Lock()
	if t.current != current || !current.active {
		t.mu.Unlock()
		return
	}
	remaining := max(current.duration-time.Since(current.start), 0)
	data := internal.TimerUpdateData{
		TimeRemaining: remaining.Milliseconds(),
		Phase:         current.phase,
		IsActive:      true,
	}
	t.mu.Unlock()

	t.store.Publish(internal.EventTimerUpdate, data)
}

// Cancel stops the running countdown without firing its callback.
func (t *PhaseTimer) Cancel() {
	t.mu.Lock()
	current := t.current
	if current == nil || !current.active {
		t.mu.Unlock()
		return
	}
	current.active = false
	current.cancel()
	phase := current.phase
	t.mu.Unlock()

	t.log.Debug("[CancelPhaseTimer] timer cancelled",
		zap.String("game", t.store.ID()),
		zap.String("phase", string(phase)))
	t.store.Publish(internal.EventTimerUpdate, internal.TimerUpdateData{Phase: phase})
}

// TimeRemaining is zero when no countdown is active.
func (t *PhaseTimer) TimeRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || !t.current.active {
		return 0
	}
	return max(t.current.duration-time.Since(t.current.start), 0)
}

// Wait blocks until every timer goroutine, expiry callbacks included, has returned.
func (t *PhaseTimer) Wait() {
	t.wg.Wait()
}
