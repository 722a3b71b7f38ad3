package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/metrics"
	"github.com/GoatGit/semibot/internal/store"
	"github.com/GoatGit/semibot/internal/types"
)

// replayBatchLimit caps how many historical events one ReplayByType call
// pulls from the store.
const replayBatchLimit = 1000

// ReplayManager re-runs stored events through the rule engine without
// re-persisting them, so rule changes can be exercised against history.
type ReplayManager struct {
	store  *store.Store
	engine *RulesEngine
	logger zerolog.Logger
}

func newReplayManager(st *store.Store, engine *RulesEngine) *ReplayManager {
	return &ReplayManager{
		store:  st,
		engine: engine,
		logger: log.WithComponent("replay"),
	}
}

// ReplayEvent loads one event by id and runs it through the engine. An
// unknown id yields an empty result list and no error.
func (r *ReplayManager) ReplayEvent(ctx context.Context, eventID string) ([]types.RuleExecutionResult, error) {
	ev, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, types.ErrEventNotFound) {
			r.logger.Info().
				Str("event", "replay.unknown_event").
				Str("event_id", eventID).
				Msg("nothing to replay")
			return []types.RuleExecutionResult{}, nil
		}
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}

	metrics.EventsReplayed.Inc()
	return r.engine.HandleEvent(ctx, ev, false)
}

// ReplayByType replays every stored event of the given type created at or
// after since (zero since means no lower bound) and returns how many were
// replayed.
func (r *ReplayManager) ReplayByType(ctx context.Context, eventType string, since time.Time) (int, error) {
	events, err := r.store.ListEvents(ctx, replayBatchLimit, eventType, since)
	if err != nil {
		return 0, fmt.Errorf("list events for replay: %w", err)
	}

	// The store lists newest-first; replay runs oldest-first.
	count := 0
	for i := len(events) - 1; i >= 0; i-- {
		if _, err := r.engine.HandleEvent(ctx, &events[i], false); err != nil {
			return count, fmt.Errorf("replay %s: %w", events[i].EventID, err)
		}
		metrics.EventsReplayed.Inc()
		count++
	}

	r.logger.Info().
		Str("event", "replay.batch_done").
		Str("event_type", eventType).
		Int("count", count).
		Msg("historical events replayed")
	return count, nil
}
