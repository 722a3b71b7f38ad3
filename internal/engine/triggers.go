package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/metrics"
	"github.com/GoatGit/semibot/internal/types"
)

const triggerSource = "trigger-scheduler"

// emitFunc routes a synthesized event into the engine.
type emitFunc func(ctx context.Context, ev *types.Event) error

// Scheduler owns the periodic trigger loops: at most one heartbeat plus any
// number of cron jobs. Loops are joined on StopTriggers; none outlive it.
type Scheduler struct {
	emit   emitFunc
	logger zerolog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	loopCtx   context.Context
	heartbeat bool
}

// NewScheduler constructs a Scheduler emitting through emit.
func NewScheduler(emit emitFunc) *Scheduler {
	return &Scheduler{
		emit:   emit,
		logger: log.WithComponent("triggers"),
	}
}

// ensureGroupLocked lazily creates the shared loop lifecycle. Caller holds mu.
func (s *Scheduler) ensureGroupLocked() {
	if s.group != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, s.loopCtx = errgroup.WithContext(ctx)
}

// StartHeartbeat begins emitting health.heartbeat.tick every interval with
// {"trigger_kind":"heartbeat"} merged under the payload template. Returns
// false when a heartbeat is already running or the interval is not positive.
func (s *Scheduler) StartHeartbeat(interval time.Duration, payload map[string]any) bool {
	if interval <= 0 {
		s.logger.Warn().
			Str("event", "trigger.invalid_interval").
			Dur("interval", interval).
			Msg("heartbeat not started")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeat {
		return false
	}
	s.heartbeat = true
	s.ensureGroupLocked()

	ctx := s.loopCtx
	s.group.Go(func() error {
		s.tickLoop(ctx, "heartbeat", types.EventTypeHeartbeat, interval, mergePayload("trigger_kind", "heartbeat", payload))
		return nil
	})

	s.logger.Info().
		Str("event", "trigger.heartbeat_started").
		Dur("interval", interval).
		Msg("heartbeat loop running")
	return true
}

// StartCronJobs starts one loop per job with a parseable schedule and
// returns how many were started. Jobs with unsupported schedules are
// skipped and logged, never fatal.
func (s *Scheduler) StartCronJobs(jobs []config.CronJob) int {
	started := 0
	for _, job := range jobs {
		interval, err := ParseSchedule(job.Schedule)
		if err != nil {
			s.logger.Warn().
				Str("event", "trigger.schedule_skipped").
				Str("trigger", job.Name).
				Str("schedule", job.Schedule).
				Err(err).
				Msg("cron job not started")
			continue
		}

		job := job
		s.mu.Lock()
		s.ensureGroupLocked()
		ctx := s.loopCtx
		s.group.Go(func() error {
			s.tickLoop(ctx, job.Name, job.EventType, interval, mergePayload("trigger_name", job.Name, job.Payload))
			return nil
		})
		s.mu.Unlock()
		started++

		s.logger.Info().
			Str("event", "trigger.cron_started").
			Str("trigger", job.Name).
			Str("schedule", job.Schedule).
			Dur("interval", interval).
			Msg("cron loop running")
	}
	return started
}

// StopTriggers cancels every loop and waits for in-flight iterations to
// finish. Safe to call when nothing is running.
func (s *Scheduler) StopTriggers() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.cancel, s.group, s.loopCtx = nil, nil, nil
	s.heartbeat = false
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()

	s.logger.Info().
		Str("event", "trigger.stopped").
		Msg("all trigger loops joined")
}

// tickLoop emits one event per tick until cancelled. Emit failures are
// logged and the loop keeps ticking.
func (s *Scheduler) tickLoop(ctx context.Context, name, eventType string, interval time.Duration, template map[string]any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev := &types.Event{
				EventType: eventType,
				Source:    triggerSource,
				Payload:   clonePayload(template),
			}
			if err := s.emit(ctx, ev); err != nil {
				s.logger.Warn().
					Str("event", "trigger.emit_failed").
					Str("trigger", name).
					Str("event_type", eventType).
					Err(err).
					Msg("trigger tick not persisted")
				continue
			}
			metrics.TriggerTicks.WithLabelValues(name).Inc()
		}
	}
}

// mergePayload lays the trigger marker under the user payload; the payload
// wins on key collision.
func mergePayload(markerKey, markerValue string, payload map[string]any) map[string]any {
	merged := make(map[string]any, len(payload)+1)
	merged[markerKey] = markerValue
	for k, v := range payload {
		merged[k] = v
	}
	return merged
}

// clonePayload gives each tick its own payload map, since persisted events
// must not share mutable state with the template.
func clonePayload(template map[string]any) map[string]any {
	payload := make(map[string]any, len(template))
	for k, v := range template {
		payload[k] = v
	}
	return payload
}
