package notifier

import (
	"context"
	"errors"
	"time"

	"workflow/internal/domain"
	"workflow/internal/eventbus"
	"workflow/internal/push"
	"workflow/internal/registry"
	logx "workflow/pkg/logx"
)

// Drain sends at most one queued reminder to every registration whose drain
// interval has elapsed.
func (s *Service) Drain(ctx context.Context) Report {
	cfg, _, _ := s.snapshot()
	cycle, log := newCycle("drain", s.log)
	rep := Report{Cycle: cycle, Started: s.now()}

	var ids []string
	for _, rec := range s.reg.All() {
		if len(rec.NotificationQueue) > 0 {
			ids = append(ids, rec.ClientID)
		}
	}
	rep.Results = forEach(ctx, ids, cfg.Workers, func(ctx context.Context, id string) RecipientResult {
		rctx, cancel := context.WithTimeout(ctx, cfg.RecipientTimeout)
		defer cancel()
		return s.drainOne(rctx, id, cfg.DrainInterval, log)
	})
	rep.Took = time.Since(rep.Started)

	sent, dropped, gone := rep.Count(OutcomeSent), rep.Count(OutcomeDropped), rep.Count(OutcomeGone)
	s.count(func(st *Stats) {
		st.Drains++
		st.Sent += uint64(sent)
		st.Dropped += uint64(dropped)
		st.Gone += uint64(gone)
		st.LastDrain = rep.Started
	})
	if len(ids) > 0 {
		log.Info("drain finished",
			logx.Int("pending", len(ids)),
			logx.Int("sent", sent),
			logx.Int("dropped", dropped),
			logx.Int("gone", gone),
			logx.Int("throttled", rep.Count(OutcomeThrottled)),
			logx.Duration("took", rep.Took),
		)
	}
	return rep
}

func (s *Service) drainOne(ctx context.Context, id string, interval time.Duration, log logx.Logger) RecipientResult {
	res := RecipientResult{ClientID: id}
	rec, ok := s.reg.Get(id)
	if !ok {
		res.Outcome = OutcomeSkipped
		res.Err = registry.ErrNotFound
		return res
	}
	head, ok := rec.Head()
	if !ok {
		res.Outcome = OutcomeIdle
		return res
	}
	res.DedupeKey = head.DedupeKey
	if rec.LastQueueDrainAt > 0 && s.now().UnixMilli()-rec.LastQueueDrainAt < interval.Milliseconds() {
		res.Outcome = OutcomeThrottled
		return res
	}

	_, _, lim := s.snapshot()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			res.Outcome = OutcomeSkipped
			res.Err = err
			return res
		}
	}

	err := s.sender.Send(ctx, rec.Subscription, head.Payload)
	if errors.Is(err, push.ErrGone) {
		s.reg.Delete(ctx, id, "push endpoint gone")
		res.Outcome = OutcomeGone
		res.Err = err
		return res
	}

	sentAt := s.now().UnixMilli()
	uerr := s.reg.Update(ctx, id, func(cur *domain.Registration) error {
		h, ok := cur.Head()
		if !ok || h.DedupeKey != head.DedupeKey || h.EnqueuedAt != head.EnqueuedAt {
			// queue changed underneath us, e.g. an owner switch
			return registry.ErrSkip
		}
		cur.PopHead()
		if err == nil {
			cur.MarkNotified(head.DedupeKey, sentAt)
			cur.LastQueueDrainAt = sentAt
		}
		return nil
	})
	if uerr != nil && !errors.Is(uerr, registry.ErrNotFound) {
		log.Warn("queue update failed", logx.String("client_id", id), logx.Err(uerr))
	}

	if err != nil {
		res.Outcome = OutcomeDropped
		res.Err = err
		log.Warn("push failed; reminder dropped", logx.String("client_id", id), logx.String("key", head.DedupeKey), logx.Err(err))
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeFailed, Data: eventbus.Delivery{ClientID: id, DedupeKey: head.DedupeKey, Err: err.Error()}})
		return res
	}
	res.Outcome = OutcomeSent
	log.Debug("push sent", logx.String("client_id", id), logx.String("key", head.DedupeKey))
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeSent, Data: eventbus.Delivery{ClientID: id, DedupeKey: head.DedupeKey}})
	return res
}
