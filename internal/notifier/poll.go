package notifier

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"time"

	"workflow/internal/classroom"
	"workflow/internal/domain"
	"workflow/internal/eventbus"
	"workflow/internal/registry"
	logx "workflow/pkg/logx"
)

// Poll refreshes and evaluates every registration once.
func (s *Service) Poll(ctx context.Context) Report {
	cfg, _, _ := s.snapshot()
	cycle, log := newCycle("poll", s.log)
	rep := Report{Cycle: cycle, Started: s.now()}

	ids := clientIDs(s.reg.All())
	rep.Results = forEach(ctx, ids, cfg.Workers, func(ctx context.Context, id string) RecipientResult {
		rctx, cancel := context.WithTimeout(ctx, cfg.RecipientTimeout)
		defer cancel()
		return s.pollOne(rctx, id, log)
	})
	rep.Took = time.Since(rep.Started)

	enq := 0
	for _, r := range rep.Results {
		enq += r.Enqueued
	}
	s.count(func(st *Stats) {
		st.Polls++
		st.Enqueued += uint64(enq)
		st.LastPoll = rep.Started
	})
	log.Info("poll finished",
		logx.Int("recipients", len(ids)),
		logx.Int("enqueued", enq),
		logx.Int("skipped", rep.Count(OutcomeSkipped)),
		logx.Duration("took", rep.Took),
	)
	return rep
}

func (s *Service) pollOne(ctx context.Context, id string, log logx.Logger) RecipientResult {
	res := RecipientResult{ClientID: id}
	rec, ok := s.reg.Get(id)
	if !ok {
		res.Outcome = OutcomeSkipped
		res.Err = registry.ErrNotFound
		return res
	}

	var fresh []domain.Assignment
	refetched := false
	if rec.RefreshToken != "" && s.auth != nil && s.fetcher != nil {
		list, err := s.refetch(ctx, rec.RefreshToken)
		if err != nil {
			res.Outcome = OutcomeSkipped
			res.Err = err
			lvl := log.Warn
			if errors.Is(err, classroom.ErrAuthExpired) {
				lvl = log.Info
			}
			lvl("recipient refresh skipped", logx.String("client_id", id), logx.Err(err))
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeRecipientErr, Data: eventbus.Recipient{ClientID: id, UserID: rec.UserID, Reason: err.Error()}})
			return res
		}
		fresh, refetched = list, true
	}

	_, pol, _ := s.snapshot()
	now := s.now()
	var added []domain.QueuedNotification
	replaced := false
	err := s.reg.Update(ctx, id, func(cur *domain.Registration) error {
		added, replaced = nil, false
		// The fetch ran against rec's credential. If the record changed hands
		// meanwhile, the fetched list belongs to somebody else.
		if refetched && cur.RefreshToken == rec.RefreshToken && !reflect.DeepEqual(cur.Assignments, fresh) {
			cur.Assignments = slices.Clone(fresh)
			replaced = true
		}
		var err error
		added, err = pol.Enqueue(cur, now)
		if err != nil {
			return err
		}
		if !replaced && len(added) == 0 {
			return registry.ErrSkip
		}
		return nil
	})
	if err != nil {
		res.Outcome = OutcomeSkipped
		res.Err = err
		if !errors.Is(err, registry.ErrNotFound) {
			log.Warn("recipient evaluate failed", logx.String("client_id", id), logx.Err(err))
		}
		return res
	}

	res.Enqueued = len(added)
	switch {
	case len(added) > 0:
		res.Outcome = OutcomeEnqueued
	case replaced:
		res.Outcome = OutcomeRefreshed
	default:
		res.Outcome = OutcomeUnchanged
	}
	for _, n := range added {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeEnqueued, Data: eventbus.Delivery{ClientID: id, DedupeKey: n.DedupeKey}})
		log.Debug("reminder queued", logx.String("client_id", id), logx.String("key", n.DedupeKey))
	}
	return res
}

func (s *Service) refetch(ctx context.Context, refreshToken string) ([]domain.Assignment, error) {
	token, err := s.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, token)
}

func clientIDs(recs []domain.Registration) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ClientID
	}
	return ids
}
