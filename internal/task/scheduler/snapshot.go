package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	tz := s.cfg.Timezone
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	s.mu.Unlock()

	if loc == nil {
		loc = time.Local
	}
	if tz == "" {
		tz = loc.String()
	}

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout, StartupSpread: d.startupSpread}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		d.stats.mu.Lock()
		it.Runs = d.stats.runs
		it.Failures = d.stats.failures
		it.LastDuration = d.stats.lastTook
		it.LastError = d.stats.lastErr
		if it.Prev.IsZero() {
			it.Prev = d.stats.lastRun
		}
		d.stats.mu.Unlock()
		items = append(items, it)
	}
	return Snapshot{Running: c != nil, Timezone: tz, Schedules: items}
}
