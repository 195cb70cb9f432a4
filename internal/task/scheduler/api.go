package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "workflow/pkg/logx"
)

var (
	ErrNoName   = errors.New("name required")
	ErrNotFound = errors.New("schedule not found")
)

// Add parses schedule and registers job under name, replacing any previous
// schedule with the same name.
//
// Supported schedule formats:
//   - Cron: "*/5 * * * *", "55 * * * *", "@hourly", "@every 55m"
//   - Interval duration: "55m", "2h30m"
//   - Interval HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
func (s *Service) Add(name, schedule string, timeout time.Duration, job Job) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoName
	}
	if job == nil {
		return fmt.Errorf("schedule %q: job required", name)
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	spec := ps.Cron
	if ps.Kind == SpecInterval {
		spec = "@every " + ps.Every.String()
	} else if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)

	d := scheduleDef{
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		stats:   &runStats{},
	}
	d.wrapped = s.wrapLocked(&d)
	s.defs = append(s.defs, d)
	if s.c == nil {
		// registered on Start
		return nil
	}
	last := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(last); err != nil {
		s.defs = s.defs[:len(s.defs)-1]
		return err
	}
	args := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout)}
	if next := s.previewNextRunsLocked(spec, 3); next != "" {
		args = append(args, logx.String("next", next))
	}
	s.log.Debug("schedule registered", args...)
	return nil
}

// Remove drops the schedule. Runs already in flight finish normally.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

// RunNow triggers name once in the background, sharing the overlap guard with
// scheduled runs.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	var wrapped cron.Job
	for i := range s.defs {
		if s.defs[i].name == name {
			wrapped = s.defs[i].wrapped
			break
		}
	}
	s.mu.Unlock()
	if wrapped == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	go wrapped.Run()
	return nil
}

func (s *Service) removeLocked(name string) bool {
	for i := range s.defs {
		if s.defs[i].name != name {
			continue
		}
		if s.c != nil && s.defs[i].entryID != 0 {
			s.c.Remove(s.defs[i].entryID)
		}
		s.defs = append(s.defs[:i], s.defs[i+1:]...)
		return true
	}
	return false
}

// wrapLocked builds the job chain once per definition so that the skip guard
// is shared between cron triggers and RunNow.
func (s *Service) wrapLocked(d *scheduleDef) cron.Job {
	cl := cronLogger{log: s.log}
	name, timeout, job, stats := d.name, d.timeout, d.job, d.stats
	inner := cron.FuncJob(func() {
		s.mu.Lock()
		base := s.base
		if base.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.inflight.Add(1)
		s.mu.Unlock()
		defer s.inflight.Done()
		ctx := base
		cancel := func() {}
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(base, timeout)
		}
		defer cancel()

		start := time.Now()
		var err error
		defer func() {
			stats.record(start, time.Since(start), err)
		}()
		err = job(ctx)
		if err != nil {
			s.log.Warn("job failed", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("job done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	})
	return cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(inner)
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	spec := strings.TrimSpace(d.spec)
	if strings.HasPrefix(spec, "@every") {
		every, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every")))
		if err == nil && every > 0 {
			loc := s.loc
			if loc == nil {
				loc = time.Local
			}
			sched, jitter := makeIntervalScheduleWithSpread(every, time.Now().In(loc), d.name)
			d.startupSpread = jitter
			d.entryID = s.c.Schedule(sched, d.wrapped)
			return nil
		}
	}
	d.startupSpread = 0
	eid, err := s.c.AddJob(spec, d.wrapped)
	if err == nil {
		d.entryID = eid
	}
	return err
}

// previewNextRunsLocked lists upcoming run times for debug logging.
func (s *Service) previewNextRunsLocked(spec string, n int) string {
	if !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return ""
	}
	t := time.Now().In(loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func (st *runStats) record(start time.Time, took time.Duration, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.runs++
	st.lastRun = start
	st.lastTook = took
	st.lastErr = ""
	if err != nil {
		st.failures++
		st.lastErr = err.Error()
	}
}
