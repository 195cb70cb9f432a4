package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "workflow/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"
}

// Job is one unit of scheduled work. The context is cancelled on timeout or Stop.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           Job
	entryID       cron.EntryID
	wrapped       cron.Job
	startupSpread time.Duration
	stats         *runStats
}

type runStats struct {
	mu       sync.Mutex
	runs     uint64
	failures uint64
	lastRun  time.Time
	lastTook time.Duration
	lastErr  string
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// base is cancelled by Stop; every run derives its context from it.
	base     context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

type ScheduleInfo struct {
	Name          string        `json:"name"`
	Spec          string        `json:"spec"`
	Timeout       time.Duration `json:"-"`
	Next          time.Time     `json:"next"`
	Prev          time.Time     `json:"prev"`
	Runs          uint64        `json:"runs"`
	Failures      uint64        `json:"failures"`
	LastDuration  time.Duration `json:"-"`
	LastError     string        `json:"lastError,omitempty"`
	StartupSpread time.Duration `json:"-"`
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
