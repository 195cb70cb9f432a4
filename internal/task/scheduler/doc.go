// Package scheduler triggers named jobs on cron specs or fixed intervals.
//
// Jobs never overlap themselves: a trigger that fires while the previous run
// of the same schedule is still in flight is skipped. Panics inside jobs are
// recovered and logged. RunNow shares the same guard, so a manual run and a
// scheduled run of one job cannot race.
package scheduler
