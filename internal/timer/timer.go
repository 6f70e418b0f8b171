// Package timer projects a running record into a live elapsed value.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
)

// State of a user's timer.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Status pairs the state with the open record while running.
type Status struct {
	State  State
	Record *model.Record
}

// StatusOf derives the state from the user's open record, if any.
func StatusOf(open *model.Record) Status {
	if open == nil || !open.IsOpen() {
		return Status{State: Stopped}
	}
	return Status{State: Running, Record: open}
}

// Effective hides the running record from views of any date other than today.
func Effective(active *model.Record, viewed calendar.Date, now time.Time) *model.Record {
	if active == nil || !calendar.IsToday(now, viewed) {
		return nil
	}
	return active
}

// Elapsed is the running time of active at now, zero when stopped.
func Elapsed(active *model.Record, now time.Time) time.Duration {
	if active == nil || !active.IsOpen() {
		return 0
	}
	return active.Duration(now)
}

// ErrNotRunning is returned when asked to watch a closed record.
var ErrNotRunning = errors.New("record is not running")

// Scheduler is the subset of the cron scheduler the projector needs.
type Scheduler interface {
	Every(interval time.Duration, job func()) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

// Projector recomputes the elapsed time of a running record on two cadences:
// a fast tick for the digits and a slow refresh for the timeline.
type Projector struct {
	sched   Scheduler
	tick    time.Duration
	refresh time.Duration
	now     func() time.Time
}

func NewProjector(sched Scheduler, tick, refresh time.Duration) *Projector {
	if tick <= 0 {
		tick = time.Second
	}
	if refresh <= 0 {
		refresh = time.Minute
	}
	return &Projector{sched: sched, tick: tick, refresh: refresh, now: time.Now}
}

// Watch schedules onTick every tick and onRefresh (optional) every refresh
// interval with the current elapsed time of rec. The returned stop function
// removes both jobs; after it returns no callback starts. It is idempotent.
func (p *Projector) Watch(rec model.Record, onTick, onRefresh func(time.Duration)) (func(), error) {
	if !rec.IsOpen() {
		return nil, ErrNotRunning
	}

	var stopped atomic.Bool
	var ids []cron.EntryID
	project := func(fn func(time.Duration)) func() {
		return func() {
			if stopped.Load() {
				return
			}
			fn(Elapsed(&rec, p.now()))
		}
	}

	stop := func() {
		stopped.Store(true)
		for _, id := range ids {
			p.sched.Remove(id)
		}
	}

	if onTick != nil {
		id, err := p.sched.Every(p.tick, project(onTick))
		if err != nil {
			return nil, fmt.Errorf("schedule tick: %w", err)
		}
		ids = append(ids, id)
	}
	if onRefresh != nil {
		id, err := p.sched.Every(p.refresh, project(onRefresh))
		if err != nil {
			stop()
			return nil, fmt.Errorf("schedule refresh: %w", err)
		}
		ids = append(ids, id)
	}

	var once sync.Once
	return func() { once.Do(stop) }, nil
}
