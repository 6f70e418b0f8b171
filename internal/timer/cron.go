package timer

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"time-tracker/internal/calendar"
)

// Cron runs jobs in the reporting zone. A panicking job is recovered and
// logged; a run is skipped while the previous run of the same job is busy.
type Cron struct {
	cron *cron.Cron
}

func NewCron(log *logrus.Logger) *Cron {
	if log == nil {
		log = logrus.StandardLogger()
	}
	logger := cron.PrintfLogger(log.WithField("component", "cron"))
	return &Cron{
		cron: cron.New(
			cron.WithLocation(calendar.Zone),
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Daily registers job at the given HH:MM of every reporting day.
func (c *Cron) Daily(at string, job func()) (cron.EntryID, error) {
	spec, err := dailySpec(at)
	if err != nil {
		return 0, err
	}
	return c.cron.AddFunc(spec, job)
}

// Every registers job to run every interval. Intervals are whole seconds,
// one at least.
func (c *Cron) Every(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", interval)
	}
	interval = interval.Truncate(time.Second)
	if interval < time.Second {
		interval = time.Second
	}
	return c.cron.Schedule(cron.Every(interval), cron.FuncJob(job)), nil
}

// Remove cancels a job; unknown ids are ignored.
func (c *Cron) Remove(id cron.EntryID) {
	c.cron.Remove(id)
}

func (c *Cron) Len() int {
	return len(c.cron.Entries())
}

func (c *Cron) Start() {
	c.cron.Start()
}

// Stop waits for running jobs to finish.
func (c *Cron) Stop() {
	<-c.cron.Stop().Done()
}

// dailySpec turns HH:MM into a seconds-first cron spec.
func dailySpec(at string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(at))
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", at)
	}
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}
