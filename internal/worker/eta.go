package worker

import "time"

// EstimateRemaining projects the time left for a pipeline of totalStages
// from the active durations of the stages already completed. With no history
// every remaining stage is assumed to take fallback.
func EstimateRemaining(completed []time.Duration, totalStages int, fallback time.Duration) time.Duration {
	remaining := totalStages - len(completed)
	if remaining <= 0 {
		return 0
	}
	if len(completed) == 0 {
		return fallback * time.Duration(remaining)
	}
	var sum time.Duration
	for _, d := range completed {
		sum += d
	}
	return sum / time.Duration(len(completed)) * time.Duration(remaining)
}

// stageClock measures active stage time. Time spent paused is excluded.
type stageClock struct {
	now         func() time.Time
	started     time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	done        []time.Duration
}

func newStageClock(now func() time.Time) *stageClock {
	if now == nil {
		now = time.Now
	}
	return &stageClock{now: now}
}

func (c *stageClock) start() {
	c.started = c.now()
	c.pausedAt = time.Time{}
	c.pausedTotal = 0
}

func (c *stageClock) pause() {
	if c.pausedAt.IsZero() {
		c.pausedAt = c.now()
	}
}

func (c *stageClock) resume() {
	if !c.pausedAt.IsZero() {
		c.pausedTotal += c.now().Sub(c.pausedAt)
		c.pausedAt = time.Time{}
	}
}

// finish closes the running stage and records its active duration.
func (c *stageClock) finish() time.Duration {
	c.resume()
	d := c.now().Sub(c.started) - c.pausedTotal
	if d < 0 {
		d = 0
	}
	c.done = append(c.done, d)
	return d
}

// eta estimates what is left, in whole seconds, counting the running stage as
// not yet completed.
func (c *stageClock) eta(totalStages int, fallback time.Duration) int {
	d := EstimateRemaining(c.done, totalStages, fallback)
	return int((d + time.Second/2) / time.Second)
}
