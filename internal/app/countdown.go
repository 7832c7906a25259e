package app

import (
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker used by Countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker is the production TickerFactory.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Countdown owns the goroutine that drives a session's timer.
// Exactly one goroutine runs per Countdown and it exits on Cancel or on expiry.
type Countdown struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartCountdown calls tick on every interval until tick reports expiry or the
// countdown is cancelled. expire runs once after expiry, after done is closed,
// so it may safely call Stop on the same countdown.
func StartCountdown(newTicker TickerFactory, interval time.Duration, tick func() bool, expire func()) *Countdown {
	c := &Countdown{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	t := newTicker(interval)
	go c.run(t, tick, expire)
	return c
}

func (c *Countdown) run(t Ticker, tick func() bool, expire func()) {
	for {
		select {
		case <-c.stop:
			t.Stop()
			close(c.done)
			return
		case <-t.C():
			if !tick() {
				continue
			}
			t.Stop()
			close(c.done)
			if expire != nil {
				expire()
			}
			return
		}
	}
}

// Cancel signals the goroutine to exit without waiting. Safe to call under locks.
func (c *Countdown) Cancel() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Wait blocks until no further ticks can be delivered.
func (c *Countdown) Wait() {
	<-c.done
}

// Stop cancels and waits.
func (c *Countdown) Stop() {
	c.Cancel()
	c.Wait()
}
