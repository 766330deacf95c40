package quiz

import "time"

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct {
	t *time.Ticker
}

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

func (t stdTicker) C() <-chan time.Time { return t.t.C }

func (t stdTicker) Stop() { t.t.Stop() }
