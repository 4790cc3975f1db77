package stream

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// Alive is the loop's run flag. It only ever goes from alive to stopped.
type Alive struct {
	stopped atomic.Bool
}

// NewAlive returns a flag in the alive state.
func NewAlive() *Alive {
	return &Alive{}
}

// Alive reports whether the loop should keep running
func (a *Alive) Alive() bool {
	return !a.stopped.Load()
}

// Stop requests the loop to finish its current iteration and exit
func (a *Alive) Stop() {
	a.stopped.Store(true)
}

// NotifyOnSignal stops the flag when any of sigs arrives. The returned
// function detaches the handler.
func (a *Alive) NotifyOnSignal(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case <-ch:
				a.Stop()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
