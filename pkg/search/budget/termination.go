package budget

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

var _ framework.TerminationManager = &Termination{}

// Termination is a cooperative stop flag. It is triggered manually, by a
// cancelled context or by an OS signal, and polled by the search.
type Termination struct {
	triggered atomic.Bool
	ctx       context.Context
}

func NewTermination() *Termination {
	return &Termination{}
}

// WithContext makes the termination fire once ctx is done.
func (t *Termination) WithContext(ctx context.Context) *Termination {
	t.ctx = ctx
	return t
}

// Trigger requests the search to stop at its next check.
func (t *Termination) Trigger() {
	t.triggered.Store(true)
}

func (t *Termination) IsTriggered() bool {
	if t.triggered.Load() {
		return true
	}
	if t.ctx != nil && t.ctx.Err() != nil {
		t.triggered.Store(true)
		return true
	}
	return false
}

// NotifyOnSignal triggers t when one of sigs arrives. The returned function
// stops listening.
func (t *Termination) NotifyOnSignal(sigs ...os.Signal) func() {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)
	go func() {
		select {
		case <-ch:
			t.Trigger()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
