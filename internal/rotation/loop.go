package rotation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned by Post once Run has returned.
var ErrLoopStopped = errors.New("rotation: loop stopped")

// Loop runs a Controller on a single goroutine. Every event and every tick
// is handled to completion before the next one is taken.
type Loop struct {
	ctrl   *Controller
	events chan Event
	done   chan struct{}
	timer  *timerScheduler

	status   atomic.Value // Status
	settings atomic.Value // Settings
}

// NewLoop builds the controller from opts. Any Scheduler in opts is
// replaced by the loop's own timer.
func NewLoop(opts Options, buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	ts := &timerScheduler{}
	opts.Scheduler = ts
	l := &Loop{
		ctrl:   NewController(opts),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		timer:  ts,
	}
	l.publish()
	return l
}

// Post queues ev. It blocks while the queue is full.
func (l *Loop) Post(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.events <- ev:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the snapshot taken after the last handled event.
func (l *Loop) Status() Status {
	return l.status.Load().(Status)
}

// Settings returns the preferences in effect after the last handled event.
func (l *Loop) Settings() Settings {
	return l.settings.Load().(Settings)
}

// Run handles events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-l.events:
			ev.apply(l.ctrl)
		case <-l.timer.C():
			l.timer.fired()
			tickFired{}.apply(l.ctrl)
		}
		l.publish()
	}
}

func (l *Loop) publish() {
	l.status.Store(l.ctrl.Status())
	l.settings.Store(l.ctrl.Settings())
}

// timerScheduler is a single-shot timer owned by the loop goroutine.
type timerScheduler struct {
	t *time.Timer
}

func (s *timerScheduler) Schedule(d time.Duration) {
	s.Stop()
	if d < 0 {
		d = 0
	}
	s.t = time.NewTimer(d)
}

func (s *timerScheduler) Stop() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}

// C is nil while nothing is scheduled, which blocks forever in select.
func (s *timerScheduler) C() <-chan time.Time {
	if s.t == nil {
		return nil
	}
	return s.t.C
}

func (s *timerScheduler) fired() { s.t = nil }
