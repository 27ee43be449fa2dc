package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultQueueSize = 128

// Dispatcher runs best-effort side effects (confirmation email, SSE pushes)
// off the transactional path. Task failures are logged, never propagated:
// fulfillment correctness must not depend on notification delivery.
type Dispatcher struct {
	log   *zap.Logger
	tasks chan task

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		log:   log.Named("notify.dispatcher"),
		tasks: make(chan task, defaultQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit enqueues fn for background execution. A full queue drops the task
// with a log line instead of blocking the caller.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case <-d.stop:
		return
	default:
	}
	select {
	case d.tasks <- task{name: name, fn: fn}:
	default:
		d.log.Warn("notification queue full, task dropped", zap.String("task", name))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case t := <-d.tasks:
					d.execute(t)
				default:
					return
				}
			}
		case t := <-d.tasks:
			d.execute(t)
		}
	}
}

func (d *Dispatcher) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.fn(ctx); err != nil {
		d.log.Warn("notification task failed",
			zap.String("task", t.name),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}
