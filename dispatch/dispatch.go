package dispatch

import (
	"context"
	"runtime"
	"sync"

	"github.com/wippyai/mediafs/errors"
)

// Task is a unit of work executed on the dispatch goroutine. Inputs and
// outputs are captured by the closure; env must not escape the call.
type Task[E any] func(env E)

// Runtime produces and releases the thread-affine environment the dispatch
// goroutine works with. Attach and Detach are only ever called from that
// goroutine, with it locked to its OS thread.
type Runtime[E any] interface {
	Attach(ctx context.Context) (E, error)
	Detach(ctx context.Context, env E) error
}

// Dispatcher owns one dispatch goroutine and the queue feeding it.
// All exported methods are safe for concurrent use.
type Dispatcher[E any] struct {
	rt Runtime[E]

	mu        sync.Mutex
	cond      *sync.Cond
	tasks     []Task[E]
	accepting bool

	// stop and detachCtx are written by the terminal task and read by the
	// loop; both happen on the dispatch goroutine only.
	stop      bool
	detachCtx context.Context

	done      chan struct{}
	detachErr error

	closeOnce sync.Once
	closeErr  error
}

// New starts the dispatch goroutine and attaches it to rt. If Attach fails
// the goroutine exits and New returns the attach error; the dispatcher is
// unusable and needs no Close.
//
// ctx covers Attach and is the context the environment lives under; Detach
// runs under the context passed to Close. Task execution itself is not
// cancellable.
func New[E any](ctx context.Context, rt Runtime[E]) (*Dispatcher[E], error) {
	if rt == nil {
		return nil, errors.InvalidInput(errors.PhaseDispatch, "nil runtime")
	}

	d := &Dispatcher[E]{
		rt:        rt,
		accepting: true,
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)

	attached := make(chan error, 1)
	go d.loop(ctx, attached)

	if err := <-attached; err != nil {
		return nil, err
	}
	return d, nil
}

// loop is the dispatch goroutine: attach once, drain tasks until the
// terminal task runs, detach, exit.
func (d *Dispatcher[E]) loop(ctx context.Context, attached chan<- error) {
	defer close(d.done)

	// The environment must only be touched from the thread that attached it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	env, err := d.rt.Attach(ctx)
	if err != nil {
		d.mu.Lock()
		d.accepting = false
		d.mu.Unlock()
		attached <- errors.Wrap(errors.PhaseAttach, errors.KindTrap, err, "attach dispatch thread")
		return
	}
	attached <- nil

	logger().Debug("dispatch goroutine running")

	for {
		t := d.next()
		t(env)
		if d.stop {
			break
		}
	}

	logger().Debug("dispatch goroutine stopping")
	if d.detachCtx == nil {
		d.detachCtx = ctx
	}
	d.detachErr = d.rt.Detach(d.detachCtx, env)
}

// next blocks until a task is available and removes it from the head.
// Shutdown arrives as an ordinary task, so next never returns empty-handed.
func (d *Dispatcher[E]) next() Task[E] {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.tasks) == 0 {
		d.cond.Wait()
	}
	t := d.tasks[0]
	d.tasks[0] = nil
	d.tasks = d.tasks[1:]
	return t
}

// post appends t under the lock. The acceptance check and the append happen
// under one lock acquisition so a submission cannot race shutdown.
func (d *Dispatcher[E]) post(t Task[E]) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.accepting {
		return false
	}
	d.tasks = append(d.tasks, t)
	d.cond.Signal()
	return true
}

// PostAndWait enqueues t and blocks until the dispatch goroutine has executed
// it. It returns false immediately, without enqueuing, if shutdown has begun;
// any captured result variables are then left at their defaults and the
// caller must treat the operation as failed.
//
// Calling PostAndWait from a task running on this dispatcher deadlocks.
func (d *Dispatcher[E]) PostAndWait(t Task[E]) bool {
	completed := make(chan struct{})
	wrapped := func(env E) {
		t(env)
		close(completed)
	}
	if !d.post(wrapped) {
		return false
	}
	<-completed
	return true
}

// Post enqueues t without waiting for it to execute. There is no confirmation
// of execution; if shutdown has begun the task is silently dropped.
func (d *Dispatcher[E]) Post(t Task[E]) {
	if !d.post(t) {
		logger().Debug("async task dropped after shutdown")
	}
}

// Close stops accepting tasks, lets everything already queued run to
// completion, detaches the environment and joins the dispatch goroutine.
// Close is idempotent; subsequent calls return the first result.
func (d *Dispatcher[E]) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		// Flip acceptance and enqueue the terminal task under one lock
		// acquisition: nothing can slip in behind the terminal task.
		d.accepting = false
		d.tasks = append(d.tasks, func(E) {
			d.stop = true
			d.detachCtx = ctx
		})
		d.cond.Signal()
		d.mu.Unlock()

		<-d.done
		d.closeErr = d.detachErr
	})
	return d.closeErr
}
