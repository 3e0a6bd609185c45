package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/physloop/internal/dynamo"
)

type WorkerState int32

const (
	WorkerStopped WorkerState = iota
	WorkerWaiting
	WorkerStepping
)

func (s WorkerState) String() string {
	switch s {
	case WorkerWaiting:
		return "waiting"
	case WorkerStepping:
		return "stepping"
	default:
		return "stopped"
	}
}

// Worker owns the stepping goroutine in multithreaded mode. The producer adds
// time to the accumulator and calls Signal; the worker is the only caller of
// RunCycle while it runs.
type Worker struct {
	sched    *Scheduler
	acc      *Accumulator
	disabled func() bool

	waitTimeout time.Duration
	joinTimeout time.Duration
	log         *logrus.Entry

	mu      sync.Mutex
	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
	state   atomic.Int32

	errMu sync.Mutex
	errs  []error
}

func NewWorker(sched *Scheduler, acc *Accumulator, disabled func() bool, waitTimeout, joinTimeout time.Duration) *Worker {
	if disabled == nil {
		disabled = func() bool { return false }
	}
	return &Worker{
		sched:       sched,
		acc:         acc,
		disabled:    disabled,
		waitTimeout: waitTimeout,
		joinTimeout: joinTimeout,
		log:         logrus.WithField("component", "worker"),
		signal:      make(chan struct{}, 1),
	}
}

func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

func (w *Worker) Running() bool { return w.running.Load() }

// Start launches the stepping goroutine. Starting a running worker is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return nil
	}
	if w.done != nil {
		select {
		case <-w.done:
		default:
			// a previous Stop timed out and that goroutine is still inside a cycle
			return fmt.Errorf("start worker: %w", dynamo.ErrJoinTimeout)
		}
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.state.Store(int32(WorkerWaiting))
	w.running.Store(true)
	go w.loop(w.stop, w.done)

	w.log.Debug("worker started")
	return nil
}

// Stop asks the goroutine to exit and waits up to the join timeout. A cycle in
// progress always finishes first.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	close(w.stop)

	timer := time.NewTimer(w.joinTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		w.log.Debug("worker stopped")
		return nil
	case <-timer.C:
		w.log.WithField("timeout", w.joinTimeout).Error("worker did not stop in time")
		return fmt.Errorf("stop worker after %v: %w", w.joinTimeout, dynamo.ErrJoinTimeout)
	}
}

// Signal wakes the worker. Extra signals while one is pending coalesce.
func (w *Worker) Signal() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// TakeErr returns and clears the errors of cycles run since the last call.
func (w *Worker) TakeErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	err := errors.Join(w.errs...)
	w.errs = nil
	return err
}

func (w *Worker) loop(stop, done chan struct{}) {
	defer close(done)
	defer w.state.Store(int32(WorkerStopped))

	timer := time.NewTimer(w.waitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			timer.Reset(w.waitTimeout)
			continue
		case <-w.signal:
		}

		select {
		case <-stop:
			return
		default:
		}

		if budget := w.acc.Peek(); budget > 0 {
			w.step(budget)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.waitTimeout)
	}
}

func (w *Worker) step(budget float32) {
	w.state.Store(int32(WorkerStepping))
	defer w.state.Store(int32(WorkerWaiting))

	rep, err := w.sched.RunCycle(context.Background(), Cycle{Elapsed: budget, Disabled: w.disabled()})
	w.acc.Consume(rep.Consumed)
	if err != nil {
		w.errMu.Lock()
		w.errs = append(w.errs, err)
		w.errMu.Unlock()
	}
}
