package runtimes

import (
	"sync"
)

// Node is one pending unit of work submitted to an Executor.
type Node struct {
	// OpName identifies the operation, for diagnostics.
	OpName string

	// Run executes the node and returns its status.
	Run func() error

	// Abort is called instead of Run when the node is discarded: after a
	// previous node failed (fail-fast) or on executor shutdown. It must
	// resolve whatever the node promised (e.g. poison pending handles).
	// May be nil.
	Abort func(err error)
}

// Executor is a FIFO queue of operation nodes for one thread of control.
//
// In async mode a single background worker drains the queue; in sync mode
// Submit runs the node inline before returning. Either way nodes of one
// executor never run concurrently with each other, so submissions from the
// owning thread need no locking of their own.
//
// The first node error is sticky: later submissions are rejected with
// ErrFailedPrecondition until a WaitForAllPending call returns (and clears)
// the error; nodes already queued behind the failure are aborted. Enqueuing
// more work against a failed device stream would only waste resources.
type Executor struct {
	async bool

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*Node
	running  bool // a node is executing right now
	workerUp bool
	err      error // first unrecovered node error
	closed   bool
}

// NewExecutor returns an empty executor. If async, submitted nodes are
// drained by a background worker; otherwise Submit executes them inline.
func NewExecutor(async bool) *Executor {
	e := &Executor{async: async}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Async reports whether the executor drains nodes in the background.
func (e *Executor) Async() bool { return e.async }

// NumPending returns the number of nodes not yet completed.
func (e *Executor) NumPending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.queue)
	if e.running {
		n++
	}
	return n
}

// Err returns the sticky error from the first failed node, if any, without
// clearing it.
func (e *Executor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Submit enqueues a node without blocking (async mode) or runs it inline
// (sync mode). It returns ErrFailedPrecondition if the executor was shut
// down or holds an unrecovered error; the node is not aborted in that case,
// the caller still owns it.
func (e *Executor) Submit(node *Node) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return FailedPreconditionf("executor is shut down, cannot submit %q", node.OpName)
	}
	if e.err != nil {
		err := e.err
		e.mu.Unlock()
		return FailedPreconditionf("executor has a pending error from a previous node: %v", err)
	}
	if !e.async {
		e.running = true
		e.mu.Unlock()
		runErr := node.Run()
		e.mu.Lock()
		e.running = false
		if runErr != nil && e.err == nil {
			e.err = runErr
		}
		e.cond.Broadcast()
		e.mu.Unlock()
		return nil
	}
	e.queue = append(e.queue, node)
	if !e.workerUp {
		e.workerUp = true
		go e.worker()
	}
	e.cond.Broadcast()
	e.mu.Unlock()
	return nil
}

// worker drains the queue until shutdown. Only one worker runs per executor.
func (e *Executor) worker() {
	e.mu.Lock()
	for {
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.closed {
			e.workerUp = false
			e.cond.Broadcast()
			e.mu.Unlock()
			return
		}
		node := e.queue[0]
		e.queue = e.queue[1:]
		if e.err != nil || e.closed {
			// Fail-fast: discard nodes queued behind a failure.
			abortErr := e.err
			if abortErr == nil {
				abortErr = FailedPreconditionf("executor is shut down")
			}
			e.mu.Unlock()
			if node.Abort != nil {
				node.Abort(abortErr)
			}
			e.mu.Lock()
			e.cond.Broadcast()
			continue
		}
		e.running = true
		e.mu.Unlock()
		runErr := node.Run()
		e.mu.Lock()
		e.running = false
		if runErr != nil && e.err == nil {
			e.err = runErr
		}
		e.cond.Broadcast()
	}
}

// WaitForAllPending blocks until every node submitted so far has completed
// (or was aborted), then returns the first error encountered, clearing it.
// After a successful return the executor accepts new submissions again.
func (e *Executor) WaitForAllPending() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) > 0 || e.running {
		e.cond.Wait()
	}
	err := e.err
	e.err = nil
	return err
}

// Shutdown discards pending nodes (aborting them) and stops the worker.
// It does not interrupt a node already executing; it waits for it instead.
// The executor rejects submissions from then on.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cond.Broadcast()
	if !e.workerUp {
		// Sync mode (or never used): abort whatever is queued ourselves.
		queue := e.queue
		e.queue = nil
		for e.running {
			e.cond.Wait()
		}
		e.mu.Unlock()
		shutdownErr := FailedPreconditionf("executor is shut down")
		for _, node := range queue {
			if node.Abort != nil {
				node.Abort(shutdownErr)
			}
		}
		return
	}
	// Async: the worker aborts the remaining queue, wait for it to exit.
	for e.workerUp {
		e.cond.Wait()
	}
	e.mu.Unlock()
}
