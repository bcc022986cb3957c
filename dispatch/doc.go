// Package dispatch serializes calls from arbitrarily many goroutines onto a
// single dispatch goroutine that exclusively owns a thread-affine foreign
// environment.
//
// A Dispatcher attaches to its Runtime exactly once, on a goroutine locked to
// its OS thread, then drains a strict-FIFO task queue until closed. Tasks
// receive the environment as a parameter while executing on the dispatch
// goroutine and must not retain it.
//
// Submissions come in two flavors sharing one queue, so a single global FIFO
// order holds across both:
//
//   - PostAndWait blocks the caller until the task has executed; results are
//     communicated through variables captured by the task closure, and the
//     completion signal establishes a happens-before edge between the task's
//     writes and the caller's reads.
//   - Post is fire-and-forget; after shutdown begins it silently drops the
//     task.
//
// The dispatcher is not reentrant: a task calling PostAndWait on its own
// dispatcher deadlocks, since no second worker exists to drain the queue.
// Post from inside a task is fine.
//
// Lifecycle is linear and non-restartable: New attaches, Close enqueues a
// terminal task and joins the goroutine. Tasks enqueued before Close are
// guaranteed to run to completion before the dispatcher detaches; tasks
// submitted after Close began are rejected.
package dispatch
