// Package dispatch marshals work from arbitrary goroutines onto the single
// goroutine that is allowed to mutate contact-request state.
//
// Protocol events originate on transport worker goroutines. Rather than
// locking registry state, producers push zero-argument tasks onto a Queue;
// one owning goroutine drains the queue at a fixed cadence and executes each
// batch in enqueue order. The queue's mutex guards only the enqueue and the
// batch swap, never task execution, so producers are never blocked behind a
// running batch.
//
// Guarantees:
//
//   - each pushed task runs exactly once
//   - tasks run in enqueue order within a batch; tasks pushed before a tick's
//     swap run in that tick, tasks pushed during the drain run in the next
//   - a panicking task is logged and skipped; it never aborts the batch or
//     the drain loop
//
// The drain loop runs until the context given to Run is cancelled, which the
// owning client ties to its own lifetime.
package dispatch
