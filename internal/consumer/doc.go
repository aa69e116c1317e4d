// Package consumer runs a pool of workers that claim records for one concern
// and report the outcome back to the stream's handling ledger.
//
// Each worker loops over TryHandle, invokes the [Handler] on the claimed
// record, then marks it Completed or Failed. A failed record is reset for
// another claim while its retry budget lasts and is otherwise left Failed.
//
// [Runner.Drain] stops once nothing is claimable. [Runner.Run] keeps polling
// until its context is done.
//
//	r, err := consumer.New(s, handle, consumer.Config{Concern: "billing", Workers: 4})
//	summary, err := r.Drain(ctx)
package consumer
