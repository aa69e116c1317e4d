// Package mutex provides a named lock expressed entirely as a claim on a
// stream's handling ledger.
//
// # Architecture
//
// Each [Mutex] owns one marker record in the stream, keyed by the mutex id
// and typed [MarkerType]. Acquiring the lock is a TryHandle on that record
// for the mutex concern; holding it means the record is Running; releasing
// it moves the record to AvailableAfterSelfCancellation. No lock object
// exists outside the ledger, so any number of [Mutex] values built over the
// same stream and id contend for the same lock.
//
// [Mutex.WaitOne] polls rather than queueing. Waiters are not served in
// arrival order.
//
// # Basic Usage
//
//	m, err := mutex.New(ctx, s, "orders-compaction")
//
//	token, err := m.WaitOne(ctx, "nightly compaction")
//	defer m.Release(ctx, token)
//
// # Thread Safety
//
// A [Mutex] is safe for concurrent use. A [ReleaseToken] must be released
// exactly once; a second Release fails the ledger's status precondition.
package mutex
