// Package event provides a pub-sub event bus that streams and mutexes use to
// announce what they did.
//
// Events are published after the publisher has released its locks, so a
// handler may call back into the stream that raised the event. Handlers run
// synchronously on the publishing goroutine.
//
// # Event Categories
//
// Stream lifecycle:
//   - [StreamCreatedEvent], [StreamDeletedEvent]
//
// Records:
//   - [RecordPutEvent]: a put wrote, skipped, or pruned records
//   - [RecordsPrunedEvent]: Prune removed records or ledger entries
//
// Handling:
//   - [RecordClaimedEvent]: TryHandle returned a record
//   - [HandlingStatusChangedEvent]: a status transition was appended
//   - [StreamHandlingChangedEvent]: stream-wide handling was toggled
//
// Mutex:
//   - [MutexAcquiredEvent], [MutexReleasedEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. A panicking handler is logged
// and does not prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeRecordClaimed, func(e event.Event) {
//	    claimed := e.(event.RecordClaimedEvent)
//	    fmt.Println(claimed.Concern, claimed.InternalRecordID)
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) {
//	    fmt.Println(e.EventType(), e.Timestamp())
//	})
//	bus.Unsubscribe(id)
//
// Event types follow the pattern "category.action".
package event
