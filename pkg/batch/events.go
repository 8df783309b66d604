// Copyright 2025 Certen Protocol
//
// Domain events emitted by the batch aggregate. Events are appended to
// an in-memory buffer in emission order and drained by an external
// dispatcher (pkg/events); the aggregate never dispatches them itself.

package batch

import (
	"math/big"
	"time"
)

// Event is the common shape every domain event satisfies, mirroring
// the accessor-interface style the teacher uses for on-chain contract
// events (pkg/anchor.ContractEvent).
type Event interface {
	EventName() string
	AggregateID() string
	OccurredOn() time.Time
	EventVersion() int
}

type baseEvent struct {
	aggregateID string
	occurredOn  time.Time
}

func (e baseEvent) AggregateID() string   { return e.aggregateID }
func (e baseEvent) OccurredOn() time.Time { return e.occurredOn }
func (e baseEvent) EventVersion() int     { return 1 }

// BatchCreatedEvent is emitted when a batch is created.
type BatchCreatedEvent struct {
	baseEvent
	StartTime      time.Time
	EndTime        time.Time
	OrderingMethod OrderingMethod
}

func (e BatchCreatedEvent) EventName() string { return "BatchCreated" }

// CommitmentAddedEvent is emitted when a commitment is accepted.
type CommitmentAddedEvent struct {
	baseEvent
	UserAddress     string
	CommitmentHash  string
}

func (e CommitmentAddedEvent) EventName() string { return "CommitmentAdded" }

// TransactionRevealedEvent is emitted when a reveal is accepted.
type TransactionRevealedEvent struct {
	baseEvent
	CommitmentHash string
	UserAddress    string
}

func (e TransactionRevealedEvent) EventName() string { return "TransactionRevealed" }

// BatchStatusChangedEvent is emitted on every legal phase transition.
type BatchStatusChangedEvent struct {
	baseEvent
	From Status
	To   Status
	At   time.Time
}

func (e BatchStatusChangedEvent) EventName() string { return "BatchStatusChanged" }

// BatchFinalizedEvent is emitted when a batch reaches COMPLETED.
type BatchFinalizedEvent struct {
	baseEvent
	TotalTransactions int
	MEVExtracted      *big.Int
	SavingsGenerated  *big.Int
	FinalizedAt       time.Time
}

func (e BatchFinalizedEvent) EventName() string { return "BatchFinalized" }

// BatchCancelledEvent is emitted when a batch is administratively
// cancelled (SPEC_FULL.md §4.1 addition).
type BatchCancelledEvent struct {
	baseEvent
	Reason string
	At     time.Time
}

func (e BatchCancelledEvent) EventName() string { return "BatchCancelled" }

// eventLog is the append-only buffer a Batch owns exclusively.
type eventLog struct {
	events []Event
}

func (l *eventLog) append(e Event) {
	l.events = append(l.events, e)
}

// PullEvents drains and returns all buffered events in emission order.
// Callers own the returned slice; the aggregate's buffer is cleared.
func (b *Batch) PullEvents() []Event {
	events := b.events.events
	b.events.events = nil
	return events
}
