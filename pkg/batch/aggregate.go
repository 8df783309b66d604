// Copyright 2025 Certen Protocol
//
// Batch aggregate - the commit-reveal state machine. Owns its phase,
// its commitments (keyed by user address), its revealed transactions
// (keyed by commitment hash), the final ordering and aggregate
// metrics. Every method is total: precondition failures return errors,
// they never panic.
//
// Not reentrant: callers (pkg/usecase) are responsible for serializing
// access to a given Batch for the duration of a single operation.

package batch

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"
)

const (
	defaultCommitmentDuration = 30 * time.Minute
	defaultRevealDuration     = 15 * time.Minute
)

// Batch is the aggregate root for a single commit-reveal auction round.
type Batch struct {
	id                 BatchId
	startTime          time.Time
	endTime            time.Time
	orderingMethod     OrderingMethod
	commitmentPhaseEnd time.Time
	revealPhaseEnd     time.Time
	status             Status

	commitments map[string]Commitment          // keyed by lowercased user address
	reveals     map[string]RevealedTransaction // keyed by commitment hash
	finalOrdering []string
	metrics     *MEVMetrics

	createdAt time.Time
	updatedAt time.Time

	events eventLog
}

// NewBatch constructs a batch in COMMITMENT_PHASE, validating the
// creation contract in spec §4.1.
func NewBatch(startTime, endTime time.Time, orderingMethod OrderingMethod, commitmentDuration, revealDuration time.Duration, now time.Time) (*Batch, error) {
	if commitmentDuration <= 0 {
		commitmentDuration = defaultCommitmentDuration
	}
	if revealDuration <= 0 {
		revealDuration = defaultRevealDuration
	}
	if !orderingMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown ordering method %q", ErrInvalidArgument, orderingMethod)
	}
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", ErrInvalidArgument)
	}
	if startTime.Before(now) {
		return nil, fmt.Errorf("%w: startTime cannot be in the past", ErrInvalidArgument)
	}
	commitmentPhaseEnd := startTime.Add(commitmentDuration)
	revealPhaseEnd := commitmentPhaseEnd.Add(revealDuration)
	if revealPhaseEnd.After(endTime) {
		return nil, fmt.Errorf("%w: commitment+reveal durations exceed endTime", ErrInvalidArgument)
	}

	b := &Batch{
		id:                 NewBatchId(),
		startTime:          startTime,
		endTime:            endTime,
		orderingMethod:     orderingMethod,
		commitmentPhaseEnd: commitmentPhaseEnd,
		revealPhaseEnd:     revealPhaseEnd,
		status:             StatusCommitmentPhase,
		commitments:        make(map[string]Commitment),
		reveals:            make(map[string]RevealedTransaction),
		createdAt:          now,
		updatedAt:          now,
	}
	b.events.append(BatchCreatedEvent{
		baseEvent:      baseEvent{aggregateID: b.id.String(), occurredOn: now},
		StartTime:      startTime,
		EndTime:        endTime,
		OrderingMethod: orderingMethod,
	})
	return b, nil
}

// Rehydrate reconstructs a Batch from persisted state, bypassing the
// creation contract (used exclusively by repository adapters).
func Rehydrate(
	id BatchId,
	startTime, endTime time.Time,
	orderingMethod OrderingMethod,
	commitmentPhaseEnd, revealPhaseEnd time.Time,
	status Status,
	commitments map[string]Commitment,
	reveals map[string]RevealedTransaction,
	finalOrdering []string,
	metrics *MEVMetrics,
	createdAt, updatedAt time.Time,
) *Batch {
	if commitments == nil {
		commitments = make(map[string]Commitment)
	}
	if reveals == nil {
		reveals = make(map[string]RevealedTransaction)
	}
	return &Batch{
		id:                 id,
		startTime:          startTime,
		endTime:            endTime,
		orderingMethod:     orderingMethod,
		commitmentPhaseEnd: commitmentPhaseEnd,
		revealPhaseEnd:     revealPhaseEnd,
		status:             status,
		commitments:        commitments,
		reveals:            reveals,
		finalOrdering:      finalOrdering,
		metrics:            metrics,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// ID returns the batch identifier.
func (b *Batch) ID() BatchId { return b.id }

// Status returns the recorded lifecycle status.
func (b *Batch) Status() Status { return b.status }

// StartTime, EndTime, CommitmentPhaseEnd, RevealPhaseEnd, OrderingMethod,
// CreatedAt and UpdatedAt expose the aggregate's immutable/monotonic
// scheduling fields.
func (b *Batch) StartTime() time.Time            { return b.startTime }
func (b *Batch) EndTime() time.Time              { return b.endTime }
func (b *Batch) CommitmentPhaseEnd() time.Time   { return b.commitmentPhaseEnd }
func (b *Batch) RevealPhaseEnd() time.Time       { return b.revealPhaseEnd }
func (b *Batch) OrderingMethod() OrderingMethod  { return b.orderingMethod }
func (b *Batch) CreatedAt() time.Time            { return b.createdAt }
func (b *Batch) UpdatedAt() time.Time            { return b.updatedAt }

// Metrics returns a copy of the finalized metrics, or nil if the batch
// has not been finalized.
func (b *Batch) Metrics() *MEVMetrics {
	if b.metrics == nil {
		return nil
	}
	m := *b.metrics
	return &m
}

// FinalOrdering returns a snapshot of the finalized ordering.
func (b *Batch) FinalOrdering() []string {
	return append([]string(nil), b.finalOrdering...)
}

// Commitments returns a snapshot of the commitment map, never a
// reference to the aggregate's internal state.
func (b *Batch) Commitments() map[string]Commitment {
	out := make(map[string]Commitment, len(b.commitments))
	for k, v := range b.commitments {
		out[k] = v
	}
	return out
}

// Reveals returns a snapshot of the reveal map.
func (b *Batch) Reveals() map[string]RevealedTransaction {
	out := make(map[string]RevealedTransaction, len(b.reveals))
	for k, v := range b.reveals {
		out[k] = v
	}
	return out
}

// CommitmentCount returns the number of recorded commitments.
func (b *Batch) CommitmentCount() int { return len(b.commitments) }

// RevealedCount returns the number of recorded reveals.
func (b *Batch) RevealedCount() int { return len(b.reveals) }

// RevealRate returns revealed/commitments, or 0 when there are no
// commitments.
func (b *Batch) RevealRate() float64 {
	if len(b.commitments) == 0 {
		return 0
	}
	return float64(len(b.reveals)) / float64(len(b.commitments))
}

// IsInCommitmentPhase reflects both the recorded status and the clock.
func (b *Batch) IsInCommitmentPhase(now time.Time) bool {
	return b.status == StatusCommitmentPhase && now.Before(b.commitmentPhaseEnd)
}

// IsInRevealPhase reflects both the recorded status and the clock.
func (b *Batch) IsInRevealPhase(now time.Time) bool {
	return b.status == StatusRevealPhase && now.Before(b.revealPhaseEnd)
}

// IsExpired reports whether now is past the batch's overall endTime.
func (b *Batch) IsExpired(now time.Time) bool {
	return now.After(b.endTime)
}

// AddCommitment records a new commitment for a user, enforcing the
// per-user binding guarantee (spec §4.1).
func (b *Batch) AddCommitment(c Commitment, now time.Time) error {
	if !b.IsInCommitmentPhase(now) {
		return ErrCommitmentPhaseNotActive
	}
	key := normalizeAddress(c.UserAddress)
	if _, exists := b.commitments[key]; exists {
		return ErrCommitmentAlreadyExists
	}
	b.commitments[key] = c
	b.updatedAt = now
	b.events.append(CommitmentAddedEvent{
		baseEvent:      baseEvent{aggregateID: b.id.String(), occurredOn: now},
		UserAddress:    c.UserAddress,
		CommitmentHash: c.Hash,
	})
	return nil
}

// RevealTransaction verifies and records a revealed transaction against
// its commitment (spec §4.1).
func (b *Batch) RevealTransaction(commitmentHash string, tx TransactionData, userAddress, nonce string, hashOf func(TransactionData, string) string, now time.Time) error {
	if !b.IsInRevealPhase(now) {
		return ErrRevealPhaseNotActive
	}
	key := normalizeAddress(userAddress)
	c, exists := b.commitments[key]
	if !exists || !sameHash(c.Hash, commitmentHash) {
		return ErrNoMatchingCommitment
	}
	recomputed := hashOf(tx, nonce)
	if !sameHash(recomputed, commitmentHash) {
		return ErrTransactionRevealMismatch
	}

	hashKey := normalizeHash(commitmentHash)
	b.reveals[hashKey] = RevealedTransaction{
		CommitmentHash:  c.Hash,
		TransactionData: tx,
		UserAddress:     c.UserAddress,
		RevealedAt:      now,
		Nonce:           nonce,
	}
	b.updatedAt = now
	b.events.append(TransactionRevealedEvent{
		baseEvent:      baseEvent{aggregateID: b.id.String(), occurredOn: now},
		CommitmentHash: c.Hash,
		UserAddress:    c.UserAddress,
	})
	return nil
}

// AdvanceToReveal transitions COMMITMENT_PHASE -> REVEAL_PHASE.
func (b *Batch) AdvanceToReveal(now time.Time) error {
	return b.transition(StatusCommitmentPhase, StatusRevealPhase, now)
}

// AdvanceToExec transitions REVEAL_PHASE -> EXECUTION_PHASE.
func (b *Batch) AdvanceToExec(now time.Time) error {
	return b.transition(StatusRevealPhase, StatusExecutionPhase, now)
}

func (b *Batch) transition(expected, next Status, now time.Time) error {
	if b.status != expected {
		return &InvalidStatusError{Expected: expected, Actual: b.status}
	}
	from := b.status
	b.status = next
	b.updatedAt = now
	b.events.append(BatchStatusChangedEvent{
		baseEvent: baseEvent{aggregateID: b.id.String(), occurredOn: now},
		From:      from,
		To:        next,
		At:        now,
	})
	return nil
}

// Finalize records the externally supplied ordering and metrics and
// transitions EXECUTION_PHASE -> COMPLETED (spec §4.1).
func (b *Batch) Finalize(ordering []string, metrics MEVMetrics, now time.Time) error {
	if b.status != StatusExecutionPhase {
		return &InvalidStatusError{Expected: StatusExecutionPhase, Actual: b.status}
	}
	if err := b.validatePermutation(ordering); err != nil {
		return err
	}

	normalized := make([]string, len(ordering))
	for i, h := range ordering {
		normalized[i] = normalizeHash(h)
	}
	b.finalOrdering = normalized
	m := metrics
	b.metrics = &m
	b.status = StatusCompleted
	b.updatedAt = now
	b.events.append(BatchFinalizedEvent{
		baseEvent:         baseEvent{aggregateID: b.id.String(), occurredOn: now},
		TotalTransactions: metrics.TotalTransactions,
		MEVExtracted:      bigOrZero(metrics.ExtractedValue),
		SavingsGenerated:  bigOrZero(metrics.SavingsGenerated),
		FinalizedAt:       now,
	})
	return nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (b *Batch) validatePermutation(ordering []string) error {
	if len(ordering) != len(b.reveals) {
		return ErrFinalOrderingInvalid
	}
	seen := make(map[string]struct{}, len(ordering))
	for _, h := range ordering {
		key := normalizeHash(h)
		if _, dup := seen[key]; dup {
			return ErrFinalOrderingInvalid
		}
		if _, ok := b.reveals[key]; !ok {
			return ErrFinalOrderingInvalid
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Cancel administratively terminates a non-terminal batch
// (SPEC_FULL.md §4.1 addition).
func (b *Batch) Cancel(reason string, now time.Time) error {
	if b.status.isTerminal() {
		return &InvalidStatusError{Expected: StatusExecutionPhase, Actual: b.status}
	}
	b.status = StatusCancelled
	b.updatedAt = now
	b.events.append(BatchCancelledEvent{
		baseEvent: baseEvent{aggregateID: b.id.String(), occurredOn: now},
		Reason:    reason,
		At:        now,
	})
	return nil
}

// ValidateInvariants checks every global invariant in spec §4.1,
// intended for use in tests and debug assertions rather than on the
// request path.
func (b *Batch) ValidateInvariants() error {
	if len(b.reveals) > len(b.commitments) {
		return fmt.Errorf("invariant violated: reveals (%d) exceed commitments (%d)", len(b.reveals), len(b.commitments))
	}
	if !(!b.startTime.After(b.commitmentPhaseEnd) && !b.commitmentPhaseEnd.After(b.revealPhaseEnd) && !b.revealPhaseEnd.After(b.endTime)) {
		return fmt.Errorf("invariant violated: startTime <= commitmentPhaseEnd <= revealPhaseEnd <= endTime")
	}
	for hash, r := range b.reveals {
		c, ok := b.commitments[normalizeAddress(r.UserAddress)]
		if !ok || !sameHash(c.Hash, r.CommitmentHash) || normalizeHash(hash) != normalizeHash(r.CommitmentHash) {
			return fmt.Errorf("invariant violated: revealed transaction %s has no matching commitment", hash)
		}
	}
	if b.status == StatusCompleted {
		got := append([]string(nil), b.finalOrdering...)
		sort.Strings(got)
		want := make([]string, 0, len(b.reveals))
		for h := range b.reveals {
			want = append(want, h)
		}
		sort.Strings(want)
		if len(got) != len(want) {
			return fmt.Errorf("invariant violated: finalOrdering is not a permutation of reveals")
		}
		for i := range got {
			if got[i] != want[i] {
				return fmt.Errorf("invariant violated: finalOrdering is not a permutation of reveals")
			}
		}
	}
	return nil
}

func normalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

func normalizeHash(h string) string {
	return strings.ToLower(h)
}

func sameHash(a, b string) bool {
	return strings.EqualFold(a, b)
}
