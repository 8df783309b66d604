// Copyright 2025 Certen Protocol

package usecase

import (
	"context"
	"log"
	"math/big"
	"testing"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/commitment"
	"github.com/certen/fair-sequencer/pkg/events"
)

func testLogger() *log.Logger { return log.New(log.Writer(), "", 0) }

func openBatch(t *testing.T, now time.Time) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(now.Add(time.Minute), now.Add(time.Hour), batch.OrderingCommitReveal, 20*time.Minute, 10*time.Minute, now)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	b.PullEvents()
	return b
}

func TestCreateBatchSuccess(t *testing.T) {
	repo := newFakeRepo()
	br := newFakeBridge()
	uc := NewCreateBatch(repo, br, events.New(testLogger()), testLogger())

	now := time.Unix(1_700_000_000, 0).UTC()
	uc.clock = func() time.Time { return now }

	res := uc.Execute(context.Background(), CreateBatchInput{
		StartTime:      now.Add(time.Minute),
		EndTime:        now.Add(time.Hour),
		OrderingMethod: batch.OrderingCommitReveal,
	})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if res.Value.TxHash != "0xfeed" {
		t.Fatalf("expected tx hash to flow through from the bridge receipt, got %q", res.Value.TxHash)
	}
	if len(repo.batches) != 1 {
		t.Fatalf("expected the batch to be persisted, got %d entries", len(repo.batches))
	}
}

func TestCreateBatchRejectsWhenAlreadyActive(t *testing.T) {
	repo := newFakeRepo()
	now := time.Unix(1_700_000_000, 0).UTC()
	repo.getCurrentActiveOnce = openBatch(t, now)

	uc := NewCreateBatch(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return now }

	res := uc.Execute(context.Background(), CreateBatchInput{
		StartTime:      now.Add(time.Minute),
		EndTime:        now.Add(time.Hour),
		OrderingMethod: batch.OrderingCommitReveal,
	})
	if res.OK {
		t.Fatal("expected failure when a batch is already active")
	}
	if res.Code != CodeDomain {
		t.Fatalf("expected CodeDomain, got %s", res.Code)
	}
}

func TestCreateBatchPersistenceAfterCommit(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = assertionError("disk full")
	br := newFakeBridge()

	uc := NewCreateBatch(repo, br, events.New(testLogger()), testLogger())
	now := time.Unix(1_700_000_000, 0).UTC()
	uc.clock = func() time.Time { return now }

	res := uc.Execute(context.Background(), CreateBatchInput{
		StartTime:      now.Add(time.Minute),
		EndTime:        now.Add(time.Hour),
		OrderingMethod: batch.OrderingCommitReveal,
	})
	if res.OK || res.Code != CodePersistenceAfterCommit {
		t.Fatalf("expected CodePersistenceAfterCommit, got ok=%v code=%s", res.OK, res.Code)
	}
}

func TestSubmitCommitmentSuccess(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	repo := newFakeRepo()
	repo.getCurrentActiveOnce = b
	repo.batches[b.ID()] = b

	uc := NewSubmitCommitment(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return b.StartTime().Add(time.Second) }

	hash := "0x" + "1122334455667788990011223344556677889900112233445566778899001122"
	res := uc.Execute(context.Background(), SubmitCommitmentInput{
		UserAddress:    "0x0000000000000000000000000000000000000002",
		CommitmentHash: hash,
	})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if b.CommitmentCount() != 1 {
		t.Fatalf("expected 1 commitment recorded, got %d", b.CommitmentCount())
	}
}

func TestSubmitCommitmentNoActiveBatch(t *testing.T) {
	repo := newFakeRepo()
	uc := NewSubmitCommitment(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	res := uc.Execute(context.Background(), SubmitCommitmentInput{
		UserAddress:    "0x0000000000000000000000000000000000000002",
		CommitmentHash: "0x" + "11223344556677889900112233445566778899001122334455667788990011",
	})
	if res.OK || res.Code != CodeNoActiveBatch {
		t.Fatalf("expected CodeNoActiveBatch, got ok=%v code=%s", res.OK, res.Code)
	}
}

func TestSubmitCommitmentRejectsShortNonce(t *testing.T) {
	repo := newFakeRepo()
	uc := NewSubmitCommitment(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	res := uc.Execute(context.Background(), SubmitCommitmentInput{
		UserAddress:    "0x0000000000000000000000000000000000000002",
		CommitmentHash: "0x" + "11223344556677889900112233445566778899001122334455667788990011",
		Nonce:          "short",
	})
	if res.OK || res.Code != CodeValidation {
		t.Fatalf("expected CodeValidation, got ok=%v code=%s", res.OK, res.Code)
	}
}

func revealableBatch(t *testing.T) (*batch.Batch, batch.TransactionData, string) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	addr := "0x0000000000000000000000000000000000000002"
	tx, err := batch.NewTransactionData(
		"0x0000000000000000000000000000000000000009",
		big.NewInt(1),
		nil,
		21000,
		big.NewInt(1_000_000_000),
		0,
	)
	if err != nil {
		t.Fatalf("NewTransactionData: %v", err)
	}
	nonce := "abcdefghijklmno"
	hash := commitment.HashOf(tx, nonce)

	commitTime := b.StartTime().Add(time.Second)
	c, err := batch.NewCommitment(hash, addr, commitTime, nonce, commitTime)
	if err != nil {
		t.Fatalf("NewCommitment: %v", err)
	}
	if err := b.AddCommitment(c, commitTime); err != nil {
		t.Fatalf("AddCommitment: %v", err)
	}
	if err := b.AdvanceToReveal(b.CommitmentPhaseEnd()); err != nil {
		t.Fatalf("AdvanceToReveal: %v", err)
	}
	b.PullEvents()
	return b, tx, nonce
}

func TestRevealTransactionSuccess(t *testing.T) {
	b, tx, nonce := revealableBatch(t)

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewRevealTransaction(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return b.CommitmentPhaseEnd().Add(time.Second) }

	res := uc.Execute(context.Background(), RevealTransactionInput{
		BatchID:        b.ID().String(),
		CommitmentHash: commitment.HashOf(tx, nonce),
		UserAddress:    "0x0000000000000000000000000000000000000002",
		Nonce:          nonce,
		To:             tx.To,
		Value:          tx.Value,
		GasLimit:       tx.GasLimit,
		GasPrice:       tx.GasPrice,
	})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if b.RevealedCount() != 1 {
		t.Fatalf("expected 1 reveal recorded, got %d", b.RevealedCount())
	}
}

func TestRevealTransactionNoMatchingCommitment(t *testing.T) {
	b, tx, nonce := revealableBatch(t)
	_ = nonce

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewRevealTransaction(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return b.CommitmentPhaseEnd().Add(time.Second) }

	res := uc.Execute(context.Background(), RevealTransactionInput{
		BatchID:        b.ID().String(),
		CommitmentHash: "0x" + "00000000000000000000000000000000000000000000000000000000000000",
		UserAddress:    "0x0000000000000000000000000000000000000002",
		Nonce:          "zzzzzzzzzzzzzzz",
		To:             tx.To,
		Value:          tx.Value,
		GasLimit:       tx.GasLimit,
		GasPrice:       tx.GasPrice,
	})
	if res.OK || res.Code != CodeDomain {
		t.Fatalf("expected CodeDomain for an unmatched commitment hash, got ok=%v code=%s", res.OK, res.Code)
	}
}

func TestAdvanceBatchPhaseSuccess(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewAdvanceBatchPhase(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return b.CommitmentPhaseEnd().Add(time.Second) }

	res := uc.Execute(context.Background(), AdvanceBatchPhaseInput{BatchID: b.ID().String(), Target: TargetReveal})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if res.Value.From != batch.StatusCommitmentPhase || res.Value.To != batch.StatusRevealPhase {
		t.Fatalf("expected COMMITMENT_PHASE->REVEAL_PHASE, got %s->%s", res.Value.From, res.Value.To)
	}
}

func TestAdvanceBatchPhaseRejectsUnknownTarget(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewAdvanceBatchPhase(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	res := uc.Execute(context.Background(), AdvanceBatchPhaseInput{BatchID: b.ID().String(), Target: "BOGUS"})
	if res.OK || res.Code != CodeValidation {
		t.Fatalf("expected CodeValidation for an unknown target, got ok=%v code=%s", res.OK, res.Code)
	}
}

func TestCancelBatchSuccess(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewCancelBatch(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	res := uc.Execute(context.Background(), CancelBatchInput{BatchID: b.ID().String(), Reason: "operator abort"})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if b.Status() != batch.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", b.Status())
	}
}

func TestCancelBatchRejectsEmptyReason(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	b := openBatch(t, now)

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewCancelBatch(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	res := uc.Execute(context.Background(), CancelBatchInput{BatchID: b.ID().String(), Reason: ""})
	if res.OK || res.Code != CodeValidation {
		t.Fatalf("expected CodeValidation for an empty reason, got ok=%v code=%s", res.OK, res.Code)
	}
}

func TestFinalizeBatchSuccess(t *testing.T) {
	b, tx, nonce := revealableBatch(t)
	hash := commitment.HashOf(tx, nonce)
	revealTime := b.CommitmentPhaseEnd().Add(time.Second)
	if err := b.RevealTransaction(hash, tx, "0x0000000000000000000000000000000000000002", nonce, commitment.HashOf, revealTime); err != nil {
		t.Fatalf("RevealTransaction: %v", err)
	}
	if err := b.AdvanceToExec(b.RevealPhaseEnd()); err != nil {
		t.Fatalf("AdvanceToExec: %v", err)
	}
	b.PullEvents()

	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewFinalizeBatch(repo, newFakeBridge(), events.New(testLogger()), testLogger())
	uc.clock = func() time.Time { return b.RevealPhaseEnd().Add(time.Hour) }

	metrics, err := batch.NewMEVMetrics(big.NewInt(10), big.NewInt(5), 1, 1, big.NewInt(1_000_000_000), big.NewInt(21000))
	if err != nil {
		t.Fatalf("NewMEVMetrics: %v", err)
	}

	res := uc.Execute(context.Background(), FinalizeBatchInput{
		BatchID:  b.ID().String(),
		Ordering: []string{hash},
		Metrics:  metrics,
	})
	if !res.OK {
		t.Fatalf("expected success, got code=%s message=%s", res.Code, res.Message)
	}
	if res.Value.MerkleRoot == "" {
		t.Fatal("expected a non-empty merkle root in the finalize output")
	}
	if b.Status() != batch.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", b.Status())
	}
}

func TestFinalizeBatchRejectsEmptyOrdering(t *testing.T) {
	b, _, _ := revealableBatch(t)
	repo := newFakeRepo()
	repo.batches[b.ID()] = b

	uc := NewFinalizeBatch(repo, newFakeBridge(), events.New(testLogger()), testLogger())

	metrics, _ := batch.NewMEVMetrics(big.NewInt(0), big.NewInt(0), 0, 0, big.NewInt(0), big.NewInt(0))
	res := uc.Execute(context.Background(), FinalizeBatchInput{BatchID: b.ID().String(), Ordering: nil, Metrics: metrics})
	if res.OK || res.Code != CodeValidation {
		t.Fatalf("expected CodeValidation for empty ordering, got ok=%v code=%s", res.OK, res.Code)
	}
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
