// Copyright 2025 Certen Protocol
//
// FinalizeBatch commits the chosen transaction ordering and its MEV
// metrics to the aggregate, computes an auditable Merkle root over the
// final ordering via the teacher's pkg/merkle, and mirrors the result
// on-chain (spec §4.3).

package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
	"github.com/certen/fair-sequencer/pkg/events"
	"github.com/certen/fair-sequencer/pkg/merkle"
	"github.com/certen/fair-sequencer/pkg/repository"
)

// FinalizeBatchInput is the request to the use-case.
type FinalizeBatchInput struct {
	BatchID  string
	Ordering []string
	Metrics  batch.MEVMetrics
}

// FinalizeBatch is the use-case orchestrator for batch finalization.
type FinalizeBatch struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	locks  *keyedMutex
	logger *log.Logger
}

func NewFinalizeBatch(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *FinalizeBatch {
	if logger == nil {
		logger = log.New(log.Writer(), "[FinalizeBatch] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &FinalizeBatch{repo: repo, bridge: br, events: disp, clock: time.Now, locks: newKeyedMutex(), logger: logger}
}

func (uc *FinalizeBatch) Execute(ctx context.Context, in FinalizeBatchInput) Result[FinalizeBatchOutput] {
	now := uc.clock()

	id, err := batch.ParseBatchId(in.BatchID)
	if err != nil {
		return Fail[FinalizeBatchOutput](CodeValidation, err.Error())
	}
	if len(in.Ordering) == 0 {
		return Fail[FinalizeBatchOutput](CodeValidation, "ordering must not be empty")
	}

	unlock := uc.locks.lock(id.String())
	defer unlock()

	b, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[FinalizeBatchOutput](CodeDatabase, fmt.Sprintf("failed to load batch: %v", err))
	}
	if b == nil {
		return Fail[FinalizeBatchOutput](CodeBatchNotFound, "batch not found")
	}

	root, err := orderingMerkleRoot(in.Ordering)
	if err != nil {
		return Fail[FinalizeBatchOutput](CodeDomain, fmt.Sprintf("failed to compute ordering merkle root: %v", err))
	}
	metrics := in.Metrics
	metrics.OrderingMerkleRoot = root

	if err := b.Finalize(in.Ordering, metrics, now); err != nil {
		return Fail[FinalizeBatchOutput](CodeDomain, err.Error())
	}

	receipt, err := uc.bridge.FinalizeBatch(ctx, b.ID(), b.FinalOrdering(), *b.Metrics())
	if err != nil {
		uc.logger.Printf("bridge FinalizeBatch failed, discarding in-memory mutation for batch %s: %v", b.ID(), err)
		return Fail[FinalizeBatchOutput](CodeBlockchainConnection, err.Error())
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		uc.logger.Printf("PERSISTENCE_AFTER_COMMIT: batch %s finalized on-chain (tx %s) but failed to persist: %v", b.ID(), receipt.Hash, err)
		return Fail[FinalizeBatchOutput](CodePersistenceAfterCommit, fmt.Sprintf("on-chain finalization succeeded (tx %s) but persistence failed: %v; reconcile via bridge queries", receipt.Hash, err))
	}
	uc.events.Drain(b)

	return Ok(FinalizeBatchOutput{
		BatchID:    b.ID().String(),
		TotalTx:    len(b.FinalOrdering()),
		TxHash:     receipt.Hash,
		GasUsed:    receipt.GasUsed,
		MerkleRoot: root,
	})
}

// orderingMerkleRoot builds a Merkle tree over the final ordering's
// commitment hashes and returns its hex root, giving auditors a single
// fixed-size commitment to the sequencing decision (spec §3 MEVMetrics
// expansion).
func orderingMerkleRoot(ordering []string) (string, error) {
	leaves := make([][]byte, len(ordering))
	for i, hash := range ordering {
		leaves[i] = merkle.HashData([]byte(hash))
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return "", err
	}
	return tree.RootHex(), nil
}
