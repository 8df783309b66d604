// Copyright 2025 Certen Protocol

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
	"github.com/certen/fair-sequencer/pkg/repository"
)

// fakeRepo is an in-memory repository.BatchRepository for orchestrator
// tests. Only the methods the use-cases actually call are exercised;
// the rest return zero values.
type fakeRepo struct {
	batches map[batch.BatchId]*batch.Batch

	saveErr              error
	findByIDErr          error
	getCurrentActiveErr  error
	getCurrentActiveOnce *batch.Batch
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{batches: make(map[batch.BatchId]*batch.Batch)}
}

func (r *fakeRepo) Save(ctx context.Context, b *batch.Batch) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.batches[b.ID()] = b
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	if r.findByIDErr != nil {
		return nil, r.findByIDErr
	}
	return r.batches[id], nil
}

func (r *fakeRepo) FindByIDOrThrow(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	b, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id batch.BatchId) error {
	delete(r.batches, id)
	return nil
}

func (r *fakeRepo) GetCurrentActiveBatch(ctx context.Context, now time.Time) (*batch.Batch, error) {
	if r.getCurrentActiveErr != nil {
		return nil, r.getCurrentActiveErr
	}
	return r.getCurrentActiveOnce, nil
}

func (r *fakeRepo) FindByStatus(ctx context.Context, status batch.Status) ([]*batch.Batch, error) {
	return nil, nil
}

func (r *fakeRepo) FindRecent(ctx context.Context, limit int) ([]*batch.Batch, error) {
	return nil, nil
}

func (r *fakeRepo) FindInDateRange(ctx context.Context, from, to time.Time) ([]*batch.Batch, error) {
	return nil, nil
}

func (r *fakeRepo) FindAllPaginated(ctx context.Context, page, limit int, filters repository.Filters) (repository.Page, error) {
	return repository.Page{}, nil
}

func (r *fakeRepo) Statistics(ctx context.Context, from, to time.Time) (repository.Statistics, error) {
	return repository.Statistics{}, nil
}

func (r *fakeRepo) Exists(ctx context.Context, id batch.BatchId) (bool, error) {
	_, ok := r.batches[id]
	return ok, nil
}

func (r *fakeRepo) CountByStatus(ctx context.Context, status batch.Status) (int, error) {
	return 0, nil
}

func (r *fakeRepo) FindExpired(ctx context.Context, now time.Time) ([]*batch.Batch, error) {
	return nil, nil
}

// fakeBridge is an in-memory bridge.BlockchainBridge for orchestrator
// tests.
type fakeBridge struct {
	submitCommitmentErr error
	revealErr           error
	createErr           error
	finalizeErr         error

	receipt bridge.TxReceipt
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{receipt: bridge.TxReceipt{Hash: "0xfeed", BlockNumber: 1, GasUsed: 21000, Status: 1}}
}

func (b *fakeBridge) SubmitCommitment(ctx context.Context, batchID batch.BatchId, c batch.Commitment) (bridge.TxReceipt, error) {
	if b.submitCommitmentErr != nil {
		return bridge.TxReceipt{}, b.submitCommitmentErr
	}
	return b.receipt, nil
}

func (b *fakeBridge) RevealTransaction(ctx context.Context, batchID batch.BatchId, r batch.RevealedTransaction) (bridge.TxReceipt, error) {
	if b.revealErr != nil {
		return bridge.TxReceipt{}, b.revealErr
	}
	return b.receipt, nil
}

func (b *fakeBridge) CreateNewBatch(ctx context.Context, bt *batch.Batch) (bridge.TxReceipt, error) {
	if b.createErr != nil {
		return bridge.TxReceipt{}, b.createErr
	}
	return b.receipt, nil
}

func (b *fakeBridge) FinalizeBatch(ctx context.Context, batchID batch.BatchId, ordering []string, metrics batch.MEVMetrics) (bridge.TxReceipt, error) {
	if b.finalizeErr != nil {
		return bridge.TxReceipt{}, b.finalizeErr
	}
	return b.receipt, nil
}

func (b *fakeBridge) GetBatchData(ctx context.Context, batchID batch.BatchId) (map[string]interface{}, error) {
	return map[string]interface{}{"txHash": b.receipt.Hash}, nil
}

func (b *fakeBridge) GetCurrentActiveBatchID(ctx context.Context) (batch.BatchId, error) {
	return batch.BatchId{}, nil
}

func (b *fakeBridge) GetCommitmentHash(ctx context.Context, batchID batch.BatchId, userAddress string) (string, error) {
	return "", nil
}

func (b *fakeBridge) OnCommitmentSubmitted(handler bridge.ChainEventHandler) {}
func (b *fakeBridge) OnTransactionRevealed(handler bridge.ChainEventHandler) {}
func (b *fakeBridge) OnBatchFinalized(handler bridge.ChainEventHandler)      {}

func (b *fakeBridge) StartEventListening(ctx context.Context) error { return nil }
func (b *fakeBridge) StopEventListening() error                     { return nil }
