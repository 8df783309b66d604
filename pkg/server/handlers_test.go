// Copyright 2025 Certen Protocol

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
	"github.com/certen/fair-sequencer/pkg/events"
	"github.com/certen/fair-sequencer/pkg/repository"
	"github.com/certen/fair-sequencer/pkg/usecase"
)

type memRepo struct {
	batches map[batch.BatchId]*batch.Batch
}

func newMemRepo() *memRepo { return &memRepo{batches: make(map[batch.BatchId]*batch.Batch)} }

func (r *memRepo) Save(ctx context.Context, b *batch.Batch) error {
	r.batches[b.ID()] = b
	return nil
}
func (r *memRepo) FindByID(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	return r.batches[id], nil
}
func (r *memRepo) FindByIDOrThrow(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	return r.batches[id], nil
}
func (r *memRepo) Delete(ctx context.Context, id batch.BatchId) error { return nil }
func (r *memRepo) GetCurrentActiveBatch(ctx context.Context, now time.Time) (*batch.Batch, error) {
	return nil, nil
}
func (r *memRepo) FindByStatus(ctx context.Context, status batch.Status) ([]*batch.Batch, error) {
	return nil, nil
}
func (r *memRepo) FindRecent(ctx context.Context, limit int) ([]*batch.Batch, error) { return nil, nil }
func (r *memRepo) FindInDateRange(ctx context.Context, from, to time.Time) ([]*batch.Batch, error) {
	return nil, nil
}
func (r *memRepo) FindAllPaginated(ctx context.Context, page, limit int, filters repository.Filters) (repository.Page, error) {
	return repository.Page{}, nil
}
func (r *memRepo) Statistics(ctx context.Context, from, to time.Time) (repository.Statistics, error) {
	return repository.Statistics{}, nil
}
func (r *memRepo) Exists(ctx context.Context, id batch.BatchId) (bool, error) { return false, nil }
func (r *memRepo) CountByStatus(ctx context.Context, status batch.Status) (int, error) {
	return 0, nil
}
func (r *memRepo) FindExpired(ctx context.Context, now time.Time) ([]*batch.Batch, error) {
	return nil, nil
}

type memBridge struct{}

func (memBridge) SubmitCommitment(ctx context.Context, batchID batch.BatchId, c batch.Commitment) (bridge.TxReceipt, error) {
	return bridge.TxReceipt{Hash: "0xabc"}, nil
}
func (memBridge) RevealTransaction(ctx context.Context, batchID batch.BatchId, r batch.RevealedTransaction) (bridge.TxReceipt, error) {
	return bridge.TxReceipt{Hash: "0xabc"}, nil
}
func (memBridge) CreateNewBatch(ctx context.Context, b *batch.Batch) (bridge.TxReceipt, error) {
	return bridge.TxReceipt{Hash: "0xabc"}, nil
}
func (memBridge) FinalizeBatch(ctx context.Context, batchID batch.BatchId, ordering []string, metrics batch.MEVMetrics) (bridge.TxReceipt, error) {
	return bridge.TxReceipt{Hash: "0xabc"}, nil
}
func (memBridge) GetBatchData(ctx context.Context, batchID batch.BatchId) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (memBridge) GetCurrentActiveBatchID(ctx context.Context) (batch.BatchId, error) {
	return batch.BatchId{}, nil
}
func (memBridge) GetCommitmentHash(ctx context.Context, batchID batch.BatchId, userAddress string) (string, error) {
	return "", nil
}
func (memBridge) OnCommitmentSubmitted(handler bridge.ChainEventHandler) {}
func (memBridge) OnTransactionRevealed(handler bridge.ChainEventHandler) {}
func (memBridge) OnBatchFinalized(handler bridge.ChainEventHandler)      {}
func (memBridge) StartEventListening(ctx context.Context) error         { return nil }
func (memBridge) StopEventListening() error                             { return nil }

func newTestServer() *Server {
	repo := newMemRepo()
	br := memBridge{}
	disp := events.New(nil)

	return New(Dependencies{
		CreateBatch:       usecase.NewCreateBatch(repo, br, disp, nil),
		SubmitCommitment:  usecase.NewSubmitCommitment(repo, br, disp, nil),
		RevealTransaction: usecase.NewRevealTransaction(repo, br, disp, nil),
		AdvancePhase:      usecase.NewAdvanceBatchPhase(repo, br, disp, nil),
		FinalizeBatch:     usecase.NewFinalizeBatch(repo, br, disp, nil),
		CancelBatch:       usecase.NewCancelBatch(repo, br, disp, nil),
		Version:           "test",
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "OK" {
		t.Fatalf("expected status OK, got %q", body.Status)
	}
}

func TestHandleBatchesCreatesABatch(t *testing.T) {
	s := newTestServer()
	now := time.Now().Add(time.Hour)

	reqBody, _ := json.Marshal(map[string]interface{}{
		"start_time":      now,
		"end_time":        now.Add(time.Hour),
		"ordering_method": string(batch.OrderingCommitReveal),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBatchesRejectsNonPost(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleSubmitCommitmentNoActiveBatch(t *testing.T) {
	s := newTestServer()
	reqBody, _ := json.Marshal(map[string]string{
		"user_address":    "0x0000000000000000000000000000000000000002",
		"commitment_hash": "0x" + "11223344556677889900112233445566778899001122334455667788990011",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/commitments", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for no active batch, got %d: %s", rec.Code, rec.Body.String())
	}
}
