// Copyright 2025 Certen Protocol

package metrics

import (
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/events"
)

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	r := New()
	r.RecordBatchCreated(batch.OrderingCommitReveal)
	r.RecordCommitmentAccepted()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fairseq_batches_created_total") {
		t.Fatal("expected the batches_created counter to appear in the exposition output")
	}
	if !strings.Contains(body, "fairseq_commitments_accepted_total 1") {
		t.Fatal("expected the commitments_accepted counter to read 1")
	}
}

func TestSubscribeWiresDomainEvents(t *testing.T) {
	r := New()
	disp := events.New(nil)
	r.Subscribe(disp.On)

	now := time.Unix(1_700_000_000, 0).UTC()
	b, err := batch.NewBatch(now.Add(time.Minute), now.Add(time.Hour), batch.OrderingCommitReveal, 0, 0, now)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	disp.Drain(b)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), `fairseq_batches_created_total{ordering_method="commit-reveal"} 1`) {
		t.Fatalf("expected BatchCreated to be wired through to batches_created_total, got body:\n%s", rec.Body.String())
	}
}

func TestWeiToFloatHandlesNil(t *testing.T) {
	if weiToFloat(nil) != 0 {
		t.Fatal("expected weiToFloat(nil) to be 0")
	}
	if weiToFloat(big.NewInt(10)) != 10 {
		t.Fatal("expected weiToFloat to convert a small integer exactly")
	}
}
