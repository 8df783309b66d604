// Copyright 2025 Certen Protocol
//
// New dials a live JSON-RPC endpoint, so only the pure helpers here are
// unit-testable without a running chain.

package chain

import (
	"testing"

	"github.com/certen/fair-sequencer/pkg/batch"
)

func TestBatchIDBytes32IsStableAndDistinct(t *testing.T) {
	a := batch.NewBatchId()
	b := batch.NewBatchId()

	if batchIDBytes32(a) != batchIDBytes32(a) {
		t.Fatal("expected batchIDBytes32 to be deterministic for the same id")
	}
	if batchIDBytes32(a) == batchIDBytes32(b) {
		t.Fatal("expected distinct batch ids to produce distinct bytes32 values")
	}
}
