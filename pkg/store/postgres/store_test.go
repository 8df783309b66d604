// Copyright 2025 Certen Protocol
//
// Open dials a live Postgres instance, so only the pure row<->aggregate
// marshaling helpers are unit-testable without a running database.

package postgres

import (
	"math/big"
	"testing"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
)

func TestBigStringRoundTrip(t *testing.T) {
	if bigString(nil) != "0" {
		t.Fatal("expected bigString(nil) to be \"0\"")
	}
	v := big.NewInt(123456789)
	if got := parseBig(bigString(v)); got.Cmp(v) != 0 {
		t.Fatalf("expected round trip to preserve value, got %s", got)
	}
	if got := parseBig("not-a-number"); got.Cmp(big.NewInt(0)) != 0 {
		t.Fatal("expected parseBig to fall back to 0 on malformed input")
	}
}

func TestToRowFromRowRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	id := batch.NewBatchId()

	b, err := batch.NewBatch(now.Add(time.Minute), now.Add(time.Hour), batch.OrderingCommitReveal, 20*time.Minute, 10*time.Minute, now)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	addr := "0x0000000000000000000000000000000000000002"
	commitTime := b.StartTime().Add(time.Second)
	hash := "0x" + "1122334455667788990011223344556677889900112233445566778899001122"
	c, err := batch.NewCommitment(hash, addr, commitTime, "", commitTime)
	if err != nil {
		t.Fatalf("NewCommitment: %v", err)
	}
	if err := b.AddCommitment(c, commitTime); err != nil {
		t.Fatalf("AddCommitment: %v", err)
	}

	r := toRow(b)
	if len(r.Commitments) != 1 {
		t.Fatalf("expected 1 commitment in the row, got %d", len(r.Commitments))
	}

	rehydrated := fromRow(id, b.StartTime(), b.EndTime(), b.OrderingMethod(), b.CommitmentPhaseEnd(), b.RevealPhaseEnd(), b.Status(), r, b.CreatedAt(), b.UpdatedAt())
	if rehydrated.CommitmentCount() != 1 {
		t.Fatalf("expected the rehydrated batch to carry 1 commitment, got %d", rehydrated.CommitmentCount())
	}
	got := rehydrated.Commitments()[addr]
	if got.Hash != hash {
		t.Fatalf("expected commitment hash to round-trip, got %q", got.Hash)
	}
}
