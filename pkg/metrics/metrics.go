// Copyright 2025 Certen Protocol
//
// Prometheus instrumentation for the batch lifecycle. The teacher's
// go.mod carries github.com/prometheus/client_golang as a direct
// dependency without ever importing it; this package is the first
// concrete user of that dependency in this codebase.

package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/events"
)

// Registry wraps the collectors this service exposes under /metrics.
type Registry struct {
	registry *prometheus.Registry

	batchesCreated      *prometheus.CounterVec
	batchesCompleted    prometheus.Counter
	batchesCancelled    prometheus.Counter
	phaseTransitions    *prometheus.CounterVec
	commitmentsAccepted prometheus.Counter
	revealsAccepted     prometheus.Counter
	revealRate          prometheus.Histogram
	mevExtractedWei     prometheus.Counter
	savingsGeneratedWei prometheus.Counter
	bridgeCallDuration  *prometheus.HistogramVec
	bridgeCallFailures  *prometheus.CounterVec
}

// New constructs and registers every collector against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		batchesCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "batches_created_total",
			Help:      "Number of commit-reveal batches opened, labeled by ordering method.",
		}, []string{"ordering_method"}),
		batchesCompleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "batches_completed_total",
			Help:      "Number of batches that reached COMPLETED.",
		}),
		batchesCancelled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "batches_cancelled_total",
			Help:      "Number of batches that were administratively cancelled.",
		}),
		phaseTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "phase_transitions_total",
			Help:      "Number of batch phase transitions, labeled by destination phase.",
		}, []string{"to"}),
		commitmentsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "commitments_accepted_total",
			Help:      "Number of commitments accepted across all batches.",
		}),
		revealsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "reveals_accepted_total",
			Help:      "Number of transaction reveals accepted across all batches.",
		}),
		revealRate: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "fairseq",
			Name:      "batch_reveal_rate",
			Help:      "Fraction of commitments that were revealed, recorded at batch finalization.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		mevExtractedWei: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "mev_extracted_wei_total",
			Help:      "Cumulative MEV extracted across finalized batches, in wei (as a float approximation).",
		}),
		savingsGeneratedWei: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "savings_generated_wei_total",
			Help:      "Cumulative user savings attributed to fair ordering, in wei (as a float approximation).",
		}),
		bridgeCallDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fairseq",
			Name:      "bridge_call_duration_seconds",
			Help:      "Latency of calls to the on-chain commit-reveal contract, labeled by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		bridgeCallFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fairseq",
			Name:      "bridge_call_failures_total",
			Help:      "Number of failed on-chain bridge calls, labeled by method.",
		}, []string{"method"}),
	}
	return r
}

// Handler exposes the registry's collectors in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) RecordBatchCreated(method batch.OrderingMethod) {
	r.batchesCreated.WithLabelValues(string(method)).Inc()
}

func (r *Registry) RecordPhaseTransition(to batch.Status) {
	r.phaseTransitions.WithLabelValues(string(to)).Inc()
}

func (r *Registry) RecordCommitmentAccepted() { r.commitmentsAccepted.Inc() }
func (r *Registry) RecordRevealAccepted()     { r.revealsAccepted.Inc() }

func (r *Registry) RecordBatchCancelled() { r.batchesCancelled.Inc() }

// RecordBatchFinalized records the terminal metrics for a COMPLETED batch.
// revealRate is the batch's reveal rate (reveals over commitments, as
// returned by Batch.RevealRate), observed separately from the domain event stream since
// BatchFinalizedEvent does not itself carry the commitment count.
func (r *Registry) RecordBatchFinalized(revealRate float64, extracted, savings *big.Int) {
	r.batchesCompleted.Inc()
	r.revealRate.Observe(revealRate)
	r.mevExtractedWei.Add(weiToFloat(extracted))
	r.savingsGeneratedWei.Add(weiToFloat(savings))
}

// RecordFinalizedTotals records only the value counters, used by the
// event-driven path where the reveal rate is not available.
func (r *Registry) RecordFinalizedTotals(extracted, savings *big.Int) {
	r.batchesCompleted.Inc()
	r.mevExtractedWei.Add(weiToFloat(extracted))
	r.savingsGeneratedWei.Add(weiToFloat(savings))
}

func (r *Registry) RecordBridgeCall(method string, seconds float64, err error) {
	r.bridgeCallDuration.WithLabelValues(method).Observe(seconds)
	if err != nil {
		r.bridgeCallFailures.WithLabelValues(method).Inc()
	}
}

func weiToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}

// Subscribe wires the registry's counters to a dispatcher so metrics
// stay in sync with the domain event stream rather than requiring each
// call site to remember to record them.
func (r *Registry) Subscribe(on func(name string, h events.Handler)) {
	on("BatchCreated", func(e batch.Event) {
		if ev, ok := e.(batch.BatchCreatedEvent); ok {
			r.RecordBatchCreated(ev.OrderingMethod)
		}
	})
	on("CommitmentAdded", func(batch.Event) { r.RecordCommitmentAccepted() })
	on("TransactionRevealed", func(batch.Event) { r.RecordRevealAccepted() })
	on("BatchStatusChanged", func(e batch.Event) {
		if ev, ok := e.(batch.BatchStatusChangedEvent); ok {
			r.RecordPhaseTransition(ev.To)
		}
	})
	on("BatchCancelled", func(batch.Event) { r.RecordBatchCancelled() })
	on("BatchFinalized", func(e batch.Event) {
		if ev, ok := e.(batch.BatchFinalizedEvent); ok {
			r.RecordFinalizedTotals(ev.MEVExtracted, ev.SavingsGenerated)
		}
	})
}
