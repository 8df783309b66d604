// Copyright 2025 Certen Protocol
//
// HTTP surface for the fair-sequencer coordinator: /health, the
// service status endpoint, and the use-case-backed JSON API, grounded
// on the teacher's pkg/server/batch_handlers.go shape — a handler
// struct holding its collaborators and a *log.Logger, raw net/http
// without a router framework, writeJSONError for error bodies.

package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/certen/fair-sequencer/pkg/usecase"
)

// Server wires the use-case orchestrators to HTTP handlers.
type Server struct {
	mux *http.ServeMux

	createBatch       *usecase.CreateBatch
	submitCommitment  *usecase.SubmitCommitment
	revealTransaction *usecase.RevealTransaction
	advancePhase      *usecase.AdvanceBatchPhase
	finalizeBatch     *usecase.FinalizeBatch
	cancelBatch       *usecase.CancelBatch

	logger    *log.Logger
	startedAt time.Time
	version   string
}

// Dependencies bundles every use-case the server dispatches to.
type Dependencies struct {
	CreateBatch       *usecase.CreateBatch
	SubmitCommitment  *usecase.SubmitCommitment
	RevealTransaction *usecase.RevealTransaction
	AdvancePhase      *usecase.AdvanceBatchPhase
	FinalizeBatch     *usecase.FinalizeBatch
	CancelBatch       *usecase.CancelBatch
	Logger            *log.Logger
	Version           string
}

// New builds the server and registers every route.
func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Server] ", log.LstdFlags)
	}
	s := &Server{
		mux:               http.NewServeMux(),
		createBatch:       deps.CreateBatch,
		submitCommitment:  deps.SubmitCommitment,
		revealTransaction: deps.RevealTransaction,
		advancePhase:      deps.AdvancePhase,
		finalizeBatch:     deps.FinalizeBatch,
		cancelBatch:       deps.CancelBatch,
		logger:            logger,
		startedAt:         time.Now(),
		version:           deps.Version,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/status", s.handleStatus)
	s.mux.HandleFunc("/api/v1/batches", s.handleBatches)
	s.mux.HandleFunc("/api/v1/batches/commitments", s.handleSubmitCommitment)
	s.mux.HandleFunc("/api/v1/batches/reveals", s.handleRevealTransaction)
	s.mux.HandleFunc("/api/v1/batches/advance", s.handleAdvancePhase)
	s.mux.HandleFunc("/api/v1/batches/finalize", s.handleFinalizeBatch)
	s.mux.HandleFunc("/api/v1/batches/cancel", s.handleCancelBatch)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Timestamp: time.Now()})
}

type statusResponse struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	UptimeSec float64   `json:"uptime_seconds"`
	Now       time.Time `json:"now"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Service:   "fair-sequencer",
		Version:   s.version,
		UptimeSec: time.Since(s.startedAt).Seconds(),
		Now:       time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorBody is the stable {code, message} shape spec §7 requires.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// statusForCode maps a usecase.Code to the HTTP status spec §6 assigns
// it: validation/domain -> 400, not-found conditions -> 404,
// infrastructure failures -> 500.
func statusForCode(code usecase.Code) int {
	switch code {
	case usecase.CodeValidation, usecase.CodeDomain:
		return http.StatusBadRequest
	case usecase.CodeBatchNotFound, usecase.CodeNoActiveBatch:
		return http.StatusNotFound
	case usecase.CodeDatabase, usecase.CodeBlockchainConnection, usecase.CodeContractInteraction, usecase.CodePersistenceAfterCommit:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeResult[T any](w http.ResponseWriter, res usecase.Result[T]) {
	if !res.OK {
		writeJSONError(w, statusForCode(res.Code), string(res.Code), res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}
