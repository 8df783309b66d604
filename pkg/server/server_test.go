// Copyright 2025 Certen Protocol

package server

import (
	"net/http"
	"testing"

	"github.com/certen/fair-sequencer/pkg/usecase"
)

func TestStatusForCode(t *testing.T) {
	cases := []struct {
		code usecase.Code
		want int
	}{
		{usecase.CodeValidation, http.StatusBadRequest},
		{usecase.CodeDomain, http.StatusBadRequest},
		{usecase.CodeBatchNotFound, http.StatusNotFound},
		{usecase.CodeNoActiveBatch, http.StatusNotFound},
		{usecase.CodeDatabase, http.StatusInternalServerError},
		{usecase.CodeBlockchainConnection, http.StatusInternalServerError},
		{usecase.CodeContractInteraction, http.StatusInternalServerError},
		{usecase.CodePersistenceAfterCommit, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusForCode(c.code); got != c.want {
			t.Errorf("statusForCode(%s) = %d, want %d", c.code, got, c.want)
		}
	}
}
