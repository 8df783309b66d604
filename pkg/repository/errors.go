// Copyright 2025 Certen Protocol

package repository

import "errors"

// Sentinel errors for repository operations. FindByID and
// GetCurrentActiveBatch report absence as (nil, nil); FindByIDOrThrow
// reports it as ErrBatchNotFound.
var (
	ErrBatchNotFound          = errors.New("batch not found")
	ErrNoActiveBatch          = errors.New("no active batch")
	ErrConcurrentModification = errors.New("batch was concurrently modified")
)
