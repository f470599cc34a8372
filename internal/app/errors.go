package app

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrSessionNotFound   = errors.New("session not found")
	ErrBackpressure      = errors.New("sample queue full")
	ErrDuplicateBatch    = errors.New("duplicate batch")
	ErrNotStanding       = errors.New("subject is not standing")
	ErrRombergIncomplete = errors.New("romberg phases too short")
	ErrEmptyBatch        = errors.New("empty sample batch")
)
