package repository

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidLimit = errors.New("invalid session list limit")
)
