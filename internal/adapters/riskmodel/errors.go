package riskmodel

import "errors"

// Sentinel kinds for model client errors.
var (
	ErrBadStatus = errors.New("risk model returned non-200 status")
)
