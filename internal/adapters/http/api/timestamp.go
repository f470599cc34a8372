// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"time"
)

// sampleTime decodes a sample timestamp from either representation the
// capture collaborators send: numeric seconds or an RFC3339 string. Both
// normalize to float64 seconds here, so the domain layer only ever sees
// numeric capture-clock values.
type sampleTime float64

// UnmarshalJSON implements the dual-format decoding.
func (t *sampleTime) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*t = sampleTime(float64(parsed.UnixNano()) / 1e9)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = sampleTime(v)
	return nil
}

// Seconds returns the normalized timestamp.
func (t sampleTime) Seconds() float64 {
	return float64(t)
}
