// Package timex holds small time helpers shared by configuration and storage.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("10s", "1m30s") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	}
	return errors.New("invalid duration")
}

// Clock returns the current time. Stores take one so tests can pin it.
type Clock func() time.Time

// UTCMicro is the default Clock: wall time in UTC truncated to microseconds,
// the precision Postgres keeps for timestamp columns.
func UTCMicro() time.Time {
	return Truncate(time.Now())
}

// Truncate normalizes t the same way UTCMicro does.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
