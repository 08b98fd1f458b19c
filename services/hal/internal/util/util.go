// services/hal/internal/util/util.go
package util

import (
	"encoding/json"
	"errors"
	"time"

	"envcode-go/x/mathx"
)

// Sampling period bounds applied to config and set_rate.
const (
	MinPeriod = 200 * time.Millisecond
	MaxPeriod = time.Hour
)

func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// DecodeJSON decodes bytes, a JSON string, or any JSON-marshalable value
// (typically map[string]any or a typed struct) into dst. A nil src leaves
// dst untouched.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return nil
	case T:
		*dst = v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

// Errf builds a plain error by concatenation; no fmt on MCU builds.
func Errf(parts ...string) error {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for _, p := range parts {
		b = append(b, p...)
	}
	return errors.New(string(b))
}

// ClampPeriod bounds a sampling period to [MinPeriod, MaxPeriod].
func ClampPeriod(d time.Duration) time.Duration {
	return mathx.Clamp(d, MinPeriod, MaxPeriod)
}
