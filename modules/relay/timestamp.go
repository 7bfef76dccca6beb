package relay

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// maxUnixMillis is the largest magnitude a JavaScript Date accepts.
const maxUnixMillis = 8.64e15

// ParseTimestamp decodes a client supplied createdAt value. It accepts an
// RFC 3339 string or a number of Unix milliseconds. Anything else, including
// an absent value or a time whose year does not fit in four digits, yields
// fallback.
func ParseTimestamp(raw json.RawMessage, fallback time.Time) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999Z07:00"} {
			if t, err := time.Parse(layout, s); err == nil {
				return inRange(t.UTC(), fallback)
			}
		}
		return fallback
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if math.IsNaN(ms) || math.Abs(ms) > maxUnixMillis {
			return fallback
		}
		return inRange(time.UnixMilli(int64(ms)).UTC(), fallback)
	}

	return fallback
}

// inRange returns t when it can be encoded as JSON, otherwise fallback.
func inRange(t, fallback time.Time) time.Time {
	if y := t.Year(); y < 0 || y > 9999 {
		return fallback
	}
	return t
}
