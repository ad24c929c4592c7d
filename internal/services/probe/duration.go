package probe

import (
	"strconv"
	"strings"
)

// parseLatencyMs converts a ping RTT token to whole milliseconds.
// RouterOS prints "956us", "10ms", "1s", or occasionally a bare number,
// which is already milliseconds. Sub-millisecond values floor to 1.
func parseLatencyMs(raw string) (int64, bool) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return 0, false
	}

	switch {
	case strings.HasSuffix(token, "us"):
		us, err := strconv.ParseFloat(strings.TrimSuffix(token, "us"), 64)
		if err != nil {
			return 0, false
		}
		ms := int64(us / 1000)
		if ms < 1 {
			ms = 1
		}
		return ms, true
	case strings.HasSuffix(token, "ms"):
		ms, err := strconv.ParseFloat(strings.TrimSuffix(token, "ms"), 64)
		if err != nil {
			return 0, false
		}
		return int64(ms), true
	case strings.HasSuffix(token, "s"):
		s, err := strconv.ParseFloat(strings.TrimSuffix(token, "s"), 64)
		if err != nil {
			return 0, false
		}
		return int64(s * 1000), true
	}

	ms, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return int64(ms), true
}
