package routeros

import (
	"sort"
	"strconv"
	"strings"

	goros "github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
)

func mapReplyRows(reply *goros.Reply) []map[string]string {
	if reply == nil || len(reply.Re) == 0 {
		return []map[string]string{}
	}
	rows := make([]map[string]string, 0, len(reply.Re))
	for _, sentence := range reply.Re {
		rows = append(rows, mapSentence(sentence))
	}
	return rows
}

func mapSentence(sentence *proto.Sentence) map[string]string {
	mapped := make(map[string]string)
	if sentence == nil {
		return mapped
	}
	for key, value := range sentence.Map {
		mapped[key] = value
	}
	for _, pair := range sentence.List {
		mapped[pair.Key] = pair.Value
	}
	return mapped
}

func mapParams(params map[string]string) []string {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	words := make([]string, 0, len(keys))
	for _, key := range keys {
		value := params[key]
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "?"):
			words = append(words, trimmed+"="+value)
		case strings.HasPrefix(trimmed, "="):
			name := strings.TrimPrefix(trimmed, "=")
			words = append(words, "="+name+"="+value)
		default:
			words = append(words, "="+trimmed+"="+value)
		}
	}
	return words
}

// BoolFromWord interprets RouterOS yes/no style flags.
func BoolFromWord(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first non-blank value.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ParseInt64 reads a decimal counter field, returning 0 for blanks.
func ParseInt64(value string) int64 {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// ParseFloat64 reads a decimal field, returning 0 for blanks.
func ParseFloat64(value string) float64 {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return parsed
}

var uptimeUnits = []struct {
	suffix  string
	seconds int64
}{
	{"w", 7 * 24 * 3600},
	{"d", 24 * 3600},
	{"h", 3600},
	{"m", 60},
	{"s", 1},
}

// ParseUptime converts RouterOS uptime text like "2w3d4h5m6s" to seconds.
// An "hh:mm:ss" tail is also accepted. Unparseable input yields 0.
func ParseUptime(value string) int64 {
	clean := strings.TrimSpace(strings.ToLower(value))
	if clean == "" {
		return 0
	}

	var total int64
	rest := clean
	for _, unit := range uptimeUnits {
		idx := strings.Index(rest, unit.suffix)
		if idx <= 0 {
			continue
		}
		number := rest[:idx]
		parsed, err := strconv.ParseInt(number, 10, 64)
		if err != nil {
			return 0
		}
		total += parsed * unit.seconds
		rest = rest[idx+1:]
	}
	if rest == "" {
		return total
	}

	// Remainder may be a clock-style hh:mm:ss segment.
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return total
	}
	multipliers := []int64{3600, 60, 1}
	for i, part := range parts {
		parsed, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return total
		}
		total += parsed * multipliers[i]
	}
	return total
}
