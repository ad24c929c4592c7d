package probe

import "testing"

func TestParseLatencyMs(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{raw: "956us", want: 1, ok: true},
		{raw: "2500us", want: 2, ok: true},
		{raw: "10ms", want: 10, ok: true},
		{raw: "1s", want: 1000, ok: true},
		{raw: "1.5s", want: 1500, ok: true},
		{raw: "23", want: 23, ok: true},
		{raw: "", ok: false},
		{raw: "n/a", ok: false},
	}
	for _, tc := range tests {
		got, ok := parseLatencyMs(tc.raw)
		if ok != tc.ok {
			t.Fatalf("parseLatencyMs(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("parseLatencyMs(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
