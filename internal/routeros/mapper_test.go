package routeros

import "testing"

func TestParseUptime(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"45s", 45},
		{"4m5s", 245},
		{"1h2m3s", 3723},
		{"2w3d", 2*7*24*3600 + 3*24*3600},
		{"1d00:00:01", 24*3600 + 1},
		{"10:20:30", 10*3600 + 20*60 + 30},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := ParseUptime(tc.in); got != tc.want {
			t.Fatalf("ParseUptime(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMapParamsQueryWords(t *testing.T) {
	words := mapParams(map[string]string{
		"?disabled": "no",
		".proplist": "host,status",
	})
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %v", words)
	}
	if words[0] != "=.proplist=host,status" {
		t.Fatalf("unexpected first word %q", words[0])
	}
	if words[1] != "?disabled=no" {
		t.Fatalf("query prefix must be preserved, got %q", words[1])
	}
}

func TestBoolFromWord(t *testing.T) {
	for _, truthy := range []string{"true", "yes", " on ", "enabled"} {
		if !BoolFromWord(truthy) {
			t.Fatalf("expected %q to be true", truthy)
		}
	}
	for _, falsy := range []string{"", "no", "false", "disabled"} {
		if BoolFromWord(falsy) {
			t.Fatalf("expected %q to be false", falsy)
		}
	}
}
