package routeros

import (
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: i/o timeout" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestClassifyConnectError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ConnectKind
	}{
		{"timeout", &fakeNetError{timeout: true}, ConnectTimeout},
		{"refused", errors.New("dial tcp 10.0.0.1:8728: connect: connection refused"), ConnectRefused},
		{"unreachable", errors.New("dial tcp 10.0.0.1:8728: connect: no route to host"), ConnectUnreachable},
		{"auth", errors.New("from RouterOS device: invalid user name or password (6)"), ConnectAuth},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyConnectError("10.0.0.1:8728", tc.err)
			if got.Kind != tc.want {
				t.Fatalf("expected kind %s, got %s", tc.want, got.Kind)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("classified error must wrap the original")
			}
		})
	}
}

func TestIsConnectError(t *testing.T) {
	base := classifyConnectError("10.0.0.1:8728", errors.New("connection refused"))
	wrapped := fmt.Errorf("open session: %w", base)
	if !IsConnectError(wrapped) {
		t.Fatalf("expected wrapped ConnectError to be detected")
	}
	if IsConnectError(errors.New("malformed reply")) {
		t.Fatalf("plain error must not classify as connect error")
	}
}
