package routeros

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	goros "github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPreservesRowOrderAndKeys(t *testing.T) {
	session := &Session{
		config: Config{Address: "127.0.0.1:8728", Username: "u", Timeout: time.Second},
		logger: testLogger(),
		conn:   &goros.Client{},
		runFn: func(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error) {
			return &goros.Reply{
				Re: []*proto.Sentence{
					{Word: "!re", Map: map[string]string{"name": "ether1", "rx-byte": "100"}},
					{Word: "!re", Map: map[string]string{"host": "8.8.8.8"}},
				},
				Done: &proto.Sentence{Word: "!done", Map: map[string]string{}},
			}, nil
		},
		closeFn: func(conn *goros.Client) {},
	}

	rows, err := session.Run(context.Background(), "/interface/print", nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "ether1" {
		t.Fatalf("row order not preserved: %v", rows)
	}
	if rows[1]["host"] != "8.8.8.8" {
		t.Fatalf("heterogeneous keys lost: %v", rows)
	}
}

func TestRunAfterCloseFails(t *testing.T) {
	closeCalls := 0
	session := &Session{
		config: Config{Address: "127.0.0.1:8728", Username: "u", Timeout: time.Second},
		logger: testLogger(),
		conn:   &goros.Client{},
		runFn: func(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error) {
			return &goros.Reply{Done: &proto.Sentence{Word: "!done", Map: map[string]string{}}}, nil
		},
		closeFn: func(conn *goros.Client) { closeCalls++ },
	}

	session.Close()
	session.Close()
	if closeCalls != 1 {
		t.Fatalf("close must be idempotent, got %d underlying closes", closeCalls)
	}

	if _, err := session.Run(context.Background(), "/system/identity/print", nil); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestRunWrapsCommandError(t *testing.T) {
	expected := errors.New("no such command")
	session := &Session{
		config: Config{Address: "127.0.0.1:8728", Username: "u", Timeout: time.Second},
		logger: testLogger(),
		conn:   &goros.Client{},
		runFn: func(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error) {
			return nil, expected
		},
		closeFn: func(conn *goros.Client) {},
	}

	_, err := session.Run(context.Background(), "/x", nil)
	if !errors.Is(err, expected) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
}

func TestRunParamsEncoding(t *testing.T) {
	var captured []string
	session := &Session{
		config: Config{Address: "127.0.0.1:8728", Username: "u", Timeout: time.Second},
		logger: testLogger(),
		conn:   &goros.Client{},
		runFn: func(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error) {
			captured = append([]string(nil), sentence...)
			return &goros.Reply{Done: &proto.Sentence{Word: "!done", Map: map[string]string{}}}, nil
		},
		closeFn: func(conn *goros.Client) {},
	}

	if _, err := session.Run(context.Background(), "/ping", map[string]string{
		"address": "1.1.1.1",
		"count":   "3",
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{"/ping", "=address=1.1.1.1", "=count=3"}
	if len(captured) != len(want) {
		t.Fatalf("expected %v, got %v", want, captured)
	}
	for i := range want {
		if captured[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, captured)
		}
	}
}
