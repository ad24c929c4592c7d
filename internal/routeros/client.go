package routeros

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"

	goros "github.com/go-routeros/routeros/v3"
)

// Runner is the command-execution contract consumed by the collector,
// reconciler, prober and session tracker. A Session satisfies it; tests use
// the programmable mock package instead.
type Runner interface {
	Run(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error)
}

// Session is one open RouterOS API connection. Sessions are never reused
// across refresh cycles: the orchestrator opens one per device per tick and
// closes it unconditionally before returning.
type Session struct {
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *goros.Client
	done bool

	dialFn  func(ctx context.Context, cfg Config) (*goros.Client, error)
	runFn   func(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error)
	closeFn func(conn *goros.Client)
}

// Open dials the device and authenticates. Failures are classified into a
// ConnectError (timeout, refused, unreachable, auth).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	normalized, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	session := &Session{
		config:  normalized,
		logger:  logger,
		dialFn:  defaultDial,
		runFn:   defaultRun,
		closeFn: defaultClose,
	}

	conn, err := session.dialFn(ctx, normalized)
	if err != nil {
		return nil, classifyConnectError(normalized.Address, err)
	}
	session.conn = conn
	return session, nil
}

// Run executes one command and returns its reply rows in device order.
// Heterogeneous row keys are preserved as-is.
func (s *Session) Run(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error) {
	s.mu.Lock()
	conn := s.conn
	closed := s.done
	s.mu.Unlock()
	if closed || conn == nil {
		return nil, fmt.Errorf("run %s: session closed", cmd)
	}

	sentence := append([]string{cmd}, mapParams(params)...)
	reply, err := s.runFn(ctx, conn, sentence...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", cmd, err)
	}
	return mapReplyRows(reply), nil
}

// Close tears the connection down. It is idempotent and best-effort;
// close failures are swallowed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	if s.conn != nil {
		s.closeFn(s.conn)
		s.conn = nil
	}
}

func defaultDial(ctx context.Context, cfg Config) (*goros.Client, error) {
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}, //nolint:gosec
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", cfg.Address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Address)
	}
	if err != nil {
		return nil, err
	}

	client, err := goros.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := client.Login(cfg.Username, cfg.Password); err != nil {
		client.Close()
		return nil, err
	}

	// Async mode multiplexes concurrent commands over the single
	// connection, which the latency prober relies on.
	client.Async()
	return client, nil
}

func defaultRun(ctx context.Context, conn *goros.Client, sentence ...string) (*goros.Reply, error) {
	type result struct {
		reply *goros.Reply
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		reply, err := conn.Run(sentence...)
		ch <- result{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.reply, res.err
	}
}

func defaultClose(conn *goros.Client) {
	conn.Close()
}
