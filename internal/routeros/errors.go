package routeros

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	goros "github.com/go-routeros/routeros/v3"
)

// ValidationError describes a user-supplied invalid value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConnectKind distinguishes why a session could not be established.
type ConnectKind string

const (
	ConnectTimeout     ConnectKind = "timeout"
	ConnectRefused     ConnectKind = "refused"
	ConnectUnreachable ConnectKind = "unreachable"
	ConnectAuth        ConnectKind = "auth"
)

// ConnectError is fatal for a refresh cycle: the device could not be
// reached or refused the credentials. The orchestrator marks the device
// offline on this error and on no other.
type ConnectError struct {
	Address string
	Kind    ConnectKind
	Err     error
}

func (e *ConnectError) Error() string {
	if e == nil {
		return "connect failed"
	}
	return fmt.Sprintf("connect to %s failed (%s): %v", e.Address, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConnectError reports whether err wraps a ConnectError.
func IsConnectError(err error) bool {
	var target *ConnectError
	return errors.As(err, &target)
}

// ProtocolError marks a malformed or missing response for one command.
// It is isolated per feature; the refresh cycle continues without it.
type ProtocolError struct {
	Command string
	Reason  string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "protocol error"
	}
	return fmt.Sprintf("command %s: %s", e.Command, e.Reason)
}

func classifyConnectError(address string, err error) *ConnectError {
	kind := ConnectUnreachable

	var deviceErr *goros.DeviceError
	if errors.As(err, &deviceErr) {
		kind = ConnectAuth
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = ConnectTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ConnectTimeout
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "invalid user name or password"),
		strings.Contains(message, "not logged in"),
		strings.Contains(message, "login failure"):
		kind = ConnectAuth
	case strings.Contains(message, "connection refused"):
		kind = ConnectRefused
	case strings.Contains(message, "i/o timeout"),
		strings.Contains(message, "timeout"):
		if kind != ConnectAuth {
			kind = ConnectTimeout
		}
	}

	return &ConnectError{Address: address, Kind: kind, Err: err}
}
