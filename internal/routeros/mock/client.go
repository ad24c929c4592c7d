// Package mock provides a programmable RouterOS command runner for tests.
package mock

import (
	"context"
	"sync"
)

// Call stores one Run invocation.
type Call struct {
	Cmd    string
	Params map[string]string
}

// Runner is a programmable fake implementing the routeros.Runner contract.
// RunFunc decides the reply; every invocation is recorded.
type Runner struct {
	mu      sync.Mutex
	RunFunc func(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error)
	Calls   []Call
}

func (r *Runner) Run(ctx context.Context, cmd string, params map[string]string) ([]map[string]string, error) {
	r.mu.Lock()
	copied := make(map[string]string, len(params))
	for key, value := range params {
		copied[key] = value
	}
	r.Calls = append(r.Calls, Call{Cmd: cmd, Params: copied})
	run := r.RunFunc
	r.mu.Unlock()

	if run == nil {
		return []map[string]string{}, nil
	}
	return run(ctx, cmd, params)
}

// CallsSnapshot returns a copy of accumulated calls.
func (r *Runner) CallsSnapshot() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.Calls))
	copy(out, r.Calls)
	return out
}

// CommandCount returns how many times cmd was issued.
func (r *Runner) CommandCount(cmd string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, call := range r.Calls {
		if call.Cmd == cmd {
			count++
		}
	}
	return count
}

// Rows is a convenience constructor for reply rows.
func Rows(rows ...map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	out = append(out, rows...)
	return out
}
