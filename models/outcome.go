package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a gateway call failed.
type ErrorKind string

const (
	ErrInvalidInput ErrorKind = "invalid_input" // caller error, never reached the network
	ErrRateLimited  ErrorKind = "rate_limited"  // server throttled this target, transient
	ErrUnauthorized ErrorKind = "unauthorized"  // credential invalid or expired, session-fatal
	ErrRemote       ErrorKind = "remote"        // opaque server-side failure
	ErrTransport    ErrorKind = "transport"     // connection-level failure
)

// CommandError is a classified gateway failure.
type CommandError struct {
	Kind    ErrorKind
	Message string
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the classification from an error chain. Errors that are
// not CommandErrors (cancelled contexts, dial failures) count as transport.
func KindOf(err error) ErrorKind {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrTransport
}

// Failure records one per-target dispatch failure, in attempt order.
type Failure struct {
	AgentID string    `json:"agent_id"`
	Kind    ErrorKind `json:"kind"`
}

// DispatchOutcome is the consolidated result of one dispatch. It is never
// mutated after the dispatch loop finishes.
type DispatchOutcome struct {
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Summary renders the operator-facing notification text. Partial success
// names both counts rather than collapsing into one verdict.
func (o DispatchOutcome) Summary() string {
	switch {
	case o.Succeeded > 0 && o.Failed > 0:
		return fmt.Sprintf("sent to %d clients, %d failed", o.Succeeded, o.Failed)
	case o.Succeeded > 0:
		return fmt.Sprintf("sent to %d clients", o.Succeeded)
	case o.Failed > 0:
		return fmt.Sprintf("failed for %d clients", o.Failed)
	}
	return "nothing to do"
}
