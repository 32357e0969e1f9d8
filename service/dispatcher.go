package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"fleetconsole/models"
)

// CommandSender issues one command to one target. Declared here so the
// dispatcher can be tested against a stub instead of the remote client.
type CommandSender interface {
	Send(ctx context.Context, cmd models.Command, targetID string) (string, error)
}

var (
	// ErrBusy means a dispatch is already in flight. The UI disables the
	// triggering control instead of queuing; overlapping dispatches are
	// rejected, not serialized.
	ErrBusy = errors.New("a dispatch is already in flight")

	// ErrNothingSelected means the selection was empty when dispatch ran.
	ErrNothingSelected = errors.New("no agents selected")

	// ErrUnauthorized is returned when a dispatch aborted because the
	// credential was rejected mid-flight.
	ErrUnauthorized = errors.New("session credential rejected, log in again")
)

// Dispatcher turns one operator command plus the current selection into
// gateway calls and one consolidated outcome. Every command kind goes
// through the same path, so partial-failure handling is identical for all
// of them.
type Dispatcher struct {
	gateway   CommandSender
	session   *Session
	agents    *AgentManager
	selection *Selection
	history   *HistoryStore // optional

	busy atomic.Bool
}

func NewDispatcher(gateway CommandSender, session *Session, agents *AgentManager, selection *Selection, history *HistoryStore) *Dispatcher {
	return &Dispatcher{
		gateway:   gateway,
		session:   session,
		agents:    agents,
		selection: selection,
		history:   history,
	}
}

// InFlight reports whether a dispatch is currently outstanding.
func (d *Dispatcher) InFlight() bool {
	return d.busy.Load()
}

// Dispatch delivers cmd to the current selection.
//
// When the selection covers every known agent the command goes out as a
// single wildcard call, so the server's own fan-out and any server-side
// atomicity for "all" apply. Otherwise one call is issued per selected id,
// sequentially and in selection order, to cooperate with the server's
// per-target throttle; a failure for one target never blocks the rest.
//
// Rate-limit and remote failures are recorded and skipped. An unauthorized
// answer aborts the remaining loop, clears the credential, and comes back
// as ErrUnauthorized: authentication failure is not per-target. On any
// success the selection is cleared unless the command kind keeps it open.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd models.Command) (models.DispatchOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return models.DispatchOutcome{}, err
	}
	if !d.busy.CompareAndSwap(false, true) {
		return models.DispatchOutcome{}, ErrBusy
	}
	defer d.busy.Store(false)

	targets := d.selection.IDs()
	if len(targets) == 0 {
		return models.DispatchOutcome{}, ErrNothingSelected
	}

	var outcome models.DispatchOutcome
	var fatal error

	wildcard := len(targets) == d.agents.Count()
	if wildcard {
		outcome, fatal = d.sendOne(ctx, cmd, models.WildcardTarget)
	} else {
		outcome, fatal = d.fanOut(ctx, cmd, targets)
	}

	if outcome.Succeeded > 0 && cmd.ClearsSelection() {
		d.selection.Exit()
	}

	d.record(cmd, targets, wildcard, outcome)
	log.Printf("Dispatch %s: %s (attempted=%d)", cmd.Kind, outcome.Summary(), outcome.Attempted)
	return outcome, fatal
}

// sendOne is the wildcard branch: exactly one call for the whole fleet.
func (d *Dispatcher) sendOne(ctx context.Context, cmd models.Command, target string) (models.DispatchOutcome, error) {
	outcome := models.DispatchOutcome{Attempted: 1}
	if _, err := d.gateway.Send(ctx, cmd, target); err != nil {
		outcome.Failed = 1
		kind := models.KindOf(err)
		outcome.Failures = append(outcome.Failures, models.Failure{AgentID: target, Kind: kind})
		if kind == models.ErrUnauthorized {
			d.session.Clear()
			return outcome, ErrUnauthorized
		}
		return outcome, nil
	}
	outcome.Succeeded = 1
	return outcome, nil
}

// fanOut issues one sequential call per target. Concurrent fan-out would
// defeat the server's 10-second per-target throttle, so each call awaits
// the previous one.
func (d *Dispatcher) fanOut(ctx context.Context, cmd models.Command, targets []string) (models.DispatchOutcome, error) {
	var outcome models.DispatchOutcome
	for _, id := range targets {
		outcome.Attempted++
		_, err := d.gateway.Send(ctx, cmd, id)
		if err == nil {
			outcome.Succeeded++
			continue
		}

		kind := models.KindOf(err)
		outcome.Failed++
		outcome.Failures = append(outcome.Failures, models.Failure{AgentID: id, Kind: kind})
		log.Printf("Dispatch %s to %s failed: %v", cmd.Kind, id, err)

		if kind == models.ErrUnauthorized {
			d.session.Clear()
			return outcome, ErrUnauthorized
		}
	}
	return outcome, nil
}

func (d *Dispatcher) record(cmd models.Command, targets []string, wildcard bool, outcome models.DispatchOutcome) {
	if d.history == nil {
		return
	}
	target := strings.Join(targets, ",")
	if wildcard {
		target = models.WildcardTarget
	}
	if err := d.history.Record(cmd, target, outcome); err != nil {
		log.Printf("Failed to record dispatch history: %v", err)
	}
}
