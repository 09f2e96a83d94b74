// Package jobs tracks the lifecycle of a simulation job: which transitions are
// legal, which user actions are available, and how the job is kept current
// from server snapshots.
package jobs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/suqaba/suqaba-cli/internal/events"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/models"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// job's current status.
var ErrInvalidTransition = errors.New("invalid transition")

// Action is a user-triggered operation on a job.
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionDownload Action = "download"
)

// successors lists the statuses each status may legally move to.
var successors = map[models.Status][]models.Status{
	models.StatusDraft:      {models.StatusQueued},
	models.StatusQueued:     {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed, models.StatusCancelled},
}

// IsValidSuccessor reports whether a job may move from one status to another.
// Staying in the same status is always valid.
func IsValidSuccessor(from, to models.Status) bool {
	if from == to {
		return true
	}
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine holds one job's state. The observed status comes only from server
// snapshots; the intent status is set locally when the user submits a draft
// and is dropped once the server reports progress.
type Machine struct {
	mu     sync.RWMutex
	sim    models.Simulation
	intent models.Status
	logger *logging.Logger
	bus    *events.EventBus
}

// Option customises a Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithEventBus publishes status changes and anomalies on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(m *Machine) { m.bus = bus }
}

// NewMachine creates a machine from a server snapshot.
func NewMachine(sim models.Simulation, opts ...Option) *Machine {
	m := &Machine{sim: sim, logger: logging.NewNop()}
	if m.sim.Status == "" {
		m.sim.Status = models.StatusDraft
	}
	// Quality oracle and mesh counts belong to completed jobs only
	if m.sim.Status != models.StatusCompleted {
		m.sim.QualityOracle = nil
		m.sim.MeshNodes = nil
		m.sim.MeshElements = nil
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewSubmitted creates a machine for a job the server just accepted. The
// server-assigned id is kept and the job is shown as queued until the first
// snapshot arrives.
func NewSubmitted(sim models.Simulation, opts ...Option) *Machine {
	sim.Status = models.StatusDraft
	m := NewMachine(sim, opts...)
	m.intent = models.StatusQueued
	return m
}

// ID returns the server id, empty for a local draft.
func (m *Machine) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sim.ID
}

// Status is the status to display: the intent while one is pending, otherwise
// the last observed status.
func (m *Machine) Status() models.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Machine) statusLocked() models.Status {
	if m.intent != "" {
		return m.intent
	}
	return m.sim.Status
}

// Observed returns the last status reported by the server.
func (m *Machine) Observed() models.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sim.Status
}

// Intent returns the locally inferred status, or "" when none is pending.
func (m *Machine) Intent() models.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intent
}

// Snapshot returns a copy of the job with Status set to the displayed status.
func (m *Machine) Snapshot() models.Simulation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sim := m.sim
	sim.Status = m.statusLocked()
	return sim
}

// Hint returns the presentation hint for the displayed status.
func (m *Machine) Hint() Hint {
	return HintFor(m.Status())
}

// Check returns nil if action is allowed from the current status and an
// error wrapping ErrInvalidTransition otherwise.
func (m *Machine) Check(action Action) error {
	status := m.Status()

	var ok bool
	switch action {
	case ActionStart:
		ok = status == models.StatusDraft
	case ActionStop:
		ok = status == models.StatusQueued || status == models.StatusProcessing
	case ActionDownload:
		ok = status == models.StatusCompleted
	}
	if !ok {
		return fmt.Errorf("%w: cannot %s a %s job", ErrInvalidTransition, action, HintFor(status).Label)
	}
	return nil
}

func (m *Machine) CanStart() bool    { return m.Check(ActionStart) == nil }
func (m *Machine) CanStop() bool     { return m.Check(ActionStop) == nil }
func (m *Machine) CanDownload() bool { return m.Check(ActionDownload) == nil }

// MarkSubmitted records the local draft -> queued transition after a
// successful submit or start. It does not contact the server.
func (m *Machine) MarkSubmitted() error {
	m.mu.Lock()
	if m.statusLocked() != models.StatusDraft {
		status := m.statusLocked()
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot submit a %s job", ErrInvalidTransition, HintFor(status).Label)
	}
	m.intent = models.StatusQueued
	id, name := m.sim.ID, m.sim.Name
	m.mu.Unlock()

	m.bus.PublishJobStatus(id, name, string(models.StatusDraft), string(models.StatusQueued))
	return nil
}

// Apply merges a server snapshot. The snapshot's status is accepted even if it
// is not a legal successor; that case is logged and published as an anomaly.
// Quality oracle and mesh counts are set once, when the job is completed.
// Applying the same snapshot twice leaves the machine unchanged.
// It returns whether the displayed status changed.
func (m *Machine) Apply(snap models.Simulation) bool {
	m.mu.Lock()

	if m.sim.ID != "" && snap.ID != "" && snap.ID != m.sim.ID {
		id := m.sim.ID
		m.mu.Unlock()
		m.logger.Warn().Str("job_id", id).Str("snapshot_id", snap.ID).Msg("ignoring snapshot for another job")
		return false
	}

	from := m.statusLocked()
	to := snap.Status
	if to == "" {
		to = m.sim.Status
	}

	// A draft snapshot arriving after submit is just lag
	if m.intent != "" && to == models.StatusDraft {
		to = m.sim.Status
	}

	next := snap
	next.Status = to
	if next.ID == "" {
		next.ID = m.sim.ID
	}

	next.QualityOracle = m.sim.QualityOracle
	next.MeshNodes = m.sim.MeshNodes
	next.MeshElements = m.sim.MeshElements
	if to == models.StatusCompleted {
		if next.QualityOracle == nil && snap.QualityOracle != nil {
			v := *snap.QualityOracle
			next.QualityOracle = &v
		}
		if next.MeshNodes == nil && snap.MeshNodes != nil {
			v := *snap.MeshNodes
			next.MeshNodes = &v
		}
		if next.MeshElements == nil && snap.MeshElements != nil {
			v := *snap.MeshElements
			next.MeshElements = &v
		}
	}

	m.sim = next
	if to != models.StatusDraft {
		m.intent = ""
	}
	current := m.statusLocked()
	id, name := m.sim.ID, m.sim.Name
	m.mu.Unlock()

	if current == from {
		return false
	}

	if !IsValidSuccessor(from, current) {
		detail := "not a valid successor"
		if !current.Known() {
			detail = "unknown status"
		}
		m.logger.Warn().Str("job_id", id).Str("from", string(from)).Str("to", string(current)).
			Msg("unexpected status change: " + detail)
		m.bus.PublishJobAnomaly(id, string(from), string(current), detail)
	}

	m.logger.Debug().Str("job_id", id).Str("from", string(from)).Str("to", string(current)).Msg("job status changed")
	m.bus.PublishJobStatus(id, name, string(from), string(current))
	return true
}
