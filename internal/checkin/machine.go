// Package checkin implements the check-in desk session state machine: session
// lifecycle, the lookup → pending → commit/undo pipeline, counters, search
// results and the notices shown to staff.
package checkin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"checkin-desk-backend/internal/gateway"
	"checkin-desk-backend/internal/search"
)

// State is the top-level desk state.
type State string

const (
	StateIdle                      State = "idle"
	StateAwaitingInstanceSelection State = "awaiting_instance_selection"
	StateActive                    State = "active"
)

// Step tracks the confirmation cycle inside an active session.
type Step string

const (
	StepReady               Step = "ready"
	StepLookupInFlight      Step = "lookup_in_flight"
	StepPendingConfirmation Step = "pending_confirmation"
	StepCommitInFlight      Step = "commit_in_flight"
	StepUndoInFlight        Step = "undo_in_flight"
)

// DefaultCheckinStatus is the status a registration is moved to on check-in.
const DefaultCheckinStatus = "Attended"

// Session is the bounded period of scanning tied to one instance.
type Session struct {
	Active             bool       `json:"active"`
	StartedAt          *time.Time `json:"startedAt"`
	SelectedInstanceID string     `json:"selectedInstanceId"`
	CheckinStatus      string     `json:"checkinStatus"`
	ScanCount          int        `json:"scanCount"`
	TotalAttended      int        `json:"totalAttendedCount"`
}

// Summary describes a session that has just been stopped.
type Summary struct {
	InstanceID string        `json:"instanceId"`
	ScanCount  int           `json:"scanCount"`
	Elapsed    time.Duration `json:"elapsed"`
	Duration   string        `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    time.Time     `json:"endedAt"`
}

// Message is the staff-facing sentence announcing the summary.
func (s Summary) Message() string {
	suffix := "s"
	if s.ScanCount == 1 {
		suffix = ""
	}
	return fmt.Sprintf("Checked in %d registrant%s in %s", s.ScanCount, suffix, s.Duration)
}

// Recorder receives outcome counts. observability.Metrics implements it.
type Recorder interface {
	SessionStarted()
	SessionStopped()
	Lookup(outcome string)
	Commit(outcome string)
	Undo(outcome string)
	Search(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted() {}
func (nopRecorder) SessionStopped() {}
func (nopRecorder) Lookup(string)   {}
func (nopRecorder) Commit(string)   {}
func (nopRecorder) Undo(string)     {}
func (nopRecorder) Search(string)   {}

// Option configures a Machine.
type Option func(*Machine)

func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(m *Machine) { m.log = l } }

func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.rec = r
		}
	}
}

func WithCheckinStatus(status string) Option {
	return func(m *Machine) {
		if s := strings.TrimSpace(status); s != "" {
			m.status = s
		}
	}
}

func WithPageSize(n int) Option {
	return func(m *Machine) { m.results = search.NewPager[gateway.SearchResult](n) }
}

// WithSummaryHook is called, outside the machine lock, after every stop.
func WithSummaryHook(fn func(Summary)) Option { return func(m *Machine) { m.onStop = fn } }

// Machine is one desk's check-in state. All methods are safe for concurrent
// use; at most one lookup, commit, undo or search is in flight at a time and
// overlapping intents are refused with ErrBusy.
type Machine struct {
	mu     sync.Mutex
	gw     gateway.Gateway
	status string
	now    func() time.Time
	log    zerolog.Logger
	rec    Recorder
	onStop func(Summary)

	session    Session
	generation uint64
	step       Step
	codeInput  string
	pending    *gateway.CheckinResult
	last       *gateway.CheckinResult
	notices    []Notice

	searching bool
	criteria  Criteria
	results   *search.Pager[gateway.SearchResult]

	loadingInstances bool
	selectedDate     string
	instances        []gateway.InstanceOption
}

func NewMachine(gw gateway.Gateway, opts ...Option) *Machine {
	m := &Machine{
		gw:      gw,
		status:  DefaultCheckinStatus,
		now:     time.Now,
		log:     zerolog.Nop(),
		rec:     nopRecorder{},
		step:    StepReady,
		results: search.NewPager[gateway.SearchResult](search.DefaultPageSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session.CheckinStatus = m.status
	return m
}

// CheckinStatus is the configured target status label.
func (m *Machine) CheckinStatus() string { return m.status }

func (m *Machine) stateLocked() State {
	switch {
	case m.session.Active:
		return StateActive
	case len(m.instances) > 0:
		return StateAwaitingInstanceSelection
	default:
		return StateIdle
	}
}

// State returns the top-level state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Step returns the confirmation sub-state.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Session returns a copy of the session fields.
func (m *Machine) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Pending returns a copy of the result awaiting confirmation, if any.
func (m *Machine) Pending() *gateway.CheckinResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	p := *m.pending
	return &p
}

// SetCodeInput records the manual entry field.
func (m *Machine) SetCodeInput(v string) {
	m.mu.Lock()
	m.codeInput = v
	m.mu.Unlock()
}

// CodeInput returns the manual entry field.
func (m *Machine) CodeInput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codeInput
}

// Busy reports whether a lookup, commit, undo or search is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busyLocked()
}

func (m *Machine) busyLocked() bool {
	switch m.step {
	case StepLookupInFlight, StepCommitInFlight, StepUndoInFlight:
		return true
	}
	return m.searching
}

func (m *Machine) refuseBusyLocked() error {
	if !m.busyLocked() {
		return nil
	}
	m.noticeLocked(VariantWarning, "Please Wait", "The previous request is still being processed.")
	return ErrBusy
}

func (m *Machine) requireSessionLocked() error {
	if m.session.Active {
		return nil
	}
	m.noticeLocked(VariantWarning, "Session Not Started", "Please start a scanning session first.")
	return ErrNoSession
}

// RequireSession returns ErrNoSession, with the usual warning, when no
// session is running.
func (m *Machine) RequireSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requireSessionLocked()
}

// Notify queues a notice raised outside the machine, such as a capture failure.
func (m *Machine) Notify(variant Variant, title, message string) {
	m.mu.Lock()
	m.noticeLocked(variant, title, message)
	m.mu.Unlock()
}

// elapsedLocked is the time since the session (re)started.
func (m *Machine) elapsedLocked() time.Duration {
	if m.session.StartedAt == nil {
		return 0
	}
	return m.now().Sub(*m.session.StartedAt)
}

// Duration is the formatted elapsed session time.
func (m *Machine) Duration() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.StartedAt == nil {
		return "0 minutes"
	}
	return FormatDuration(m.elapsedLocked())
}

// guard runs a gateway call so that a panicking implementation still lets the
// caller clear its in-flight state.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	return fn()
}

// refreshTotal re-reads the authoritative attended count for the session's
// instance. Failures are logged and leave the previous value in place.
func (m *Machine) refreshTotal(ctx context.Context, gen uint64, instanceID string) {
	var total int
	err := guard(func() error {
		var err error
		total, err = m.gw.CountAttended(ctx, instanceID, m.status)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.log.Warn().Err(err).Str("instance_id", instanceID).Msg("failed to refresh attended count")
		return
	}
	if gen == m.generation {
		m.session.TotalAttended = total
	}
}
