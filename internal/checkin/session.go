package checkin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkin-desk-backend/internal/gateway"
)

// LoadInstances fetches the instance options for a calendar date
// (YYYY-MM-DD). A loaded, non-empty option list moves an idle desk to
// AwaitingInstanceSelection.
func (m *Machine) LoadInstances(ctx context.Context, date string) ([]gateway.InstanceOption, error) {
	date = strings.TrimSpace(date)

	m.mu.Lock()
	if _, err := time.Parse(gateway.DateLayout, date); err != nil {
		m.noticeLocked(VariantWarning, "Invalid Date", "Please choose a valid date.")
		m.mu.Unlock()
		return nil, ErrInvalidDate
	}
	if m.loadingInstances {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.loadingInstances = true
	m.selectedDate = date
	m.mu.Unlock()

	var opts []gateway.InstanceOption
	err := guard(func() error {
		var err error
		opts, err = m.gw.ListInstancesByDate(ctx, date)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadingInstances = false
	if err != nil {
		m.log.Error().Err(err).Str("date", date).Msg("failed to load event instances")
		m.instances = nil
		m.noticeLocked(VariantError, "Error", "Failed to load event instances. Please try again.")
		return nil, fmt.Errorf("%w: list instances: %v", ErrTransport, err)
	}

	m.instances = append([]gateway.InstanceOption(nil), opts...)
	if len(opts) == 0 {
		m.noticeLocked(VariantInfo, "No Instances", fmt.Sprintf("No event instances found for %s.", date))
	}
	if !m.session.Active && m.session.SelectedInstanceID != "" && !m.hasInstanceLocked(m.session.SelectedInstanceID) {
		m.session.SelectedInstanceID = ""
	}
	return append([]gateway.InstanceOption(nil), opts...), nil
}

func (m *Machine) hasInstanceLocked(id string) bool {
	for _, opt := range m.instances {
		if opt.Value == id {
			return true
		}
	}
	return false
}

// SelectInstance records the instance the next session will run against.
func (m *Machine) SelectInstance(id string) error {
	id = strings.TrimSpace(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Active {
		m.noticeLocked(VariantWarning, "Session Active", "Stop the current session before changing the event instance.")
		return ErrSessionActive
	}
	if id == "" {
		m.session.SelectedInstanceID = ""
		return nil
	}
	if len(m.instances) > 0 && !m.hasInstanceLocked(id) {
		m.noticeLocked(VariantWarning, "Unknown Instance", "The selected event instance is not available for this date.")
		return ErrUnknownInstance
	}
	m.session.SelectedInstanceID = id
	return nil
}

// StartSession activates scanning for instanceID. Counters and pending,
// result and search state start from scratch; the attended total is read
// from the gateway and defaults to 0 when that read fails.
func (m *Machine) StartSession(ctx context.Context, instanceID string) error {
	instanceID = strings.TrimSpace(instanceID)

	m.mu.Lock()
	if instanceID == "" {
		m.noticeLocked(VariantWarning, "No Instance Selected", "Please select an event instance before starting a session.")
		m.mu.Unlock()
		return ErrNoInstance
	}
	if m.session.Active {
		m.noticeLocked(VariantWarning, "Session Active", "A scanning session is already running.")
		m.mu.Unlock()
		return ErrSessionActive
	}

	started := m.now()
	m.generation++
	gen := m.generation
	m.session = Session{
		Active:             true,
		StartedAt:          &started,
		SelectedInstanceID: instanceID,
		CheckinStatus:      m.status,
	}
	m.clearWorkLocked()
	m.rec.SessionStarted()
	m.mu.Unlock()

	var total int
	err := guard(func() error {
		var err error
		total, err = m.gw.CountAttended(ctx, instanceID, m.status)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.log.Warn().Err(err).Str("instance_id", instanceID).Msg("attended count unavailable, starting from 0")
		total = 0
	}
	if gen != m.generation {
		m.log.Debug().Str("instance_id", instanceID).Msg("session changed while counting attendees")
		return ErrStale
	}
	m.session.TotalAttended = total
	m.log.Info().Str("instance_id", instanceID).Int("total_attended", total).Msg("session started")
	m.noticeLocked(VariantSuccess, "Session Started", "Scanning session is now active. Ready to check in registrants.")
	return nil
}

// clearWorkLocked drops everything a running session accumulates except the
// counters.
func (m *Machine) clearWorkLocked() {
	m.step = StepReady
	m.codeInput = ""
	m.pending = nil
	m.last = nil
	m.searching = false
	m.criteria = Criteria{}
	m.results.Clear()
}

// StopSession ends scanning and reports the elapsed time and scan count.
// The desk returns to Idle.
func (m *Machine) StopSession() (Summary, error) {
	m.mu.Lock()
	if err := m.requireSessionLocked(); err != nil {
		m.mu.Unlock()
		return Summary{}, err
	}

	ended := m.now()
	elapsed := m.elapsedLocked()
	summary := Summary{
		InstanceID: m.session.SelectedInstanceID,
		ScanCount:  m.session.ScanCount,
		Elapsed:    elapsed,
		Duration:   FormatDuration(elapsed),
		EndedAt:    ended,
	}
	if m.session.StartedAt != nil {
		summary.StartedAt = *m.session.StartedAt
	}

	m.generation++
	m.session.Active = false
	m.clearWorkLocked()
	m.instances = nil
	m.selectedDate = ""

	m.rec.SessionStopped()
	m.log.Info().Str("instance_id", summary.InstanceID).Int("scan_count", summary.ScanCount).
		Dur("elapsed", elapsed).Msg("session stopped")
	m.noticeLocked(VariantInfo, "Session Ended", summary.Message())
	hook := m.onStop
	m.mu.Unlock()

	if hook != nil {
		hook(summary)
	}
	return summary, nil
}

// ResetSession zeroes the scan counter and clears pending and search state
// while the session keeps running against the same instance. The duration
// timer restarts.
func (m *Machine) ResetSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireSessionLocked(); err != nil {
		return err
	}

	started := m.now()
	m.generation++
	m.session.ScanCount = 0
	m.session.StartedAt = &started
	m.clearWorkLocked()

	m.log.Info().Str("instance_id", m.session.SelectedInstanceID).Msg("session reset")
	m.noticeLocked(VariantInfo, "Session Reset", "Counter has been reset. Session continues.")
	return nil
}
