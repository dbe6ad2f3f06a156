package checkin

import (
	"context"
	"fmt"
	"strings"

	"checkin-desk-backend/internal/gateway"
)

const genericFailure = "An unexpected error occurred. Please try again."

// SubmitCode looks up a scanned or typed code. Every capture backend ends up
// here. A successful lookup becomes the pending result awaiting
// confirmation; the code input is cleared whatever the outcome.
func (m *Machine) SubmitCode(ctx context.Context, raw string) (*gateway.CheckinResult, error) {
	m.mu.Lock()
	m.codeInput = ""
	if err := m.requireSessionLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	code := strings.TrimSpace(raw)
	if code == "" {
		m.noticeLocked(VariantError, "Error", "Please enter or scan a QR code.")
		m.mu.Unlock()
		return nil, ErrEmptyCode
	}
	if err := m.refuseBusyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.step = StepLookupInFlight
	m.pending = nil
	m.last = nil
	gen := m.generation
	req := gateway.LookupRequest{
		Code:          code,
		InstanceID:    m.session.SelectedInstanceID,
		CheckinStatus: m.status,
	}
	m.mu.Unlock()

	var res *gateway.CheckinResult
	err := guard(func() error {
		var err error
		res, err = m.gw.LookupByCode(ctx, req)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, ErrStale
	}
	m.step = StepReady

	if err == nil && res == nil {
		err = errEmptyResponse
	}
	if err != nil {
		m.rec.Lookup("error")
		m.log.Error().Err(err).Str("code", code).Msg("lookup failed")
		m.noticeLocked(VariantError, "Error", genericFailure)
		return nil, fmt.Errorf("%w: lookup: %v", ErrTransport, err)
	}

	m.last = res
	if !res.Success {
		m.rec.Lookup("rejected")
		m.noticeLocked(VariantError, "Error", res.Message)
		return res, &RejectedError{Op: "lookup", Message: res.Message}
	}

	m.pending = res
	m.step = StepPendingConfirmation
	if res.AlreadyCheckedIn {
		m.rec.Lookup("already_checked_in")
		m.noticeLocked(VariantWarning, "Already Checked In",
			fmt.Sprintf("%s was already checked in.", res.RegistrantName))
	} else {
		m.rec.Lookup("found")
		m.noticeLocked(VariantInfo, "Registrant Found",
			fmt.Sprintf("Confirm check-in for %s.", res.RegistrantName))
	}
	return res, nil
}

// ConfirmCheckIn commits the pending result. A first-time check-in bumps the
// session scan count and refreshes the attended total. The pending result is
// cleared on every outcome.
func (m *Machine) ConfirmCheckIn(ctx context.Context) (*gateway.CheckinResult, error) {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return nil, ErrNoPending
	}
	if err := m.refuseBusyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.step = StepCommitInFlight
	gen := m.generation
	instanceID := m.session.SelectedInstanceID
	req := gateway.RegistrationRequest{
		RegistrationID: m.pending.RegistrationID,
		InstanceID:     instanceID,
		CheckinStatus:  m.status,
	}
	m.mu.Unlock()

	var res *gateway.CheckinResult
	err := guard(func() error {
		var err error
		res, err = m.gw.CommitCheckIn(ctx, req)
		return err
	})

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil, ErrStale
	}
	m.pending = nil

	if err == nil && res == nil {
		err = errEmptyResponse
	}
	if err != nil {
		m.step = StepReady
		m.rec.Commit("error")
		m.log.Error().Err(err).Str("registration_id", req.RegistrationID).Msg("commit failed")
		m.noticeLocked(VariantError, "Error", genericFailure)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: commit: %v", ErrTransport, err)
	}

	m.last = res
	if !res.IsNewCheckIn() {
		m.step = StepReady
		if !res.Success {
			m.rec.Commit("rejected")
			m.noticeLocked(VariantError, "Error", res.Message)
			m.mu.Unlock()
			return res, &RejectedError{Op: "commit", Message: res.Message}
		}
		m.rec.Commit("already_checked_in")
		m.noticeLocked(VariantWarning, "Already Checked In",
			fmt.Sprintf("%s was already checked in.", res.RegistrantName))
		m.mu.Unlock()
		return res, nil
	}

	m.session.ScanCount++
	m.rec.Commit("checked_in")
	m.log.Info().Str("registration_id", req.RegistrationID).Int("scan_count", m.session.ScanCount).Msg("registrant checked in")
	m.noticeLocked(VariantSuccess, "Success!",
		fmt.Sprintf("%s has been checked in successfully.", res.RegistrantName))
	m.mu.Unlock()

	m.refreshTotal(ctx, gen, instanceID)
	m.settle(gen)
	return res, nil
}

// settle returns the step to Ready once trailing work of an operation is done.
func (m *Machine) settle(gen uint64) {
	m.mu.Lock()
	if gen == m.generation {
		m.step = StepReady
	}
	m.mu.Unlock()
}

// CancelCheckIn discards the pending result without contacting the gateway.
func (m *Machine) CancelCheckIn() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ErrNoPending
	}
	if err := m.refuseBusyLocked(); err != nil {
		return err
	}
	m.pending = nil
	m.last = nil
	m.step = StepReady
	return nil
}

// UndoCheckIn reverses the check-in of the pending registration. On success
// the scan count drops by one (never below zero) and the pending result is
// cleared; on failure the pending result stays so staff can retry.
func (m *Machine) UndoCheckIn(ctx context.Context) (*gateway.UndoResult, error) {
	m.mu.Lock()
	if m.pending == nil || strings.TrimSpace(m.pending.RegistrationID) == "" {
		m.mu.Unlock()
		return nil, ErrNoPending
	}
	if err := m.refuseBusyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.step = StepUndoInFlight
	gen := m.generation
	instanceID := m.session.SelectedInstanceID
	req := gateway.RegistrationRequest{
		RegistrationID: m.pending.RegistrationID,
		InstanceID:     instanceID,
		CheckinStatus:  m.status,
	}
	m.mu.Unlock()

	var res *gateway.UndoResult
	err := guard(func() error {
		var err error
		res, err = m.gw.UndoCheckIn(ctx, req)
		return err
	})

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil, ErrStale
	}

	if err == nil && res == nil {
		err = errEmptyResponse
	}
	if err != nil {
		m.step = StepPendingConfirmation
		m.rec.Undo("error")
		m.log.Error().Err(err).Str("registration_id", req.RegistrationID).Msg("undo failed")
		m.noticeLocked(VariantError, "Error", genericFailure)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: undo: %v", ErrTransport, err)
	}
	if !res.Success {
		m.step = StepPendingConfirmation
		m.rec.Undo("rejected")
		m.noticeLocked(VariantError, "Error", res.Message)
		m.mu.Unlock()
		return res, &RejectedError{Op: "undo", Message: res.Message}
	}

	if m.session.ScanCount > 0 {
		m.session.ScanCount--
	}
	m.pending = nil
	m.last = nil
	m.rec.Undo("undone")
	m.log.Info().Str("registration_id", req.RegistrationID).Int("scan_count", m.session.ScanCount).Msg("check-in undone")
	m.noticeLocked(VariantSuccess, "Check-In Undone",
		fmt.Sprintf("%s is no longer checked in.", res.RegistrantName))
	m.mu.Unlock()

	m.refreshTotal(ctx, gen, instanceID)
	m.settle(gen)
	return res, nil
}
