// Package desk couples a check-in state machine with the capture sources of
// one staff device and keeps the live desks of the service.
package desk

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"checkin-desk-backend/internal/capture"
	"checkin-desk-backend/internal/checkin"
)

// Capabilities are what the client device declares about itself.
type Capabilities struct {
	SecureContext bool `json:"secureContext"`
	NativeScanner bool `json:"nativeScanner"`
	MediaDevices  bool `json:"mediaDevices"`
	// CameraError is a DOM error name the client already got from
	// getUserMedia, e.g. NotAllowedError.
	CameraError string `json:"cameraError,omitempty"`
}

// Recorder receives desk level counts on top of the machine's.
type Recorder interface {
	checkin.Recorder
	Capture(backend, outcome string)
	DeskEvicted()
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()        {}
func (nopRecorder) SessionStopped()        {}
func (nopRecorder) Lookup(string)          {}
func (nopRecorder) Commit(string)          {}
func (nopRecorder) Undo(string)            {}
func (nopRecorder) Search(string)          {}
func (nopRecorder) Capture(string, string) {}
func (nopRecorder) DeskEvicted()           {}

// ErrClosed is returned by intents on a torn down desk.
var ErrClosed = errors.New("desk: closed")

// Desk is one staff device's check-in station.
type Desk struct {
	ID        string
	CreatedAt time.Time

	machine *checkin.Machine
	relay   *capture.RelayHost
	frames  *capture.FrameFeed
	native  *capture.NativeScanner
	manual  *capture.Manual
	decode  capture.DecodeFunc

	pollInterval  time.Duration
	nativeTimeout time.Duration
	rec           Recorder
	log           zerolog.Logger

	mu           sync.Mutex
	caps         Capabilities
	camera       *capture.CameraDecode
	cancelNative context.CancelFunc
	lastKind     capture.Kind
	diagnostic   string
	closed       bool
}

// ScanResult tells the client which backend took the scan request.
type ScanResult struct {
	Backend    capture.Kind         `json:"backend"`
	Diagnostic string               `json:"diagnostic,omitempty"`
	Options    *capture.ScanOptions `json:"scanOptions,omitempty"`
}

// CaptureView is the capture part of a desk snapshot.
type CaptureView struct {
	Capabilities   Capabilities         `json:"capabilities"`
	Preferred      capture.Kind         `json:"preferred"`
	Diagnostic     string               `json:"diagnostic,omitempty"`
	LastBackend    capture.Kind         `json:"lastBackend,omitempty"`
	CameraScanning bool                 `json:"cameraScanning"`
	NativeState    capture.NativeState  `json:"nativeState"`
	NativeWaiting  bool                 `json:"nativeWaiting"`
	ScanOptions    *capture.ScanOptions `json:"scanOptions,omitempty"`
}

// View is the full snapshot a client renders.
type View struct {
	ID      string       `json:"id"`
	Desk    checkin.View `json:"desk"`
	Capture CaptureView  `json:"capture"`
}

func newDesk(id string, o Options) *Desk {
	log := o.Logger.With().Str("desk_id", id).Logger()
	d := &Desk{
		ID:            id,
		CreatedAt:     time.Now(),
		relay:         capture.NewRelayHost(false),
		frames:        capture.NewFrameFeed(),
		decode:        o.Decode,
		pollInterval:  o.PollInterval,
		nativeTimeout: o.NativeTimeout,
		rec:           o.Recorder,
		log:           log,
	}

	mopts := []checkin.Option{
		checkin.WithLogger(log.With().Str("component", "machine").Logger()),
		checkin.WithRecorder(o.Recorder),
		checkin.WithCheckinStatus(o.CheckinStatus),
		checkin.WithPageSize(o.PageSize),
	}
	if o.OnSummary != nil {
		mopts = append(mopts, checkin.WithSummaryHook(func(s checkin.Summary) { o.OnSummary(id, s) }))
	}
	d.machine = checkin.NewMachine(o.Gateway, mopts...)
	d.native = capture.NewNativeScanner(d.relay, capture.DefaultScanOptions(), log)
	d.manual = capture.NewManual(d.machine)
	d.camera = d.newCameraLocked()
	return d
}

// Machine exposes the desk's state machine.
func (d *Desk) Machine() *checkin.Machine { return d.machine }

// Capabilities returns the declared client capabilities.
func (d *Desk) Capabilities() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

// SetCapabilities records new client capabilities. A running camera scan is
// stopped because its environment changes.
func (d *Desk) SetCapabilities(caps Capabilities) {
	d.mu.Lock()
	old := d.camera
	d.caps = caps
	d.camera = d.newCameraLocked()
	d.relay.SetAvailable(caps.NativeScanner)
	d.frames.Fail(capture.MediaError(caps.CameraError, ""))
	d.mu.Unlock()

	if old != nil {
		old.Stop()
	}
}

func (d *Desk) newCameraLocked() *capture.CameraDecode {
	env := capture.Environment{
		SecureContext: d.caps.SecureContext,
		Decode:        d.decode,
	}
	if d.caps.MediaDevices {
		env.Media = d.frames
	}
	return capture.NewCameraDecode(env, d.pollInterval, d.log)
}

func (d *Desk) currentCamera() *capture.CameraDecode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.camera
}

// SubmitCode routes typed (or keyboard-wedge scanned) input through the
// manual source.
func (d *Desk) SubmitCode(ctx context.Context, code string) error {
	if d.isClosed() {
		return ErrClosed
	}
	err := d.manual.Enter(ctx, code, d.submit)
	d.recordSubmit(capture.KindManual, err)
	return err
}

// submit is the single entry point of every capture source.
func (d *Desk) submit(ctx context.Context, code string) error {
	_, err := d.machine.SubmitCode(ctx, code)
	return err
}

// Scan starts a capture with the best available backend. A native capture
// waits for the client's scanner result in the background. When only manual
// entry is left, a notice names the missing camera precondition.
func (d *Desk) Scan(ctx context.Context) (ScanResult, error) {
	if d.isClosed() {
		return ScanResult{}, ErrClosed
	}
	if err := d.machine.RequireSession(); err != nil {
		return ScanResult{}, err
	}

	camera := d.currentCamera()
	sel := capture.Select(d.native, camera, d.manual)
	kind := sel.Source.Kind()

	d.mu.Lock()
	d.lastKind = kind
	d.diagnostic = ""
	if sel.Diagnostic != nil {
		d.diagnostic = sel.Diagnostic.Error()
	}
	d.mu.Unlock()

	switch kind {
	case capture.KindNative:
		return d.startNative()
	case capture.KindCamera:
		err := camera.Capture(ctx, d.cameraSubmit)
		if errors.Is(err, capture.ErrCaptureInProgress) || errors.Is(err, capture.ErrCaptureStopped) {
			return ScanResult{Backend: kind}, err
		}
		if err != nil {
			d.captureFailed(capture.KindCamera, err)
			return ScanResult{Backend: kind}, err
		}
		d.log.Info().Msg("camera scanning started")
		return ScanResult{Backend: kind}, nil
	default:
		title, msg := capture.DiagnosticNotice(sel.Diagnostic)
		d.machine.Notify(checkin.VariantInfo, title, msg)
		d.rec.Capture(string(capture.KindManual), "fallback")
		return ScanResult{Backend: kind, Diagnostic: msg}, nil
	}
}

func (d *Desk) startNative() (ScanResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.nativeTimeout)
	d.mu.Lock()
	if d.cancelNative != nil {
		d.mu.Unlock()
		cancel()
		return ScanResult{Backend: capture.KindNative}, capture.ErrCaptureInProgress
	}
	d.cancelNative = cancel
	d.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			d.mu.Lock()
			d.cancelNative = nil
			d.mu.Unlock()
		}()
		err := d.native.Capture(ctx, d.submit)
		switch {
		case errors.Is(err, capture.ErrScannerUnavailable), errors.Is(err, capture.ErrCaptureInProgress):
			d.captureFailed(capture.KindNative, err)
			return
		}
		switch d.native.State() {
		case capture.NativeResolved:
			d.recordSubmit(capture.KindNative, err)
		case capture.NativeCancelled:
			d.rec.Capture(string(capture.KindNative), "dismissed")
		default:
			d.captureFailed(capture.KindNative, err)
		}
	}()

	opts := capture.DefaultScanOptions()
	return ScanResult{Backend: capture.KindNative, Options: &opts}, nil
}

func (d *Desk) cameraSubmit(ctx context.Context, code string) error {
	err := d.submit(ctx, code)
	d.recordSubmit(capture.KindCamera, err)
	return err
}

func (d *Desk) recordSubmit(kind capture.Kind, err error) {
	outcome := "submitted"
	if err != nil {
		outcome = "rejected"
	}
	d.rec.Capture(string(kind), outcome)
}

// captureFailed surfaces a capture failure to staff.
func (d *Desk) captureFailed(kind capture.Kind, err error) {
	d.rec.Capture(string(kind), "failed")
	var capErr *capture.Error
	switch {
	case errors.As(err, &capErr):
		d.log.Warn().Err(err).Str("backend", string(kind)).Msg("capture failed")
		d.machine.Notify(checkin.VariantError, capErr.Title, capErr.Message)
	case err != nil:
		d.log.Warn().Err(err).Str("backend", string(kind)).Msg("capture unavailable")
		d.machine.Notify(checkin.VariantWarning, "Scanner Unavailable", "Please use manual entry or a USB scanner.")
	}
}

// ScannerResult delivers the outcome of the client's native scanner.
func (d *Desk) ScannerResult(value, message string) error {
	if d.isClosed() {
		return ErrClosed
	}
	return d.relay.Resolve(value, message)
}

// PushFrame feeds one camera frame (PNG or JPEG) to a running camera scan.
func (d *Desk) PushFrame(r io.Reader) error {
	if d.isClosed() {
		return ErrClosed
	}
	return d.frames.Push(r)
}

// CameraFailed reports a getUserMedia failure the client ran into.
func (d *Desk) CameraFailed(name, message string) {
	d.StopCamera()
	err := capture.MediaError(name, message)
	if err == nil {
		err = errors.New("unknown camera error")
	}
	d.captureFailed(capture.KindCamera, capture.CameraError(err))
}

// StopCamera closes the camera scanner. Safe to call at any time.
func (d *Desk) StopCamera() {
	if cam := d.currentCamera(); cam != nil {
		cam.Stop()
	}
}

// Close tears the desk down: captures are released and a running session
// is stopped so its summary is still reported. It returns false if the desk
// was already closed.
func (d *Desk) Close() bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.closed = true
	cancel := d.cancelNative
	d.mu.Unlock()

	d.StopCamera()
	d.native.Stop()
	if cancel != nil {
		cancel()
	}
	if d.machine.Session().Active {
		if _, err := d.machine.StopSession(); err != nil {
			d.log.Warn().Err(err).Msg("failed to stop session on close")
		}
	}
	d.log.Info().Msg("desk closed")
	return true
}

func (d *Desk) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// View returns the desk snapshot.
func (d *Desk) View() View {
	camera := d.currentCamera()
	sel := capture.Select(d.native, camera, d.manual)

	d.mu.Lock()
	cv := CaptureView{
		Capabilities: d.caps,
		Preferred:    sel.Source.Kind(),
		Diagnostic:   d.diagnostic,
		LastBackend:  d.lastKind,
	}
	d.mu.Unlock()

	if sel.Diagnostic != nil && cv.Diagnostic == "" {
		cv.Diagnostic = sel.Diagnostic.Error()
	}
	cv.CameraScanning = camera.Scanning()
	cv.NativeState = d.native.State()
	if opts, waiting := d.relay.Waiting(); waiting {
		cv.NativeWaiting = true
		cv.ScanOptions = &opts
	}

	return View{ID: d.ID, Desk: d.machine.View(), Capture: cv}
}
