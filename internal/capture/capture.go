// Package capture provides the interchangeable sources of a scanned code: the
// native scanner of a mobile shell, a camera stream polled through a QR
// decoder, and the manual entry field. Every source hands its value to the
// same submit function.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a capture backend.
type Kind string

const (
	KindNative Kind = "native"
	KindCamera Kind = "camera"
	KindManual Kind = "manual"
)

// SubmitFunc is the single entry point every source feeds.
type SubmitFunc func(ctx context.Context, code string) error

// Source is one way of obtaining a code.
type Source interface {
	Kind() Kind
	// Probe returns nil when the source can be used, otherwise the failed
	// precondition.
	Probe() error
	Capture(ctx context.Context, submit SubmitFunc) error
	Stop()
}

// Capability errors.
var (
	ErrScannerUnavailable = errors.New("capture: native scanner is not available")
	ErrInsecureContext    = errors.New("capture: camera requires a secure (https) context")
	ErrMediaUnsupported   = errors.New("capture: media capture is not supported")
	ErrDecoderNotLoaded   = errors.New("capture: QR decoder is not loaded")
	ErrPermissionDenied   = errors.New("capture: camera permission denied")
	ErrDeviceNotFound     = errors.New("capture: no camera found")
	ErrCaptureInProgress  = errors.New("capture: a capture is already running")
	ErrCaptureStopped     = errors.New("capture: camera was stopped while starting")
	ErrUserDismissed      = errors.New("USER_DISMISSED")
)

// Error is a capture failure with the message shown to staff.
type Error struct {
	Kind    Kind
	Title   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Selection is the outcome of the backend selection policy.
type Selection struct {
	Source Source
	// Diagnostic names the precondition that ruled the camera out when the
	// policy fell back to manual entry.
	Diagnostic error
}

// Select prefers the native scanner, then the camera, then manual entry.
// Nil sources are skipped.
func Select(native, camera, manual Source) Selection {
	if native != nil && native.Probe() == nil {
		return Selection{Source: native}
	}
	diag := ErrMediaUnsupported
	if camera != nil {
		err := camera.Probe()
		if err == nil {
			return Selection{Source: camera}
		}
		diag = err
	}
	return Selection{Source: manual, Diagnostic: diag}
}

// DiagnosticNotice returns the toast title and message for a failed camera
// precondition.
func DiagnosticNotice(err error) (string, string) {
	switch {
	case errors.Is(err, ErrInsecureContext):
		return "Camera Not Available", "Camera scanning requires a secure (https) connection. Please use manual entry or a USB scanner."
	case errors.Is(err, ErrDecoderNotLoaded):
		return "Scanner Loading", "QR code scanner is still loading. Please try again in a moment."
	case errors.Is(err, ErrMediaUnsupported):
		return "Camera Not Supported", "Your browser does not support camera access. Please use a modern browser like Chrome, Firefox, or Edge."
	default:
		return "Camera Not Available", "Camera scanning is not available. Please use manual entry or a USB scanner."
	}
}
