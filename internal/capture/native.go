package capture

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ScanOptions are passed to the native scanner when a capture begins.
type ScanOptions struct {
	BarcodeTypes    []string `json:"barcodeTypes"`
	InstructionText string   `json:"instructionText"`
	SuccessText     string   `json:"successText"`
}

// DefaultScanOptions accept every common 1D and 2D symbology.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		BarcodeTypes: []string{
			"QR", "CODE_128", "CODE_39", "CODE_93", "DATA_MATRIX",
			"EAN_8", "EAN_13", "ITF", "PDF_417", "UPC_A", "UPC_E",
		},
		InstructionText: "Scan the registrant QR code",
		SuccessText:     "Scanning complete.",
	}
}

// ScannerHost is the native scanner capability of the host shell.
type ScannerHost interface {
	Available() bool
	// BeginCapture blocks until the scanner produces a value, fails, or the
	// user dismisses it (ErrUserDismissed).
	BeginCapture(ctx context.Context, opts ScanOptions) (string, error)
	// EndCapture releases the scanner. It is safe to call when idle.
	EndCapture()
}

// NativeState is the lifecycle of one native capture.
type NativeState string

const (
	NativeIdle      NativeState = "idle"
	NativeCapturing NativeState = "capturing"
	NativeResolved  NativeState = "resolved"
	NativeCancelled NativeState = "cancelled"
	NativeFailed    NativeState = "failed"
)

// NativeScanner drives a ScannerHost.
type NativeScanner struct {
	host ScannerHost
	opts ScanOptions
	log  zerolog.Logger

	mu    sync.Mutex
	state NativeState
}

func NewNativeScanner(host ScannerHost, opts ScanOptions, log zerolog.Logger) *NativeScanner {
	return &NativeScanner{host: host, opts: opts, log: log, state: NativeIdle}
}

func (n *NativeScanner) Kind() Kind { return KindNative }

func (n *NativeScanner) Probe() error {
	if n.host == nil || !n.host.Available() {
		return ErrScannerUnavailable
	}
	return nil
}

// State returns the state of the latest capture.
func (n *NativeScanner) State() NativeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *NativeScanner) setState(s NativeState) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// Capture runs one scan. A dismissed scanner is not an error. The host
// capture is always ended before Capture returns.
func (n *NativeScanner) Capture(ctx context.Context, submit SubmitFunc) error {
	if err := n.Probe(); err != nil {
		return err
	}
	n.mu.Lock()
	if n.state == NativeCapturing {
		n.mu.Unlock()
		return ErrCaptureInProgress
	}
	n.state = NativeCapturing
	n.mu.Unlock()

	defer n.host.EndCapture()

	value, err := n.host.BeginCapture(ctx, n.opts)
	switch {
	case err == nil:
		n.setState(NativeResolved)
		n.log.Debug().Str("value", value).Msg("native scanner resolved")
		return submit(ctx, strings.TrimSpace(value))
	case IsDismissed(err):
		n.setState(NativeCancelled)
		n.log.Debug().Msg("native scanner dismissed")
		return nil
	default:
		n.setState(NativeFailed)
		n.log.Warn().Err(err).Msg("native scanner failed")
		return &Error{
			Kind:    KindNative,
			Title:   "Scan Error",
			Message: "Failed to scan barcode: " + err.Error(),
			Err:     err,
		}
	}
}

// Stop dismisses a running capture.
func (n *NativeScanner) Stop() {
	if n.host != nil {
		n.host.EndCapture()
	}
}

// IsDismissed reports whether err means the user closed the scanner.
func IsDismissed(err error) bool {
	return errors.Is(err, ErrUserDismissed) || (err != nil && err.Error() == ErrUserDismissed.Error())
}
