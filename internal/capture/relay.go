package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoCapture is returned when a scanner result arrives with nothing waiting for it.
var ErrNoCapture = errors.New("capture: no native capture in progress")

type relayOutcome struct {
	value string
	err   error
}

// RelayHost is a ScannerHost whose scanner lives on the client. BeginCapture
// waits until the client posts the scanner outcome through Resolve.
type RelayHost struct {
	mu        sync.Mutex
	available bool
	pending   chan relayOutcome
	opts      ScanOptions
}

func NewRelayHost(available bool) *RelayHost {
	return &RelayHost{available: available}
}

func (h *RelayHost) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// SetAvailable records the client's declared scanner capability.
func (h *RelayHost) SetAvailable(v bool) {
	h.mu.Lock()
	h.available = v
	h.mu.Unlock()
}

func (h *RelayHost) BeginCapture(ctx context.Context, opts ScanOptions) (string, error) {
	h.mu.Lock()
	if h.pending != nil {
		h.mu.Unlock()
		return "", ErrCaptureInProgress
	}
	ch := make(chan relayOutcome, 1)
	h.pending = ch
	h.opts = opts
	h.mu.Unlock()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *RelayHost) EndCapture() {
	h.resolve(relayOutcome{err: ErrUserDismissed})
}

// Waiting reports whether a capture waits for a client result, and with
// which options.
func (h *RelayHost) Waiting() (ScanOptions, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts, h.pending != nil
}

// Resolve delivers the client's scanner outcome. A non-empty message is a
// failure; "USER_DISMISSED" is a dismissal.
func (h *RelayHost) Resolve(value, message string) error {
	out := relayOutcome{value: value}
	if msg := strings.TrimSpace(message); msg != "" {
		out = relayOutcome{err: errors.New(msg)}
		if msg == ErrUserDismissed.Error() {
			out.err = ErrUserDismissed
		}
	}
	if !h.resolve(out) {
		return ErrNoCapture
	}
	return nil
}

func (h *RelayHost) resolve(out relayOutcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return false
	}
	h.pending <- out
	h.pending = nil
	return true
}
