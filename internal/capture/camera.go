package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often a camera frame is decoded.
const DefaultPollInterval = 100 * time.Millisecond

// Constraints select the video device.
type Constraints struct {
	FacingMode string
}

// Stream is an acquired video stream.
type Stream interface {
	// ReadFrame returns the latest frame, or false when none is ready.
	ReadFrame() (image.Image, bool)
	Stop()
}

// MediaDevices acquires video streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// DecodeFunc extracts a code from a frame; false means nothing was found.
type DecodeFunc func(image.Image) (string, bool)

// Environment holds the three camera preconditions.
type Environment struct {
	SecureContext bool
	Media         MediaDevices
	Decode        DecodeFunc
}

// CameraDecode polls a rear-facing camera stream and submits the first
// decoded code. It owns the stream and the poll ticker.
type CameraDecode struct {
	env      Environment
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	starting bool
	epoch    uint64 // bumped by Stop
	stream   Stream
	ticker   *time.Ticker
	done     chan struct{}
}

func NewCameraDecode(env Environment, interval time.Duration, log zerolog.Logger) *CameraDecode {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &CameraDecode{env: env, interval: interval, log: log}
}

func (c *CameraDecode) Kind() Kind { return KindCamera }

func (c *CameraDecode) Probe() error {
	switch {
	case !c.env.SecureContext:
		return ErrInsecureContext
	case c.env.Media == nil:
		return ErrMediaUnsupported
	case c.env.Decode == nil:
		return ErrDecoderNotLoaded
	}
	return nil
}

// Scanning reports whether the stream is being acquired or polled.
func (c *CameraDecode) Scanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starting || c.done != nil
}

// Capture acquires the stream and starts polling. It returns once polling
// has started; the decoded code is submitted from the poll loop.
func (c *CameraDecode) Capture(ctx context.Context, submit SubmitFunc) error {
	if err := c.Probe(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.starting || c.done != nil {
		c.mu.Unlock()
		return ErrCaptureInProgress
	}
	c.starting = true
	epoch := c.epoch
	c.mu.Unlock()

	stream, err := c.env.Media.GetUserMedia(ctx, Constraints{FacingMode: "environment"})

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("camera access failed")
		return CameraError(err)
	}
	if c.epoch != epoch {
		c.mu.Unlock()
		stream.Stop()
		return ErrCaptureStopped
	}
	done := make(chan struct{})
	c.stream = stream
	c.ticker = time.NewTicker(c.interval)
	c.done = done
	ticks := c.ticker.C
	c.mu.Unlock()

	go c.poll(stream, ticks, done, submit)
	return nil
}

func (c *CameraDecode) poll(stream Stream, ticks <-chan time.Time, done chan struct{}, submit SubmitFunc) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			frame, ok := stream.ReadFrame()
			if !ok {
				continue
			}
			code, ok := c.env.Decode(frame)
			if !ok {
				continue
			}
			// A concurrent Stop wins over a late decode.
			if !c.release(done) {
				return
			}
			c.log.Debug().Str("code", code).Msg("QR code detected")
			if err := submit(context.Background(), code); err != nil {
				c.log.Debug().Err(err).Msg("decoded code was not accepted")
			}
			return
		}
	}
}

// Stop clears the poll timer and stops the stream. A stream still being
// acquired is released as soon as it arrives. Safe to call repeatedly.
func (c *CameraDecode) Stop() {
	c.mu.Lock()
	c.epoch++
	done := c.done
	c.mu.Unlock()
	if done != nil {
		c.release(done)
	}
}

// release tears down the loop identified by done; false if it already ended.
func (c *CameraDecode) release(done chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return false
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	close(c.done)
	c.done = nil
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
	return true
}

// CameraError maps a camera acquisition failure to the message shown to staff.
func CameraError(err error) *Error {
	msg := "Failed to access camera. "
	switch {
	case errors.Is(err, ErrPermissionDenied):
		msg += "Please grant camera permissions in your browser settings."
	case errors.Is(err, ErrDeviceNotFound):
		msg += "No camera found on this device."
	default:
		msg += err.Error()
	}
	return &Error{Kind: KindCamera, Title: "Camera Error", Message: msg, Err: err}
}

// MediaError maps a DOM media error name reported by a browser.
func MediaError(name, message string) error {
	switch name {
	case "NotAllowedError", "PermissionDeniedError":
		return ErrPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		return ErrDeviceNotFound
	case "":
		return nil
	}
	if message == "" {
		message = name
	}
	return errors.New(message)
}
