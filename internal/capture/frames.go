package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"
)

// ErrNoStream is returned when a frame is pushed while no stream is open.
var ErrNoStream = errors.New("capture: camera stream is not open")

// FrameFeed is a MediaDevices fed by frames the client uploads. Each opened
// stream yields every pushed frame once. Opening a stream supersedes the
// previous one, which then reads nothing and stops nothing.
type FrameFeed struct {
	mu      sync.Mutex
	failure error
	open    bool
	gen     uint64
	latest  image.Image
	seq     uint64
	read    uint64
	stops   int
}

func NewFrameFeed() *FrameFeed { return &FrameFeed{} }

// Fail makes the next acquisitions fail with err; nil clears it.
func (f *FrameFeed) Fail(err error) {
	f.mu.Lock()
	f.failure = err
	f.mu.Unlock()
}

func (f *FrameFeed) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	f.gen++
	f.open = true
	f.latest = nil
	f.read = f.seq
	return feedStream{f: f, gen: f.gen}, nil
}

// Open reports whether a stream is currently acquired.
func (f *FrameFeed) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Stops is the number of times a stream was stopped.
func (f *FrameFeed) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Push decodes a PNG or JPEG frame and makes it the latest frame.
func (f *FrameFeed) Push(r io.Reader) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return f.PushImage(img)
}

func (f *FrameFeed) PushImage(img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrNoStream
	}
	f.latest = img
	f.seq++
	return nil
}

type feedStream struct {
	f   *FrameFeed
	gen uint64
}

func (s feedStream) ReadFrame() (image.Image, bool) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if !s.f.open || s.gen != s.f.gen || s.f.latest == nil || s.f.read == s.f.seq {
		return nil, false
	}
	s.f.read = s.f.seq
	return s.f.latest, true
}

func (s feedStream) Stop() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if !s.f.open || s.gen != s.f.gen {
		return
	}
	s.f.open = false
	s.f.latest = nil
	s.f.stops++
}
