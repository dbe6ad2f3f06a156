package desk

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"checkin-desk-backend/internal/capture"
	"checkin-desk-backend/internal/checkin"
	"checkin-desk-backend/internal/gateway"
)

// ErrNotFound is returned for unknown or expired desks.
var ErrNotFound = errors.New("desk: not found")

// DefaultTTL is how long an untouched desk is kept.
const DefaultTTL = 30 * time.Minute

// Options configures the desks a Registry creates.
type Options struct {
	Gateway       gateway.Gateway
	CheckinStatus string
	PageSize      int
	PollInterval  time.Duration
	NativeTimeout time.Duration
	TTL           time.Duration
	Decode        capture.DecodeFunc
	Logger        zerolog.Logger
	Recorder      Recorder
	// OnSummary receives every stopped session, including sessions stopped
	// because their desk expired.
	OnSummary func(deskID string, s checkin.Summary)
}

// Registry holds the live desks. Desks idle for longer than the TTL are
// closed and dropped.
type Registry struct {
	desks *cache.Cache
	opts  Options
	log   zerolog.Logger
}

func NewRegistry(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = capture.DefaultPollInterval
	}
	if opts.NativeTimeout <= 0 {
		opts.NativeTimeout = time.Minute
	}
	if opts.Decode == nil {
		opts.Decode = capture.NewQRDecoder()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	r := &Registry{
		desks: cache.New(opts.TTL, opts.TTL/2),
		opts:  opts,
		log:   opts.Logger,
	}
	r.desks.OnEvicted(func(id string, v interface{}) {
		d, ok := v.(*Desk)
		if !ok {
			return
		}
		if d.Close() {
			r.opts.Recorder.DeskEvicted()
			r.log.Info().Str("desk_id", id).Msg("idle desk evicted")
		}
	})
	return r
}

// Create opens a new desk with the given client capabilities.
func (r *Registry) Create(caps Capabilities) *Desk {
	d := newDesk(uuid.NewString(), r.opts)
	d.SetCapabilities(caps)
	r.desks.SetDefault(d.ID, d)
	r.log.Info().Str("desk_id", d.ID).Bool("secure_context", caps.SecureContext).
		Bool("native_scanner", caps.NativeScanner).Bool("media_devices", caps.MediaDevices).
		Msg("desk created")
	return d
}

// Get returns a desk and extends its lifetime. A desk closed by a
// concurrent eviction is dropped again and reported as not found.
func (r *Registry) Get(id string) (*Desk, error) {
	v, ok := r.desks.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	d := v.(*Desk)
	r.desks.SetDefault(id, d)
	if d.isClosed() {
		r.desks.Delete(id)
		return nil, ErrNotFound
	}
	return d, nil
}

// Delete closes and drops a desk.
func (r *Registry) Delete(id string) error {
	v, ok := r.desks.Get(id)
	if !ok {
		return ErrNotFound
	}
	v.(*Desk).Close()
	r.desks.Delete(id)
	return nil
}

// Len is the number of live desks.
func (r *Registry) Len() int { return r.desks.ItemCount() }

// Close tears down every desk. Running sessions still report their summary.
func (r *Registry) Close() {
	for _, item := range r.desks.Items() {
		if d, ok := item.Object.(*Desk); ok {
			d.Close()
		}
	}
	r.desks.Flush()
}
