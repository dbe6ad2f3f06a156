package desk

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-desk-backend/internal/capture"
	"checkin-desk-backend/internal/checkin"
	"checkin-desk-backend/internal/gateway"
)

type fakeGateway struct {
	mu      sync.Mutex
	checked map[string]bool
}

func newFakeGateway() *fakeGateway { return &fakeGateway{checked: map[string]bool{}} }

func (g *fakeGateway) LookupByCode(_ context.Context, req gateway.LookupRequest) (*gateway.CheckinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if req.Code != "QR-1" {
		return &gateway.CheckinResult{Message: "Registration not found."}, nil
	}
	return &gateway.CheckinResult{
		Success:          true,
		RegistrationID:   "R1",
		RegistrantName:   "Ada Lovelace",
		AlreadyCheckedIn: g.checked["R1"],
	}, nil
}

func (g *fakeGateway) CommitCheckIn(_ context.Context, req gateway.RegistrationRequest) (*gateway.CheckinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	already := g.checked[req.RegistrationID]
	g.checked[req.RegistrationID] = true
	return &gateway.CheckinResult{Success: true, RegistrationID: req.RegistrationID, RegistrantName: "Ada Lovelace", AlreadyCheckedIn: already}, nil
}

func (g *fakeGateway) UndoCheckIn(_ context.Context, req gateway.RegistrationRequest) (*gateway.UndoResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.checked, req.RegistrationID)
	return &gateway.UndoResult{Success: true, RegistrantName: "Ada Lovelace"}, nil
}

func (g *fakeGateway) SearchRegistrations(context.Context, gateway.SearchRequest) ([]gateway.SearchResult, error) {
	return nil, nil
}

func (g *fakeGateway) ListInstancesByDate(context.Context, string) ([]gateway.InstanceOption, error) {
	return []gateway.InstanceOption{{Value: "I1", Label: "Gala - Evening (19:00)"}}, nil
}

func (g *fakeGateway) CountAttended(context.Context, string, string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.checked), nil
}

type recorder struct {
	mu       sync.Mutex
	captures map[string]int
	evicted  int
}

func newRecorder() *recorder { return &recorder{captures: map[string]int{}} }

func (r *recorder) SessionStarted() {}
func (r *recorder) SessionStopped() {}
func (r *recorder) Lookup(string)   {}
func (r *recorder) Commit(string)   {}
func (r *recorder) Undo(string)     {}
func (r *recorder) Search(string)   {}

func (r *recorder) Capture(backend, outcome string) {
	r.mu.Lock()
	r.captures[backend+"/"+outcome]++
	r.mu.Unlock()
}

func (r *recorder) DeskEvicted() {
	r.mu.Lock()
	r.evicted++
	r.mu.Unlock()
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captures[key]
}

func (r *recorder) evictions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.Gateway == nil {
		opts.Gateway = newFakeGateway()
	}
	opts.Logger = zerolog.Nop()
	opts.PollInterval = 5 * time.Millisecond
	r := NewRegistry(opts)
	t.Cleanup(r.Close)
	return r
}

func startSession(t *testing.T, d *Desk) {
	t.Helper()
	require.NoError(t, d.Machine().StartSession(context.Background(), "I1"))
	d.Machine().Notices()
}

func hasNotice(notices []checkin.Notice, variant checkin.Variant, title string) bool {
	for _, n := range notices {
		if n.Variant == variant && n.Title == title {
			return true
		}
	}
	return false
}

func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, matrix))
	return buf.Bytes()
}

func TestDesk_ScanRequiresSession(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, NativeScanner: true})

	_, err := d.Scan(context.Background())
	assert.ErrorIs(t, err, checkin.ErrNoSession)
	assert.True(t, hasNotice(d.Machine().Notices(), checkin.VariantWarning, "Session Not Started"))
	assert.Equal(t, capture.NativeIdle, d.View().Capture.NativeState)
}

func TestDesk_SubmitCodeThroughManualEntry(t *testing.T) {
	rec := newRecorder()
	r := newTestRegistry(t, Options{Recorder: rec})
	d := r.Create(Capabilities{})
	startSession(t, d)
	d.Machine().SetCodeInput("typed by another request")

	require.NoError(t, d.SubmitCode(context.Background(), "  QR-1 "))
	pending := d.Machine().Pending()
	require.NotNil(t, pending)
	assert.Equal(t, "R1", pending.RegistrationID)
	assert.Empty(t, d.Machine().CodeInput())
	assert.Equal(t, 1, rec.count("manual/submitted"))

	err := d.SubmitCode(context.Background(), "nope")
	assert.True(t, checkin.IsRejected(err))
	assert.Equal(t, 1, rec.count("manual/rejected"))
}

func TestDesk_ScanFallsBackToManualWithDiagnostic(t *testing.T) {
	tests := []struct {
		name  string
		caps  Capabilities
		title string
	}{
		{"insecure context", Capabilities{MediaDevices: true}, "Camera Not Available"},
		{"no media devices", Capabilities{SecureContext: true}, "Camera Not Supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, Options{})
			d := r.Create(tt.caps)
			startSession(t, d)

			res, err := d.Scan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, capture.KindManual, res.Backend)
			assert.NotEmpty(t, res.Diagnostic)
			assert.True(t, hasNotice(d.Machine().Notices(), checkin.VariantInfo, tt.title))
			assert.Nil(t, d.Machine().Pending())
		})
	}
}

func TestDesk_NativeScannerRoundTrip(t *testing.T) {
	rec := newRecorder()
	r := newTestRegistry(t, Options{Recorder: rec})
	d := r.Create(Capabilities{SecureContext: true, NativeScanner: true, MediaDevices: true})
	startSession(t, d)

	res, err := d.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, capture.KindNative, res.Backend)
	require.NotNil(t, res.Options)
	assert.Contains(t, res.Options.BarcodeTypes, "QR")

	require.Eventually(t, func() bool { return d.View().Capture.NativeWaiting }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.ScannerResult("QR-1", ""))

	require.Eventually(t, func() bool { return d.Machine().Pending() != nil }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.count("native/submitted") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, capture.NativeResolved, d.View().Capture.NativeState)
}

func TestDesk_NativeScannerDismissedIsSilent(t *testing.T) {
	rec := newRecorder()
	r := newTestRegistry(t, Options{Recorder: rec})
	d := r.Create(Capabilities{SecureContext: true, NativeScanner: true})
	startSession(t, d)

	_, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.View().Capture.NativeWaiting }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.ScannerResult("", capture.ErrUserDismissed.Error()))

	require.Eventually(t, func() bool { return rec.count("native/dismissed") == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, d.Machine().Notices())
	assert.Nil(t, d.Machine().Pending())
}

func TestDesk_NativeScannerFailure(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, NativeScanner: true})
	startSession(t, d)

	_, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.View().Capture.NativeWaiting }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.ScannerResult("", "camera busy"))

	var notices []checkin.Notice
	require.Eventually(t, func() bool {
		notices = append(notices, d.Machine().Notices()...)
		return hasNotice(notices, checkin.VariantError, "Scan Error")
	}, time.Second, 5*time.Millisecond)
}

func TestDesk_ScannerResultWithoutCapture(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{NativeScanner: true})
	assert.ErrorIs(t, d.ScannerResult("QR-1", ""), capture.ErrNoCapture)
}

func TestDesk_CameraScanDecodesUploadedFrame(t *testing.T) {
	rec := newRecorder()
	r := newTestRegistry(t, Options{Recorder: rec})
	d := r.Create(Capabilities{SecureContext: true, MediaDevices: true})
	startSession(t, d)

	res, err := d.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, capture.KindCamera, res.Backend)
	assert.True(t, d.View().Capture.CameraScanning)

	require.NoError(t, d.PushFrame(bytes.NewReader(qrPNG(t, "QR-1"))))
	require.Eventually(t, func() bool { return d.Machine().Pending() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, d.View().Capture.CameraScanning)
	assert.Eventually(t, func() bool { return rec.count("camera/submitted") == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, d.PushFrame(bytes.NewReader(qrPNG(t, "QR-1"))), capture.ErrNoStream)
}

func TestDesk_PushFrameRejectsGarbage(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, MediaDevices: true})
	startSession(t, d)
	_, err := d.Scan(context.Background())
	require.NoError(t, err)

	assert.Error(t, d.PushFrame(bytes.NewReader([]byte("not an image"))))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	assert.NoError(t, d.PushFrame(&buf))
	assert.True(t, d.View().Capture.CameraScanning)
}

func TestDesk_CameraPermissionDenied(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, MediaDevices: true, CameraError: "NotAllowedError"})
	startSession(t, d)

	_, err := d.Scan(context.Background())
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)

	notices := d.Machine().Notices()
	require.NotEmpty(t, notices)
	last := notices[len(notices)-1]
	assert.Equal(t, "Camera Error", last.Title)
	assert.Equal(t, "Failed to access camera. Please grant camera permissions in your browser settings.", last.Message)
	assert.False(t, d.View().Capture.CameraScanning)
}

func TestDesk_CameraFailedStopsScanning(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, MediaDevices: true})
	startSession(t, d)
	_, err := d.Scan(context.Background())
	require.NoError(t, err)

	d.CameraFailed("NotFoundError", "Requested device not found")
	assert.False(t, d.View().Capture.CameraScanning)
	notices := d.Machine().Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, "Failed to access camera. No camera found on this device.", notices[len(notices)-1].Message)
}

func TestDesk_SetCapabilitiesStopsRunningCamera(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{SecureContext: true, MediaDevices: true})
	startSession(t, d)
	_, err := d.Scan(context.Background())
	require.NoError(t, err)

	d.SetCapabilities(Capabilities{SecureContext: true, NativeScanner: true, MediaDevices: true})
	v := d.View()
	assert.False(t, v.Capture.CameraScanning)
	assert.Equal(t, capture.KindNative, v.Capture.Preferred)
}

func TestDesk_CloseStopsSessionAndReportsSummary(t *testing.T) {
	var (
		mu        sync.Mutex
		summaries []string
	)
	r := newTestRegistry(t, Options{OnSummary: func(id string, s checkin.Summary) {
		mu.Lock()
		summaries = append(summaries, id+":"+s.InstanceID)
		mu.Unlock()
	}})
	d := r.Create(Capabilities{SecureContext: true, NativeScanner: true})
	startSession(t, d)
	_, err := d.Scan(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.View().Capture.NativeWaiting }, time.Second, 5*time.Millisecond)

	assert.True(t, d.Close())
	assert.False(t, d.Close())
	assert.False(t, d.Machine().Session().Active)

	mu.Lock()
	assert.Equal(t, []string{d.ID + ":I1"}, summaries)
	mu.Unlock()

	assert.ErrorIs(t, d.SubmitCode(context.Background(), "QR-1"), ErrClosed)
	_, err = d.Scan(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Eventually(t, func() bool { return !d.View().Capture.NativeWaiting }, time.Second, 5*time.Millisecond)
}

func TestRegistry_GetDelete(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{})
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(d.ID)
	require.NoError(t, err)
	assert.Same(t, d, got)

	require.NoError(t, r.Delete(d.ID))
	assert.Equal(t, 0, r.Len())
	_, err = r.Get(d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Delete(d.ID), ErrNotFound)
}

func TestRegistry_GetDropsClosedDesk(t *testing.T) {
	r := newTestRegistry(t, Options{})
	d := r.Create(Capabilities{})
	require.True(t, d.Close())

	_, err := r.Get(d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_EvictsIdleDesks(t *testing.T) {
	rec := newRecorder()
	var (
		mu      sync.Mutex
		stopped int
	)
	r := newTestRegistry(t, Options{
		TTL:      40 * time.Millisecond,
		Recorder: rec,
		OnSummary: func(string, checkin.Summary) {
			mu.Lock()
			stopped++
			mu.Unlock()
		},
	})
	d := r.Create(Capabilities{})
	startSession(t, d)

	require.Eventually(t, func() bool { return rec.evictions() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err := r.Get(d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, d.Machine().Session().Active)
	mu.Lock()
	assert.Equal(t, 1, stopped)
	mu.Unlock()
}
