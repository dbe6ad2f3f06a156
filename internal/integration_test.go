package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/checkin"
	"checkin-desk-backend/internal/db"
	"checkin-desk-backend/internal/desk"
	"checkin-desk-backend/internal/gateway"
	"checkin-desk-backend/internal/model"
	"checkin-desk-backend/internal/remote"
	"checkin-desk-backend/internal/store"
)

// registrationService is an in-memory stand-in for the upstream registration
// system, speaking the {code, message, data} envelope.
type registrationService struct {
	mu       sync.Mutex
	status   map[string]string
	requests map[string]int
}

func newRegistrationService() *registrationService {
	return &registrationService{
		status:   map[string]string{"R1": "Registered", "R2": "Attended"},
		requests: map[string]int{},
	}
}

func (s *registrationService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path]++

	var data any
	switch r.URL.Path {
	case "/instances":
		data = []gateway.InstanceOption{{
			Value: "I1", Label: "Open House - Morning (09:00)", EventName: "Open House",
			InstanceTitle: "Morning", InstanceStartDate: "2026-03-14", InstanceStartTime: gateway.TimeMillis(9 * 3600 * 1000),
		}}
	case "/count":
		var req gateway.CountRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		n := 0
		for _, st := range s.status {
			if st == req.CheckinStatus {
				n++
			}
		}
		data = map[string]int{"count": n}
	case "/lookup":
		var req gateway.LookupRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "QR-1" {
			data = gateway.CheckinResult{Message: "No registration found with this QR code"}
			break
		}
		data = gateway.CheckinResult{
			Success: true, RegistrationID: "R1", RegistrantName: "Ada Lovelace",
			AlreadyCheckedIn: s.status["R1"] == req.CheckinStatus,
		}
	case "/commit":
		var req gateway.RegistrationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		already := s.status[req.RegistrationID] == req.CheckinStatus
		s.status[req.RegistrationID] = req.CheckinStatus
		data = gateway.CheckinResult{Success: true, RegistrationID: req.RegistrationID, RegistrantName: "Ada Lovelace", AlreadyCheckedIn: already}
	case "/undo":
		var req gateway.RegistrationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.status[req.RegistrationID] = "Registered"
		data = gateway.UndoResult{Success: true, RegistrantName: "Ada Lovelace"}
	case "/search":
		data = nil
	default:
		http.NotFound(w, r)
		return
	}

	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": "ok", "data": json.RawMessage(raw)})
}

func (s *registrationService) calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TestRemoteCheckinLifecycle drives a desk through a full session against
// the remote registration service.
func TestRemoteCheckinLifecycle(t *testing.T) {
	svc := newRegistrationService()
	server := httptest.NewServer(svc)
	defer server.Close()

	client := remote.NewClient(config.RemoteConfig{URL: server.URL, Timeout: 5 * time.Second}, zerolog.Nop())

	var summaries []checkin.Summary
	registry := desk.NewRegistry(desk.Options{
		Gateway:   client,
		Logger:    zerolog.Nop(),
		OnSummary: func(_ string, s checkin.Summary) { summaries = append(summaries, s) },
	})
	defer registry.Close()

	d := registry.Create(desk.Capabilities{})
	m := d.Machine()
	ctx := context.Background()

	t.Run("Cycle 1: Pick Instance And Start", func(t *testing.T) {
		opts, err := m.LoadInstances(ctx, "2026-03-14")
		require.NoError(t, err)
		require.Len(t, opts, 1)
		assert.Equal(t, "09:00", opts[0].InstanceStartTime.String())

		require.NoError(t, m.SelectInstance("I1"))
		require.NoError(t, m.StartSession(ctx, "I1"))
		assert.Equal(t, 1, m.Session().TotalAttended)
	})

	t.Run("Cycle 2: Scan And Confirm", func(t *testing.T) {
		require.NoError(t, d.SubmitCode(ctx, "QR-1"))
		require.NotNil(t, m.Pending())

		res, err := m.ConfirmCheckIn(ctx)
		require.NoError(t, err)
		assert.True(t, res.IsNewCheckIn())
		assert.Equal(t, 1, m.Session().ScanCount)
		assert.Equal(t, 2, m.Session().TotalAttended)
	})

	t.Run("Cycle 3: Duplicate Scan Is Undone", func(t *testing.T) {
		require.NoError(t, d.SubmitCode(ctx, "QR-1"))
		pending := m.Pending()
		require.NotNil(t, pending)
		assert.True(t, pending.AlreadyCheckedIn)

		_, err := m.UndoCheckIn(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Session().ScanCount)
		assert.Equal(t, 1, m.Session().TotalAttended)
	})

	t.Run("Cycle 4: Search Without Results And Stop", func(t *testing.T) {
		results, err := m.Search(ctx, checkin.Criteria{LastName: "Nobody"})
		require.NoError(t, err)
		assert.Empty(t, results)

		summary, err := m.StopSession()
		require.NoError(t, err)
		assert.Equal(t, "I1", summary.InstanceID)
		require.Len(t, summaries, 1)
		assert.Equal(t, checkin.StateIdle, m.State())
	})

	assert.Equal(t, 1, svc.calls("/commit"))
	assert.Equal(t, 1, svc.calls("/undo"))
	assert.Equal(t, 2, svc.calls("/lookup"))
}

// TestLocalCheckinFromSeed stands a desk up on the local store loaded from a
// seed file.
func TestLocalCheckinFromSeed(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:seedlifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
instances:
  - id: GALA
    event_name: Spring Gala
    title: Evening
    start_date: "2026-04-02"
    start_time: "19:00"
    registrations:
      - id: G1
        code: GALA-001
        first_name: Grace
        last_name: Hopper
        email: grace@example.com
      - first_name: Katherine
        last_name: Johnson
        email: kj@example.com
`), 0o600))

	st := store.NewGormStore(testDB, 50)
	seed, err := store.LoadSeed(seedPath)
	require.NoError(t, err)
	n, err := seed.Apply(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	registry := desk.NewRegistry(desk.Options{Gateway: st, Logger: zerolog.Nop()})
	defer registry.Close()
	d := registry.Create(desk.Capabilities{})
	m := d.Machine()
	ctx := context.Background()

	require.NoError(t, m.StartSession(ctx, "GALA"))

	t.Run("Scanned URL Payload", func(t *testing.T) {
		require.NoError(t, d.SubmitCode(ctx, "https://events.example.com/checkin?code=GALA-001"))
		_, err := m.ConfirmCheckIn(ctx)
		require.NoError(t, err)

		var reg model.Registration
		require.NoError(t, testDB.First(&reg, "id = ?", "G1").Error)
		assert.Equal(t, checkin.DefaultCheckinStatus, reg.Status)
		assert.Equal(t, model.DefaultRegistrationStatus, reg.PreviousStatus)
		assert.NotNil(t, reg.CheckedInAt)
	})

	t.Run("Search Then Check In", func(t *testing.T) {
		results, err := m.Search(ctx, checkin.Criteria{LastName: "john"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Katherine Johnson", results[0].Name)

		_, err = m.SelectSearchResult(ctx, results[0].ID)
		require.NoError(t, err)
		_, err = m.ConfirmCheckIn(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Session().ScanCount)
		assert.Equal(t, 2, m.Session().TotalAttended)
	})

	t.Run("Undo Restores Previous Status", func(t *testing.T) {
		require.NoError(t, d.SubmitCode(ctx, "SE:GALA-001"))
		_, err := m.UndoCheckIn(ctx)
		require.NoError(t, err)

		var reg model.Registration
		require.NoError(t, testDB.First(&reg, "id = ?", "G1").Error)
		assert.Equal(t, model.DefaultRegistrationStatus, reg.Status)
		assert.Nil(t, reg.CheckedInAt)
		assert.Equal(t, 1, m.Session().TotalAttended)
	})
}
