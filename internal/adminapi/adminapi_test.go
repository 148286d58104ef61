package adminapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gitter-badger/hifi/internal/config"
	"github.com/gitter-badger/hifi/internal/store"
	"github.com/gitter-badger/hifi/internal/transport"
)

type fakeRoom struct {
	peers int
	stats transport.Stats
}

func (f *fakeRoom) Stats() transport.Stats { return f.stats }
func (f *fakeRoom) PeerCount() int         { return f.peers }

type fakeThrottle struct {
	trailing, ratio, threshold float64
}

func (f *fakeThrottle) TrailingSleepRatio() float64         { return f.trailing }
func (f *fakeThrottle) PerformanceThrottlingRatio() float64 { return f.ratio }
func (f *fakeThrottle) MinAudibilityThreshold() float64     { return f.threshold }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:", testLogger())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	room := &fakeRoom{peers: 2, stats: transport.Stats{Peers: 2, TotalDatagrams: 10}}
	th := &fakeThrottle{trailing: 0.1, ratio: 0, threshold: 1e-6}
	return New(room, th, st, &cfg, testLogger()), st
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" || body.Peers != 2 {
		t.Errorf("body = %+v, want status=ok peers=2", body)
	}
}

func TestHandleRoom(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/room", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body RoomResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TotalDatagrams != 10 || body.MinAudibilityThreshold != 1e-6 {
		t.Errorf("body = %+v, unexpected values", body)
	}
}

func TestHandleGetSettingsDefaults(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body SettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.ServerName != "" {
		t.Errorf("ServerName = %q, want empty before any PUT", body.ServerName)
	}
}

func TestHandlePutSettingsValidName(t *testing.T) {
	s, st := newTestServer(t)
	body, _ := json.Marshal(SettingsRequest{ServerName: "my mixer"})
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", rec.Code, rec.Body.String())
	}
	name, ok, err := st.GetSetting(store.KeyServerName)
	if err != nil || !ok || name != "my mixer" {
		t.Fatalf("GetSetting = (%q, %v, %v), want (my mixer, true, nil)", name, ok, err)
	}
}

func TestHandlePutSettingsEmptyNameRejected(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(SettingsRequest{ServerName: "   "})
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePutSettingsTooLongNameRejected(t *testing.T) {
	s, _ := newTestServer(t)
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	body, _ := json.Marshal(SettingsRequest{ServerName: string(long)})
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePutSettingsZoneMutatesLiveConfig(t *testing.T) {
	s, _ := newTestServer(t)
	zone := "0,0,0,1,1,1,5,5,5,6,6,6"
	body, _ := json.Marshal(SettingsRequest{ServerName: "mixer", UnattenuatedZone: zone})
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", rec.Code, rec.Body.String())
	}
	if s.cfg.Zones == nil {
		t.Fatal("expected cfg.Zones to be set after PUT")
	}
}

func TestHandlePutSettingsBadZoneRejected(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(SettingsRequest{ServerName: "mixer", UnattenuatedZone: "not,enough,fields"})
	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if s.cfg.Zones != nil {
		t.Error("cfg.Zones should remain nil after a rejected zone update")
	}
}
