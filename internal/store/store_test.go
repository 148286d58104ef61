package store

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGetSetting(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetSetting(KeyServerName, "voxel-haven"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	val, ok, err := s.GetSetting(KeyServerName)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if !ok || val != "voxel-haven" {
		t.Fatalf("GetSetting = (%q, %v), want (voxel-haven, true)", val, ok)
	}
}

func TestGetSettingMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetSetting("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing key")
	}
}

func TestSetSettingUpserts(t *testing.T) {
	s := openTestStore(t)
	s.SetSetting(KeyDynamicJitterBuffers, "false")
	s.SetSetting(KeyDynamicJitterBuffers, "true")

	val, ok, err := s.GetSetting(KeyDynamicJitterBuffers)
	if err != nil || !ok {
		t.Fatalf("GetSetting: %v ok=%v", err, ok)
	}
	if val != "true" {
		t.Fatalf("value = %q, want true (upsert should overwrite)", val)
	}
}

func TestAllSettings(t *testing.T) {
	s := openTestStore(t)
	s.SetSetting(KeyServerName, "a")
	s.SetSetting(KeyUnattenuatedZone, "0,0,0,1,1,1,0,0,0,1,1,1")

	all, err := s.AllSettings()
	if err != nil {
		t.Fatalf("AllSettings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(AllSettings) = %d, want 2", len(all))
	}
	if all[KeyServerName] != "a" {
		t.Errorf("server_name = %q, want a", all[KeyServerName])
	}
}
