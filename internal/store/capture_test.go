package store

import (
	"errors"
	"testing"
	"time"
)

func testCapture(id string, at time.Time) *Capture {
	return &Capture{
		ID:           id,
		Garment:      "shirt",
		Unit:         "cm",
		HeightHintCm: 175,
		ImagePath:    "stills/" + id + ".jpg",
		TimestampMs:  2970,
		CapturedAt:   at,
		Measurements: []Measurement{
			{Kind: "shoulder_width", Label: "Shoulder width", ValueCm: 44.8, Confidence: 0.95},
			{Kind: "chest", Label: "Chest", ValueCm: 98.2, Confidence: 0.85},
			{Kind: "sleeve_length", Label: "Sleeve length", ValueCm: 61.5, Confidence: 0.9},
		},
	}
}

func TestCaptureRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Captures()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.Create(testCapture("cap-1", at)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID("cap-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Garment != "shirt" || got.Unit != "cm" || got.HeightHintCm != 175 {
		t.Errorf("capture = %+v", got)
	}
	if got.ImagePath != "stills/cap-1.jpg" || got.TimestampMs != 2970 {
		t.Errorf("capture = %+v", got)
	}
	if !got.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, at)
	}
	if len(got.Measurements) != 3 {
		t.Fatalf("got %d measurements, want 3", len(got.Measurements))
	}
	wantOrder := []string{"shoulder_width", "chest", "sleeve_length"}
	for i, k := range wantOrder {
		if got.Measurements[i].Kind != k {
			t.Errorf("measurement %d = %s, want %s", i, got.Measurements[i].Kind, k)
		}
	}
	if got.Measurements[1].ValueCm != 98.2 || got.Measurements[1].Confidence != 0.85 {
		t.Errorf("chest = %+v", got.Measurements[1])
	}
}

func TestCaptureRepository_CreateSetsTime(t *testing.T) {
	s := newTestStore(t)
	c := testCapture("cap-1", time.Time{})
	if err := s.Captures().Create(c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set on create")
	}
}

func TestCaptureRepository_CreateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	repo := s.Captures()

	c := testCapture("cap-1", time.Now())
	c.Measurements = append(c.Measurements, c.Measurements[0]) // duplicate kind
	if err := repo.Create(c); err == nil {
		t.Fatal("expected error for duplicate measurement kind")
	}

	if _, err := repo.GetByID("cap-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound after rollback", err)
	}
}

func TestCaptureRepository_RejectsUnknownGarment(t *testing.T) {
	s := newTestStore(t)
	c := testCapture("cap-1", time.Now())
	c.Garment = "hat"
	if err := s.Captures().Create(c); err == nil {
		t.Error("expected constraint error for unknown garment")
	}
}

func TestCaptureRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Captures().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestCaptureRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Captures()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(testCapture(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d captures, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s,%s,%s; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}
	for _, c := range all {
		if len(c.Measurements) != 3 {
			t.Errorf("capture %s has %d measurements", c.ID, len(c.Measurements))
		}
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d captures, want 2", len(limited))
	}

	if n, err := repo.Count(); err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestCaptureRepository_List_Empty(t *testing.T) {
	s := newTestStore(t)
	captures, err := s.Captures().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(captures) != 0 {
		t.Errorf("got %d captures, want 0", len(captures))
	}
}

func TestCaptureRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	repo := s.Captures()

	if err := repo.Create(testCapture("cap-1", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Exports().Create(&Export{CaptureID: "cap-1", PluginName: "csv-export", Success: true}); err != nil {
		t.Fatalf("Exports().Create() error = %v", err)
	}

	if err := repo.Delete("cap-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var n int
	s.DB().QueryRow(`SELECT COUNT(*) FROM capture_measurements WHERE capture_id = ?`, "cap-1").Scan(&n)
	if n != 0 {
		t.Errorf("%d measurements left after delete", n)
	}
	exports, _ := s.Exports().ListByCapture("cap-1")
	if len(exports) != 0 {
		t.Errorf("%d exports left after delete", len(exports))
	}

	if err := repo.Delete("cap-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestExportRepository(t *testing.T) {
	s := newTestStore(t)
	if err := s.Captures().Create(testCapture("cap-1", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exports := s.Exports()
	ok := &Export{CaptureID: "cap-1", PluginName: "csv-export", Success: true, Message: "wrote 3 rows"}
	failed := &Export{CaptureID: "cap-1", PluginName: "webhook", Success: false, Message: "timeout"}
	for _, e := range []*Export{ok, failed} {
		if err := exports.Create(e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("ID should be set on create")
		}
	}

	got, err := exports.ListByCapture("cap-1")
	if err != nil {
		t.Fatalf("ListByCapture() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d exports, want 2", len(got))
	}
	if !got[0].Success || got[0].PluginName != "csv-export" {
		t.Errorf("first export = %+v", got[0])
	}
	if got[1].Success || got[1].Message != "timeout" {
		t.Errorf("second export = %+v", got[1])
	}

	if err := exports.Create(&Export{CaptureID: "missing", PluginName: "x"}); err == nil {
		t.Error("expected foreign key error for unknown capture")
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get(SettingGarment); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := settings.Set(SettingGarment, "shirt"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := settings.Set(SettingGarment, "suit"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if err := settings.Set(SettingHeightHint, "172.5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if v, _ := settings.Get(SettingGarment); v != "suit" {
		t.Errorf("Get() = %q, want suit", v)
	}

	all, err := settings.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all[SettingHeightHint] != "172.5" {
		t.Errorf("All() = %v", all)
	}
}
