package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Moudilu/audio-controller/internal/infrastructure/database"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE pairing_audit (
			id TEXT PRIMARY KEY,
			device TEXT NOT NULL,
			service TEXT NOT NULL,
			decision TEXT NOT NULL,
			window_open INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateGeneratesIDAndTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	rec := &PairingRecord{
		Device:     "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		Service:    "0000110d-0000-1000-8000-00805f9b34fb",
		Decision:   DecisionGranted,
		WindowOpen: true,
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Error("Create did not generate an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Create did not set CreatedAt")
	}
}

func TestListNewestFirstWithFilter(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []PairingRecord{
		{Device: "dev-1", Service: "svc", Decision: DecisionDenied, CreatedAt: base},
		{Device: "dev-2", Service: "svc", Decision: DecisionGranted, WindowOpen: true, CreatedAt: base.Add(time.Minute)},
		{Device: "dev-3", Service: "svc", Decision: DecisionDenied, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 3 || len(all.Records) != 3 {
		t.Fatalf("List returned %d/%d records, want 3/3", len(all.Records), all.Total)
	}
	if all.Records[0].Device != "dev-3" {
		t.Errorf("first record = %q, want dev-3 (newest first)", all.Records[0].Device)
	}

	denied, err := repo.List(ctx, Filter{Decision: DecisionDenied})
	if err != nil {
		t.Fatalf("List denied: %v", err)
	}
	if denied.Total != 2 {
		t.Errorf("denied total = %d, want 2", denied.Total)
	}
	for _, rec := range denied.Records {
		if rec.Decision != DecisionDenied {
			t.Errorf("filtered list contains %q decision", rec.Decision)
		}
	}
}

func TestListPagination(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := PairingRecord{
			Device:    "dev",
			Service:   "svc",
			Decision:  DecisionDenied,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, &rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Records) != 2 || page.Total != 5 {
		t.Fatalf("page returned %d/%d, want 2/5", len(page.Records), page.Total)
	}
	if page.Limit != 2 || page.Offset != 2 {
		t.Errorf("page metadata = limit %d offset %d", page.Limit, page.Offset)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := openTestRepo(t)

	res, err := repo.List(context.Background(), Filter{Limit: 10000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Limit != maxListLimit {
		t.Errorf("limit = %d, want clamped to %d", res.Limit, maxListLimit)
	}
}
