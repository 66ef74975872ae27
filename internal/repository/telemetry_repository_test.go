package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"sat-telemetry/internal/models"
	"sat-telemetry/internal/telemetry"
	"sat-telemetry/internal/validation"
)

// newTestDB returns a migrated in-memory SQLite database private to t.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Connect("file:"+name+"?mode=memory&cache=shared", true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func validFlat(t *testing.T, body string) telemetry.Flat {
	t.Helper()
	raw, err := validation.DecodeObject([]byte(body))
	if err != nil {
		t.Fatalf("DecodeObject: %v", err)
	}
	f, err := validation.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return f
}

func TestTelemetryRepository_InsertThenFindRoundTrip(t *testing.T) {
	repo := NewTelemetryRepository(newTestDB(t))
	ctx := context.Background()

	in := validFlat(t, `{
		"sat_id": "SAT-7",
		"timestamp": "2024-03-10T08:15:30.25Z",
		"position": {"lat": 51.5, "lon": -0.12, "alt": 550.5},
		"velocity": {"vx": 7.5, "vz": -0.01},
		"status": "nominal",
		"metrics": {"battery": 0.93, "mode": "science", "nested": {"a": [1, 2]}}
	}`)

	id, err := repo.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == 0 {
		t.Fatal("Insert returned id 0")
	}

	rec, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if rec == nil {
		t.Fatalf("FindByID(%d) returned nil", id)
	}
	if rec.ID != id {
		t.Errorf("ID = %d, want %d", rec.ID, id)
	}

	got, err := rec.Flat()
	if err != nil {
		t.Fatalf("Flat: %v", err)
	}
	if !got.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, in.Timestamp)
	}
	got.Timestamp, in.Timestamp = time.Time{}, time.Time{}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("stored record = %+v, want %+v", got, in)
	}
}

func TestTelemetryRepository_AbsentOptionalsStoredAsNull(t *testing.T) {
	db := newTestDB(t)
	repo := NewTelemetryRepository(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, validFlat(t, `{"sat_id":"SAT-1","timestamp":"2024-01-01T00:00:00Z","position":{"lat":1.0,"lon":2.0}}`))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var nulls struct {
		Alt, VX, VY, VZ, Status, Metrics *string
	}
	err = db.Raw("SELECT alt, vx, vy, vz, status, metrics FROM telemetry WHERE id = ?", id).
		Row().Scan(&nulls.Alt, &nulls.VX, &nulls.VY, &nulls.VZ, &nulls.Status, &nulls.Metrics)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if nulls.Alt != nil || nulls.VX != nil || nulls.VY != nil || nulls.VZ != nil || nulls.Status != nil || nulls.Metrics != nil {
		t.Errorf("absent optionals should be NULL, got %+v", nulls)
	}
}

func TestTelemetryRepository_SamePayloadTwiceCreatesTwoRecords(t *testing.T) {
	db := newTestDB(t)
	repo := NewTelemetryRepository(db)
	ctx := context.Background()
	f := validFlat(t, `{"sat_id":"SAT-1","timestamp":"2024-01-01T00:00:00Z","position":{"lat":1.0,"lon":2.0}}`)

	first, err := repo.Insert(ctx, f)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := repo.Insert(ctx, f)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first == second {
		t.Errorf("ids = %d, %d, want distinct", first, second)
	}

	var count int64
	if err := db.Model(&models.TelemetryRecord{}).Where("sat_id = ?", "SAT-1").Count(&count).Error; err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestTelemetryRepository_FindByID_Missing(t *testing.T) {
	repo := NewTelemetryRepository(newTestDB(t))

	rec, err := repo.FindByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if rec != nil {
		t.Errorf("FindByID(9999) = %+v, want nil", rec)
	}
}

func TestTelemetryRepository_InsertFailsWhenClosed(t *testing.T) {
	db := newTestDB(t)
	repo := NewTelemetryRepository(db)
	closeDB(t, db)

	id, err := repo.Insert(context.Background(), validFlat(t, `{"sat_id":"SAT-1","timestamp":"2024-01-01T00:00:00Z","position":{"lat":1,"lon":2}}`))
	if err == nil {
		t.Fatal("Insert on closed db should return error")
	}
	if id != 0 {
		t.Errorf("id = %d, want 0 on failure", id)
	}
}

func TestTelemetryRepository_Ping(t *testing.T) {
	db := newTestDB(t)
	repo := NewTelemetryRepository(db)

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	closeDB(t, db)
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("Ping on closed db should return error")
	}
}

func TestBootstrap_CreatesIndices(t *testing.T) {
	db := newTestDB(t)
	m := db.Migrator()

	if !m.HasTable(&models.TelemetryRecord{}) {
		t.Fatal("telemetry table missing")
	}
	for _, idx := range []string{"idx_telemetry_sat_id", "idx_telemetry_timestamp"} {
		if !m.HasIndex(&models.TelemetryRecord{}, idx) {
			t.Errorf("index %s missing", idx)
		}
	}
}

func TestDialector(t *testing.T) {
	testCases := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{"postgres url", "postgres://u:p@localhost:5432/db", "postgres", false},
		{"postgresql url", "postgresql://u:p@localhost/db?sslmode=disable", "postgres", false},
		{"key value dsn", "host=localhost user=u dbname=db", "postgres", false},
		{"sqlite path", "sqlite://telemetry.db", "sqlite", false},
		{"sqlite uri", "file::memory:?cache=shared", "sqlite", false},
		{"sqlite without path", "sqlite://", "", true},
		{"mysql", "mysql://u:p@localhost/db", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Dialector(tc.dsn)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedDSN) {
					t.Errorf("Dialector(%q) err = %v, want ErrUnsupportedDSN", tc.dsn, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dialector(%q): %v", tc.dsn, err)
			}
			if d.Name() != tc.want {
				t.Errorf("Dialector(%q).Name() = %q, want %q", tc.dsn, d.Name(), tc.want)
			}
		})
	}
}

func TestConnectWithRetry_UnsupportedDSNFailsFast(t *testing.T) {
	start := time.Now()
	_, err := ConnectWithRetry("mysql://localhost/db", true, 5, time.Second)
	if !errors.Is(err, ErrUnsupportedDSN) {
		t.Fatalf("err = %v, want ErrUnsupportedDSN", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("unsupported DSN should not be retried")
	}
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	_, err := ConnectWithRetry("sqlite://"+t.TempDir()+"/missing/dir/telemetry.db", true, 2, time.Millisecond)
	if err == nil {
		t.Fatal("ConnectWithRetry should fail for an unopenable path")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("err = %v, want attempt count in message", err)
	}
}

func TestConnect_UnopenablePathFails(t *testing.T) {
	db, err := Connect("sqlite://"+t.TempDir()+"/missing/dir/telemetry.db", false)
	if err == nil {
		t.Fatal("Connect should fail for an unopenable path")
	}
	if db != nil {
		t.Errorf("db = %v, want nil on failure", db)
	}
}
