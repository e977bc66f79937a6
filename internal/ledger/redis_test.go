package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"pmtexport/internal/store"
)

func setupTestRedis(t *testing.T, size int) (*RedisLedger, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	l, err := NewRedisLedger("redis://"+s.Addr(), size)
	if err != nil {
		t.Fatalf("failed to create redis ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, s
}

func sampleRun(id string, started time.Time) store.Run {
	return store.Run{
		ID:         id,
		Pipeline:   "coverage",
		Source:     "Batch_1.csv",
		Output:     "batches/output/Data_for_Batch_1.csv",
		Rows:       12,
		Skipped:    []string{"p-9"},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestNewRedisLedger(t *testing.T) {
	l, _ := setupTestRedis(t, 10)
	if err := l.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if _, err := NewRedisLedger("not a url", 10); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestRecordAndGet(t *testing.T) {
	l, _ := setupTestRedis(t, 10)
	ctx := context.Background()
	started := time.Date(2023, 4, 28, 10, 0, 0, 0, time.UTC)

	want := sampleRun("run-1", started)
	if err := l.Record(ctx, want); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := l.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Output != want.Output || got.Rows != 12 || len(got.Skipped) != 1 {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started %v, got %v", started, got.StartedAt)
	}
	if got.Duration() != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", got.Duration())
	}
}

func TestGetMissingRun(t *testing.T) {
	l, _ := setupTestRedis(t, 10)
	_, err := l.Get(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	l, _ := setupTestRedis(t, 10)
	ctx := context.Background()
	base := time.Date(2023, 4, 28, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if err := l.Record(ctx, sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	runs, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, want := range []string{"run-3", "run-2", "run-1"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, want)
		}
	}

	none, err := l.Recent(ctx, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("Recent(0) = %v, %v", none, err)
	}
}

func TestRecordTrimsHistory(t *testing.T) {
	l, s := setupTestRedis(t, 2)
	ctx := context.Background()
	base := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		if err := l.Record(ctx, sampleRun(id, base)); err != nil {
			t.Fatalf("Record %s failed: %v", id, err)
		}
	}

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected history: %+v", runs)
	}
	if s.Exists(defaultPrefix + "run:a") {
		t.Error("evicted run record still stored")
	}
}

func TestRecentSkipsExpiredRecords(t *testing.T) {
	l, s := setupTestRedis(t, 10)
	ctx := context.Background()

	if err := l.Record(ctx, sampleRun("kept", time.Now())); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Record(ctx, sampleRun("lost", time.Now())); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	s.Del(defaultPrefix + "run:lost")

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "kept" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestNewRedisLedgerWithClientDefaultsSize(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	l := NewRedisLedgerWithClient(client, 0)
	defer l.Close()

	if l.size != 100 {
		t.Errorf("expected default size 100, got %d", l.size)
	}
}
