package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

func newRecord(callerID, jobID string) *job.Record {
	return &job.Record{
		CallerID:     callerID,
		JobID:        jobID,
		Type:         job.TypeFineTune,
		Status:       job.StatusStarting,
		TimeStarted:  time.Now().UTC(),
		ErrorMessage: job.NoError,
	}
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestPutAndGetRecord(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	rec := newRecord("k1", "j1")
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	got, err := s.GetRecord(ctx, "k1", "j1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.JobID != "j1" || got.Status != job.StatusStarting {
		t.Errorf("got %+v", got)
	}

	// Read-your-writes after an upsert of the same key.
	rec.Status = job.StatusRunning
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord upsert: %v", err)
	}
	got, err = s.GetRecord(ctx, "k1", "j1")
	if err != nil {
		t.Fatalf("GetRecord after upsert: %v", err)
	}
	if got.Status != job.StatusRunning {
		t.Errorf("Status = %s, want RUNNING", got.Status)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if _, err := s.GetRecord(ctx, "k1", "missing"); !errors.Is(err, runway.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}

	// A job id under a different caller must look absent, not foreign.
	if err := s.PutRecord(ctx, newRecord("k2", "j1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRecord(ctx, "k1", "j1"); !errors.Is(err, runway.ErrJobNotFound) {
		t.Errorf("cross-caller err = %v, want ErrJobNotFound", err)
	}
}

func TestListRecordsScopedToCaller(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for _, rec := range []*job.Record{
		newRecord("k1", "j1"),
		newRecord("k1", "j2"),
		newRecord("k2", "other"),
	} {
		if err := s.PutRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.ListRecords(ctx, "k1")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.CallerID != "k1" {
			t.Errorf("leaked record for caller %q", rec.CallerID)
		}
	}

	empty, err := s.ListRecords(ctx, "k3")
	if err != nil {
		t.Fatalf("ListRecords empty caller: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}

func TestRecordsAreCopied(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	rec := newRecord("k1", "j1")
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's handle must not change the stored record.
	rec.Status = job.StatusError
	got, _ := s.GetRecord(ctx, "k1", "j1")
	if got.Status != job.StatusStarting {
		t.Errorf("stored record mutated through caller handle: %s", got.Status)
	}

	// Mutating a read result must not change the stored record either.
	got.Status = job.StatusError
	again, _ := s.GetRecord(ctx, "k1", "j1")
	if again.Status != job.StatusStarting {
		t.Errorf("stored record mutated through read result: %s", again.Status)
	}
}

func TestConcurrentPuts(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := newRecord("k1", fmt.Sprintf("j%d", i))
			if err := s.PutRecord(ctx, rec); err != nil {
				t.Errorf("PutRecord: %v", err)
			}
		}(i)
	}
	wg.Wait()

	recs, err := s.ListRecords(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 50 {
		t.Errorf("len = %d, want 50", len(recs))
	}
}

func TestKeyStore(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if ok, _ := s.HasKey(ctx, "k"); ok {
		t.Fatal("unissued key reported present")
	}
	if err := s.PutKey(ctx, "k", "user@example.com"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.HasKey(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("issued key reported absent")
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	rec := &job.Record{CallerID: "k1", JobID: "j1", Type: job.TypeFineTune,
		Status: job.StatusStarting, ErrorMessage: job.NoError}
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.PutRecord(ctx, rec); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("PutRecord err = %v, want ErrStoreClosed", err)
	}
	if _, err := s.GetRecord(ctx, "k1", "j1"); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("GetRecord err = %v, want ErrStoreClosed", err)
	}
	if _, err := s.ListRecords(ctx, "k1"); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("ListRecords err = %v, want ErrStoreClosed", err)
	}
	if err := s.PutKey(ctx, "key", "a@example.com"); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("PutKey err = %v, want ErrStoreClosed", err)
	}
	if _, err := s.HasKey(ctx, "key"); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("HasKey err = %v, want ErrStoreClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, runway.ErrStoreClosed) {
		t.Errorf("Ping err = %v, want ErrStoreClosed", err)
	}

	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
