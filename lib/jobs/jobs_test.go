package jobs

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/dbsrv/lib/store/lstore"
)

func newTestDB() IJobDB {
	return NewJobDB(lstore.NewLocalStore())
}

// TestCreateGet tests creating and reading jobs
func TestCreateGet(t *testing.T) {
	db := newTestDB()

	job, err := db.Create("classical hazard", "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID != 1 || job.Status != StatusCreated || job.User != "alice" {
		t.Errorf("unexpected job %+v", job)
	}

	got, err := db.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, job) {
		t.Errorf("Get returned %+v, want %+v", got, job)
	}

	second, _ := db.Create("event based", "bob")
	if second.ID != 2 {
		t.Errorf("expected id 2, got %d", second.ID)
	}

	if _, err := db.Get(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestList tests that jobs are listed in id order
func TestList(t *testing.T) {
	db := newTestDB()

	jobs, err := db.List()
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected empty list, got %v, %v", jobs, err)
	}

	// more than 9 jobs to catch lexicographic ordering of ids
	for i := 0; i < 12; i++ {
		if _, err := db.Create("calc", "user"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	jobs, err = db.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 12 {
		t.Fatalf("expected 12 jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		if job.ID != int64(i+1) {
			t.Errorf("position %d has id %d", i, job.ID)
		}
	}
}

// TestSetStatus tests the status transitions
func TestSetStatus(t *testing.T) {
	db := newTestDB()
	job, _ := db.Create("calc", "user")

	updated, err := db.SetStatus(job.ID, StatusExecuting)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if updated.Status != StatusExecuting || updated.UpdatedAt.Before(job.UpdatedAt) {
		t.Errorf("unexpected job %+v", updated)
	}

	// setting the same status is a no-op
	if _, err := db.SetStatus(job.ID, StatusExecuting); err != nil {
		t.Errorf("repeated status must be accepted: %v", err)
	}

	if _, err := db.SetStatus(job.ID, StatusComplete); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	// terminal states can not change
	if _, err := db.SetStatus(job.ID, StatusExecuting); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := db.SetStatus(job.ID, Status("paused")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := db.SetStatus(42, StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestLogs tests appending and reading log records
func TestLogs(t *testing.T) {
	db := newTestDB()
	job, _ := db.Create("calc", "user")

	messages := []string{"starting", "reading inputs", "done"}
	for _, msg := range messages {
		if err := db.AppendLog(job.ID, "INFO", msg); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}
	if err := db.AppendLog(job.ID, "warn", "slow"); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	records, err := db.Logs(job.ID)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	for i, msg := range messages {
		if records[i].Message != msg || records[i].Seq != int64(i+1) || records[i].Level != "info" {
			t.Errorf("record %d: %+v", i, records[i])
		}
	}
	if records[3].Level != "warning" {
		t.Errorf("warn must be normalized to warning, got %s", records[3].Level)
	}

	if err := db.AppendLog(job.ID, "loud", "x"); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
	if err := db.AppendLog(99, "info", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := db.Logs(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestDelete tests that a job and its logs are removed
func TestDelete(t *testing.T) {
	s := lstore.NewLocalStore()
	db := NewJobDB(s)

	job, _ := db.Create("calc", "user")
	_ = db.AppendLog(job.ID, "info", "hello")
	other, _ := db.Create("other", "user")
	_ = db.AppendLog(other.ID, "info", "keep me")

	if err := db.Delete(job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := db.Get(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("job must be gone, got %v", err)
	}
	if err := db.Delete(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete must fail with ErrNotFound, got %v", err)
	}

	leftover := 0
	_ = s.Scan(logPrefix(job.ID), func(string, []byte) bool { leftover++; return true })
	if leftover != 0 {
		t.Errorf("expected no log records left, got %d", leftover)
	}
	if records, _ := db.Logs(other.ID); len(records) != 1 {
		t.Errorf("logs of other jobs must be kept, got %d", len(records))
	}

	// ids are not reused
	next, _ := db.Create("next", "user")
	if next.ID != 3 {
		t.Errorf("expected id 3, got %d", next.ID)
	}
}

// TestConcurrentCreate tests that concurrent creates get distinct ids
func TestConcurrentCreate(t *testing.T) {
	db := newTestDB()

	const n = 32
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := db.Create("calc", "user")
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			ids <- job.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d ids, got %d", n, len(seen))
	}
}

// TestErrorKinds tests the categories reported for job errors
func TestErrorKinds(t *testing.T) {
	type kinded interface{ ErrorKind() string }

	cases := map[error]string{
		ErrNotFound:          "NotFoundError",
		ErrInvalidStatus:     "ArgumentError",
		ErrInvalidTransition: "ArgumentError",
		ErrInvalidLevel:      "ArgumentError",
	}
	for err, want := range cases {
		var k kinded
		if !errors.As(err, &k) || k.ErrorKind() != want {
			t.Errorf("%v: expected kind %s", err, want)
		}
	}

	if !StatusCreated.CanBecome(StatusExecuting) || StatusComplete.CanBecome(StatusFailed) {
		t.Errorf("unexpected transitions")
	}
	if !StatusAborted.Terminal() || StatusCreated.Terminal() {
		t.Errorf("unexpected terminal states")
	}
}
