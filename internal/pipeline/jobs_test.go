package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/config"
	"github.com/dgallion1/zenview/internal/reveal"
	"github.com/dgallion1/zenview/internal/source"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob(catalog.Entry{Name: "Guide", Slug: "guide"})
	if job.Status != StatusQueued {
		t.Fatalf("expected status %q, got %q", StatusQueued, job.Status)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusLoading, "loading"},
		{StatusParsing, "parsing"},
		{StatusPreparing, "preparing"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_FinishIsIdempotent(t *testing.T) {
	job := NewJob(catalog.Entry{Slug: "a"})
	res := &Prepared{Entry: job.Entry}
	job.Finish(res)
	job.Finish(nil)

	if !job.Settled() {
		t.Fatal("expected job to be settled")
	}
	if job.Result() != res {
		t.Error("expected the first result to stick")
	}
	if job.Snapshot().Status != StatusReady {
		t.Errorf("expected status %q, got %q", StatusReady, job.Snapshot().Status)
	}
}

func TestJob_FinishNilFails(t *testing.T) {
	job := NewJob(catalog.Entry{Slug: "a"})
	job.AddError("context canceled")
	job.Finish(nil)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Errors) != 1 || snap.Errors[0] != "context canceled" {
		t.Errorf("expected one recorded error, got %v", snap.Errors)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := NewJob(catalog.Entry{Slug: "snap"})
	snap := job.Snapshot()
	if snap.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if snap.Slug != "snap" || snap.ID == "" {
		t.Errorf("expected slug and id in snapshot, got %+v", snap)
	}
}

func TestJobStore_PutGetDelete(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob(catalog.Entry{Slug: "store-1"})
	store.Put(job)

	if got := store.Get("store-1"); got != job {
		t.Fatal("expected to get job back")
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
	store.Delete("store-1")
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob(catalog.Entry{Slug: "old"})
	expired.Finish(&Prepared{})
	running := NewJob(catalog.Entry{Slug: "running"})
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := NewJob(catalog.Entry{Slug: "new"})
	fresh.Finish(&Prepared{})
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected unsettled job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestWorker_ProcessPreparesUnits(t *testing.T) {
	dir := t.TempDir()
	md := "# Title\n\nA short intro paragraph.\n\n## Part\n\nMore words here.\n"
	if err := os.WriteFile(filepath.Join(dir, "guide.md"), []byte(md), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWorker(source.NewLoader(source.WithRoot(dir)), discardLogger(), 150)
	job := NewJob(catalog.Entry{Name: "Guide", Path: "guide.md", Slug: "guide"})

	w.Process(context.Background(), job)

	res := job.Result()
	if res == nil {
		t.Fatalf("expected a result, got errors %v", job.Snapshot().Errors)
	}
	if res.LoadError != "" {
		t.Errorf("expected no load error, got %q", res.LoadError)
	}
	if len(res.Doc.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(res.Doc.Sections))
	}
	units := res.Units["h1-1-content"]
	if len(units) != 4 || units[0].Kind != reveal.UnitWord {
		t.Errorf("expected 4 word units for the intro paragraph, got %+v", units)
	}
	if snap := job.Snapshot(); snap.Attempts != 1 || snap.Hash == "" {
		t.Errorf("expected one attempt and a hash, got %+v", snap)
	}
}

func TestWorker_MissingFileBecomesPlaceholder(t *testing.T) {
	w := NewWorker(source.NewLoader(source.WithRoot(t.TempDir())), discardLogger(), 150)
	job := NewJob(catalog.Entry{Path: "gone.md", Slug: "gone"})

	w.Process(context.Background(), job)

	res := job.Result()
	if res == nil {
		t.Fatal("expected a placeholder result")
	}
	if res.LoadError == "" {
		t.Error("expected load error to be recorded")
	}
	if !strings.Contains(res.Markdown, "Failed to load: gone.md") {
		t.Errorf("expected placeholder markdown, got %q", res.Markdown)
	}
	if job.Snapshot().Attempts != 1 {
		t.Errorf("expected no retry for a missing file, got %d attempts", job.Snapshot().Attempts)
	}
}

func TestWorker_RetriesTransientFetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "# Remote\n\nFetched at last.\n")
	}))
	defer srv.Close()

	w := NewWorker(source.NewLoader(), discardLogger(), 150)
	w.backoff = func(int) time.Duration { return 0 }
	job := NewJob(catalog.Entry{Path: srv.URL + "/remote.md", Slug: "remote"})

	w.Process(context.Background(), job)

	res := job.Result()
	if res == nil || res.LoadError != "" {
		t.Fatalf("expected successful fetch, got %+v", job.Snapshot())
	}
	if got := job.Snapshot().Attempts; got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestWorker_NoBackoffAfterLastAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := NewWorker(source.NewLoader(), discardLogger(), 150)
	var waits []int
	w.backoff = func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}
	job := NewJob(catalog.Entry{Path: srv.URL + "/down.md", Slug: "down"})

	w.Process(context.Background(), job)

	if got := job.Snapshot().Attempts; got != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, got)
	}
	if len(waits) != MaxRetries-1 {
		t.Errorf("expected %d backoff waits, got %v", MaxRetries-1, waits)
	}
	if res := job.Result(); res == nil || res.LoadError == "" {
		t.Error("expected a placeholder result with the load error")
	}
}

func TestWorker_DetectsBilingualWithoutEntryFlag(t *testing.T) {
	dir := t.TempDir()
	md := "# Kinh Kim Cang\n\n## Chương 1: Mở\n\nA\n\n# The Diamond Sutra\n\n## Chapter 1: Open\n\nB\n"
	if err := os.WriteFile(filepath.Join(dir, "sutra.md"), []byte(md), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWorker(source.NewLoader(source.WithRoot(dir)), discardLogger(), 150)
	job := NewJob(catalog.Entry{Path: "sutra.md", Slug: "sutra"})

	w.Process(context.Background(), job)

	res := job.Result()
	if res == nil {
		t.Fatalf("expected a result, got errors %v", job.Snapshot().Errors)
	}
	if res.Doc.Dialect != "bilingual" {
		t.Errorf("expected bilingual dialect, got %q", res.Doc.Dialect)
	}
}

func TestWorker_CancelledContextFails(t *testing.T) {
	w := NewWorker(source.NewLoader(), discardLogger(), 150)
	job := NewJob(catalog.Entry{Path: "a.md", Slug: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.Process(ctx, job)

	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Snapshot().Status)
	}
}

func testConfig() config.Config {
	return config.Config{
		WordThreshold: 150,
		WorkerCount:   2,
		MaxQueueSize:  4,
		DocTTL:        time.Hour,
	}
}

func TestOrchestrator_EnsureCachesPerSlug(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\n\nalpha\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(testConfig(), source.NewLoader(source.WithRoot(dir)), discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	entry := catalog.Entry{Name: "A", Path: "a.md", Slug: "a"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := o.Ensure(ctx, entry)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	second, err := o.Ensure(ctx, entry)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if first != second {
		t.Error("expected the cached document on the second call")
	}
	if o.Cached() != 1 {
		t.Errorf("expected 1 cached document, got %d", o.Cached())
	}

	o.Invalidate("a")
	third, err := o.Ensure(ctx, entry)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if third == first {
		t.Error("expected a fresh load after invalidation")
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(testConfig(), source.NewLoader(), discardLogger())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	if _, err := o.Submit(catalog.Entry{Slug: "late"}); err != ErrStopped {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(cfg, source.NewLoader(), discardLogger())

	if _, err := o.Submit(catalog.Entry{Slug: "one"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := o.Submit(catalog.Entry{Slug: "two"}); err == nil {
		t.Error("expected queue full error")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}

	o.Stop()
	if snap := o.GetJob("one").Snapshot(); snap.Status != StatusFailed {
		t.Errorf("expected queued job to fail on stop, got %q", snap.Status)
	}
}
