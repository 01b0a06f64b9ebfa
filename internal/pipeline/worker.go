package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/zenview/internal/parser"
	"github.com/dgallion1/zenview/internal/reveal"
	"github.com/dgallion1/zenview/internal/source"
)

// Worker loads, parses and prepares a single document job.
type Worker struct {
	loader        *source.Loader
	log           *slog.Logger
	wordThreshold int
	backoff       func(attempt int) time.Duration
	parser        *parser.Parser
}

func NewWorker(loader *source.Loader, log *slog.Logger, wordThreshold int) *Worker {
	return &Worker{
		loader:        loader,
		log:           log,
		wordThreshold: wordThreshold,
		backoff:       Backoff,
		parser:        parser.New(parser.WithLogger(log)),
	}
}

// Process runs the full load pipeline for a job. A document that cannot be
// loaded still becomes ready, showing the error placeholder.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "slug", job.Entry.Slug)
	start := time.Now()

	// Phase 1: Load
	job.SetStatus(StatusLoading, "loading")
	md, loadErr := w.load(ctx, job)
	if ctx.Err() != nil {
		job.AddError(ctx.Err().Error())
		job.Finish(nil)
		return
	}
	if loadErr != nil {
		log.Warn("document load failed, showing placeholder", "path", job.Entry.Path, "error", loadErr)
		job.AddError(loadErr.Error())
	}

	// Phase 2: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc := w.parser.Parse(md)
	if job.Entry.Bilingual && doc.Dialect != "bilingual" {
		log.Warn("entry is marked bilingual but parsed as plain", "path", job.Entry.Path)
	}

	// Phase 3: Prepare reveal units
	job.SetStatus(StatusPreparing, "preparing")
	opts := reveal.PrepareOptions{WordThreshold: w.wordThreshold, ForceWords: doc.Dialect == "bilingual"}
	units := make(map[string][]reveal.Unit, len(doc.Sections))
	for _, s := range doc.Sections {
		u, err := reveal.Prepare(s.ID, s.Body.Primary, opts)
		if err != nil {
			log.Warn("prepare section failed", "section", s.ID, "error", err)
			job.AddError(fmt.Sprintf("section %s: %s", s.ID, err))
			continue
		}
		units[s.ID] = u
	}

	res := &Prepared{Entry: job.Entry, Markdown: md, Doc: doc, Units: units}
	if loadErr != nil {
		res.LoadError = loadErr.Error()
	}
	job.Finish(res)
	log.Info("document ready",
		"dialect", doc.Dialect,
		"sections", len(doc.Sections),
		"attempts", job.Snapshot().Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// load fetches the markdown, retrying transient failures with backoff.
func (w *Worker) load(ctx context.Context, job *Job) (string, error) {
	var (
		md      string
		lastErr error
	)
	for attempt := range MaxRetries {
		job.IncrAttempts()
		md, lastErr = w.loader.Load(ctx, job.Entry.Path)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		w.log.Warn("retryable load error", "slug", job.Entry.Slug, "attempt", attempt, "error", lastErr)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return source.Placeholder(job.Entry.Path, ctx.Err()), ctx.Err()
		}
	}
	return md, lastErr
}
