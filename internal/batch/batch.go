// Package batch runs many application attempts with bounded concurrency.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/auto-apply/internal/schemas"
	"github.com/jonathan/auto-apply/internal/types"
	batchschema "github.com/jonathan/auto-apply/schemas"
)

// DefaultConcurrency is used when neither the file nor the caller sets one.
const DefaultConcurrency = 2

var fileSchema = schemas.MustCompile("batch.schema.json", batchschema.Batch)

// Job is one posting to apply to. Data, when set, replaces the file-level applicant.
type Job struct {
	JobURL   string                 `json:"job_url"`
	Platform string                 `json:"platform"`
	Data     *types.ApplicationData `json:"data,omitempty"`
}

// File is a parsed batch file.
type File struct {
	Concurrency int                   `json:"concurrency,omitempty"`
	Data        types.ApplicationData `json:"data"`
	Jobs        []Job                 `json:"jobs"`
}

// Parse validates raw against the batch schema and decodes it.
func Parse(raw []byte) (*File, error) {
	if err := fileSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid batch file: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode batch file: %w", err)
	}
	return &f, nil
}

// Load reads and parses the batch file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Parse(raw)
}

// Applier runs a single application attempt. *apply.Engine implements it.
type Applier interface {
	ApplyToJob(ctx context.Context, jobURL, platformID string, data types.ApplicationData) types.ApplicationResult
}

// Item is the outcome of one job, at its input position.
type Item struct {
	Index  int                     `json:"index"`
	JobURL string                  `json:"job_url"`
	Result types.ApplicationResult `json:"result"`
}

// Summary aggregates a batch run.
type Summary struct {
	Total      int    `json:"total"`
	Automated  int    `json:"automated"`
	Redirected int    `json:"redirected"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
	Items      []Item `json:"items"`
}

// Runner fans attempts out to an Applier.
type Runner struct {
	Applier     Applier
	Concurrency int
	Logger      *zap.Logger
}

// NewRunner creates a Runner. concurrency <= 0 defers to the file or DefaultConcurrency.
func NewRunner(applier Applier, concurrency int, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Applier: applier, Concurrency: concurrency, Logger: logger}
}

func (r *Runner) limit(f *File) int {
	switch {
	case r.Concurrency > 0:
		return r.Concurrency
	case f.Concurrency > 0:
		return f.Concurrency
	default:
		return DefaultConcurrency
	}
}

// Run applies to every job in f. Each attempt owns its own browser session; a failing
// job never stops the others. Items are returned in input order.
func (r *Runner) Run(ctx context.Context, f *File) Summary {
	start := time.Now()
	items := make([]Item, len(f.Jobs))
	limit := r.limit(f)

	r.Logger.Info("batch started",
		zap.Int("jobs", len(f.Jobs)),
		zap.Int("concurrency", limit))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for i, job := range f.Jobs {
		data := f.Data
		if job.Data != nil {
			data = *job.Data
		}
		g.Go(func() error {
			res := r.Applier.ApplyToJob(gCtx, job.JobURL, job.Platform, data)
			mu.Lock()
			items[i] = Item{Index: i, JobURL: job.JobURL, Result: res}
			mu.Unlock()
			r.Logger.Debug("batch job finished",
				zap.Int("index", i),
				zap.String("platform", job.Platform),
				zap.String("method", string(res.Method)))
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(items)
	summary.DurationMs = time.Since(start).Milliseconds()
	r.Logger.Info("batch finished",
		zap.Int("automated", summary.Automated),
		zap.Int("redirected", summary.Redirected),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", summary.DurationMs))
	return summary
}

// Summarize counts items by method.
func Summarize(items []Item) Summary {
	s := Summary{Total: len(items), Items: items}
	for _, it := range items {
		switch it.Result.Method {
		case types.MethodAutomated:
			s.Automated++
		case types.MethodRedirect:
			s.Redirected++
		default:
			s.Failed++
		}
	}
	return s
}
