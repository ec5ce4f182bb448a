// Package resume moves a remote resume into a live file-upload input.
package resume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/fetch"
	"github.com/jonathan/auto-apply/internal/selector"
)

// DefaultFileName is used when the resume URL does not suggest a usable name.
const DefaultFileName = "resume.pdf"

// FieldName is the field label reported for the resume step.
const FieldName = "resume"

// Stage identifies where the artifact handling failed.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageStore  Stage = "store"
	StageUpload Stage = "upload"
)

// Error describes a failed resume step.
type Error struct {
	Stage Stage
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resume %s failed for %s: %v", e.Stage, e.URL, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Handler fetches a resume, stages it in scratch storage, and attaches it to a file input.
type Handler struct {
	Fetcher    fetch.Fetcher
	Resolver   *selector.Resolver
	ScratchDir string
	Logger     *zap.Logger
}

// NewHandler builds a Handler. An empty scratchDir uses the OS temp directory.
func NewHandler(f fetch.Fetcher, r *selector.Resolver, scratchDir string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Fetcher: f, Resolver: r, ScratchDir: scratchDir, Logger: logger}
}

// Attach fetches resumeURL and uploads it through the first candidate in chain.
// It never fails the caller: problems are logged and reported in the returned result.
// The staged file and its directory are removed before Attach returns, on every path.
func (h *Handler) Attach(ctx context.Context, page browser.Page, resumeURL string, chain selector.Chain) selector.FieldResult {
	res := selector.FieldResult{Field: FieldName}
	if resumeURL == "" || chain.Empty() {
		res.Outcome = selector.OutcomeSkipped
		return res
	}

	fail := func(stage Stage, err error) selector.FieldResult {
		res.Err = &Error{Stage: stage, URL: resumeURL, Cause: err}
		res.Outcome = selector.OutcomeError
		if stage == StageUpload {
			res.Outcome = selector.Classify(err)
		}
		h.Logger.Warn("resume not attached",
			zap.String("stage", string(stage)),
			zap.String("url", resumeURL),
			zap.Error(err))
		return res
	}

	if h.Fetcher == nil {
		return fail(StageFetch, fmt.Errorf("no fetcher configured"))
	}
	artifact, err := h.Fetcher.Fetch(ctx, resumeURL)
	if err != nil {
		return fail(StageFetch, err)
	}
	if len(artifact.Body) == 0 {
		return fail(StageFetch, fmt.Errorf("empty artifact"))
	}

	dir, err := os.MkdirTemp(h.ScratchDir, "resume-*")
	if err != nil {
		return fail(StageStore, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			h.Logger.Error("failed to remove staged resume", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()

	path := filepath.Join(dir, safeName(artifact.FileName))
	if err := os.WriteFile(path, artifact.Body, 0o600); err != nil {
		return fail(StageStore, err)
	}

	loc, err := h.Resolver.Resolve(ctx, page, FieldName, chain, selector.Attached,
		func(ctx context.Context, loc browser.Locator) error {
			return page.SetFiles(ctx, loc, []string{path})
		})
	if err != nil {
		return fail(StageUpload, err)
	}

	h.Logger.Debug("resume attached",
		zap.String("locator", loc.String()),
		zap.Int("bytes", len(artifact.Body)))
	res.Outcome = selector.OutcomeFilled
	res.Locator = loc
	return res
}

// safeName reduces a suggested file name to a plain base name, defaulting to DefaultFileName.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return DefaultFileName
	}
	if filepath.Ext(name) == "" {
		name += ".pdf"
	}
	return name
}
