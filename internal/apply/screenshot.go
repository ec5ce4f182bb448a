package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/types"
)

const (
	productionEnv     = "production"
	screenshotTimeout = 5 * time.Second
)

// ScreenshotsEnabled reports whether failure screenshots may be written.
func (o Options) ScreenshotsEnabled() bool {
	return o.DebugScreenshots && !strings.EqualFold(strings.TrimSpace(o.Environment), productionEnv)
}

// captureScreenshot writes a PNG of page for a failed attempt. Every error is logged
// and swallowed.
func (e *Engine) captureScreenshot(page browser.Page, attemptID string, state types.State, logger *zap.Logger) {
	if !e.opts.ScreenshotsEnabled() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("screenshot panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), screenshotTimeout)
	defer cancel()

	buf, err := page.Screenshot(ctx)
	if err != nil {
		logger.Debug("screenshot failed", zap.Error(err))
		return
	}

	dir := e.opts.ScreenshotDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "auto-apply-screenshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Debug("screenshot dir unavailable", zap.Error(err))
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", attemptID, state))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		logger.Debug("screenshot write failed", zap.Error(err))
		return
	}
	logger.Info("debug screenshot saved", zap.String("path", path))
}
