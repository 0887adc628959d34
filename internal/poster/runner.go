package poster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gnemet/PosterForge/internal/i18n"
	"go.uber.org/zap"
)

// RunRecord describes one finished run.
type RunRecord struct {
	Request         Request
	Succeeded       bool
	Error           string
	StartedAt       time.Time
	Duration        time.Duration
	LayeredChecksum string
	WebChecksum     string
}

// Recorder persists run history.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// RunObserver receives the outcome and duration of every run.
type RunObserver interface {
	ObserveRun(succeeded bool, d time.Duration)
}

// Runner is the failure boundary around an Engine: every run ends in exactly
// one notification, success or the error text of whatever step failed.
// Nothing is retried or rolled back.
type Runner struct {
	Engine   Engine
	Notifier Notifier
	Recorder Recorder    // optional
	Metrics  RunObserver // optional
	Logger   *zap.Logger
	Lang     string
}

// Run executes one update and reports it. The engine's error is returned
// unchanged after the notification has been delivered.
func (r *Runner) Run(ctx context.Context, req Request) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	logger.Info("Updating poster",
		zap.String("city", req.City),
		zap.String("venue", req.Venue),
		zap.String("date", req.Date),
		zap.String("folder", req.Folder))

	err := r.update(ctx, req)

	rec := RunRecord{
		Request:   req,
		Succeeded: err == nil,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	n := Notification{Request: req}

	if err != nil {
		logger.Error("Poster update failed", zap.Error(err))
		rec.Error = err.Error()
		n.Outcome = Failed
		n.Message = fmt.Sprintf(i18n.T(r.Lang, "poster.failed"), err.Error())
	} else {
		rec.LayeredChecksum = FileChecksum(req.LayeredPath())
		rec.WebChecksum = FileChecksum(req.WebPath())
		logger.Info("Poster written",
			zap.String("psd", req.LayeredPath()),
			zap.String("jpg", req.WebPath()),
			zap.Duration("took", rec.Duration))
		n.Outcome = Succeeded
		n.Message = i18n.T(r.Lang, "poster.saved")
	}

	if r.Metrics != nil {
		r.Metrics.ObserveRun(rec.Succeeded, rec.Duration)
	}
	if r.Recorder != nil {
		if rerr := r.Recorder.RecordRun(ctx, rec); rerr != nil {
			logger.Warn("Failed to record run", zap.Error(rerr))
		}
	}
	if r.Notifier != nil {
		if nerr := r.Notifier.Notify(ctx, n); nerr != nil {
			logger.Warn("Failed to deliver notification", zap.Error(nerr))
		}
	}

	return err
}

// update runs the engine and converts a panic into a render failure so the
// notification below is still sent.
func (r *Runner) update(ctx context.Context, req Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HostError{Op: "render", Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if r.Engine == nil {
		return &HostError{Op: "open document", Err: ErrNoDocument}
	}
	return r.Engine.Update(ctx, req)
}

// FileChecksum returns the hex SHA-256 of a file, or "" if it cannot be read.
func FileChecksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
