package photoshop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnemet/PosterForge/internal/poster"
	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 3 * time.Minute
	DefaultPollInterval = 2 * time.Second

	scriptFileName = "update_poster.jsx"
	statusFileName = "status.txt"
)

var (
	ErrNotConfigured = errors.New("photoshop path not set")
	ErrTimeout       = errors.New("timed out waiting for photoshop")
)

// LaunchFunc starts exe with args and returns without waiting for it to exit.
type LaunchFunc func(ctx context.Context, exe string, args ...string) error

// Engine runs each update as a generated script inside Photoshop.
type Engine struct {
	Executable   string
	TemplatePath string
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger

	// Launch defaults to starting the process with os/exec.
	Launch LaunchFunc
}

// ValidateExecutable checks that path names an existing regular file.
func ValidateExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrNotConfigured
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid photoshop path %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("invalid photoshop path %q: is a directory", path)
	}
	return nil
}

func (e *Engine) Update(ctx context.Context, req poster.Request) error {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ValidateExecutable(e.Executable); err != nil {
		return &poster.HostError{Op: "launch photoshop", Err: err}
	}
	if e.TemplatePath == "" {
		return &poster.HostError{Op: "open template", Err: poster.ErrNoDocument}
	}
	if err := poster.CheckFolder(req.Folder); err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "posterforge-*")
	if err != nil {
		return fmt.Errorf("failed to create script dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, scriptFileName)
	statusPath := filepath.Join(workDir, statusFileName)

	script, err := RenderScript(e.TemplatePath, statusPath, req)
	if err != nil {
		return err
	}
	if err := os.WriteFile(scriptPath, script, 0644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	logger.Debug("Script created", zap.String("path", scriptPath))

	launch := e.Launch
	if launch == nil {
		launch = startProcess
	}
	logger.Info("Launching Photoshop", zap.String("exe", e.Executable), zap.String("template", e.TemplatePath))
	if err := launch(ctx, e.Executable, "-r", scriptPath); err != nil {
		return &poster.HostError{Op: "launch photoshop", Path: e.Executable, Err: err}
	}

	status, err := e.waitForStatus(ctx, statusPath)
	if err != nil {
		return &poster.HostError{Op: "run script", Path: e.TemplatePath, Err: err}
	}
	if msg, failed := strings.CutPrefix(status, "error:"); failed {
		return &poster.HostError{Op: "photoshop", Path: e.TemplatePath, Err: errors.New(strings.TrimSpace(msg))}
	}
	if status != "ok" {
		return &poster.HostError{Op: "photoshop", Path: e.TemplatePath, Err: fmt.Errorf("unexpected status %q", status)}
	}
	return nil
}

// waitForStatus polls for a non-empty status file until the timeout.
func (e *Engine) waitForStatus(ctx context.Context, path string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if data, err := os.ReadFile(path); err == nil {
			if s := strings.TrimSpace(string(data)); s != "" {
				return s, nil
			}
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func startProcess(_ context.Context, exe string, args ...string) error {
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
