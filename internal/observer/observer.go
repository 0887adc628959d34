package observer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gnemet/PosterForge/internal/poster"
	"go.uber.org/zap"
)

const DefaultDebounce = 2 * time.Second

// PosterRunner runs one poster update; *poster.Runner satisfies it.
type PosterRunner interface {
	Run(ctx context.Context, req poster.Request) error
}

// Observer re-renders the poster every time its template file changes.
type Observer struct {
	templatePath string
	request      poster.Request
	runner       PosterRunner
	logger       *zap.Logger

	// Debounce is the quiet period after the last change before a run starts.
	Debounce time.Duration

	activeTasks int
	runs        int
	mu          sync.Mutex
}

func NewObserver(templatePath string, req poster.Request, runner PosterRunner, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		templatePath: templatePath,
		request:      req,
		runner:       runner,
		logger:       logger,
		Debounce:     DefaultDebounce,
	}
}

// Start renders once, then watches the template until ctx is cancelled.
func (o *Observer) Start(ctx context.Context) error {
	if o.templatePath == "" {
		return fmt.Errorf("template path not configured")
	}
	abs, err := filepath.Abs(o.templatePath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	o.logger.Info("Template observer started", zap.String("template", abs))

	o.process(ctx)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				o.logger.Debug("Detected change", zap.String("event", event.Op.String()))
				if timer == nil {
					timer = time.NewTimer(o.Debounce)
				} else {
					timer.Reset(o.Debounce)
				}
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			o.process(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("Watcher error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

func (o *Observer) process(ctx context.Context) {
	o.mu.Lock()
	o.activeTasks++
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.activeTasks--
		o.runs++
		o.mu.Unlock()
	}()

	// The runner has already notified about failures.
	_ = o.runner.Run(ctx, o.request)
}

func (o *Observer) IsProcessing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeTasks > 0
}

// Runs returns how many updates have completed since Start.
func (o *Observer) Runs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs
}
