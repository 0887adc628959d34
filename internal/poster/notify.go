package poster

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Outcome is the result reported to the user.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
)

func (o Outcome) String() string {
	if o == Succeeded {
		return "success"
	}
	return "error"
}

// Notification is the single message shown at the end of a run.
type Notification struct {
	Outcome Outcome
	Message string
	Request Request
}

// Notifier delivers a notification and returns once it has been shown.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := []zap.Field{
		zap.String("outcome", n.Outcome.String()),
		zap.String("folder", n.Request.Folder),
	}
	if n.Outcome == Failed {
		logger.Error(n.Message, fields...)
	} else {
		logger.Info(n.Message, fields...)
	}
	return nil
}

// WriterNotifier prints the message as one line, e.g. to a terminal.
type WriterNotifier struct {
	W io.Writer
}

func (w WriterNotifier) Notify(_ context.Context, n Notification) error {
	_, err := fmt.Fprintln(w.W, n.Message)
	return err
}

// MultiNotifier delivers to every notifier and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
