package poster

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gnemet/PosterForge/internal/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type engineFunc func(ctx context.Context, req Request) error

func (f engineFunc) Update(ctx context.Context, req Request) error { return f(ctx, req) }

type recordingNotifier struct {
	got []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	return nil
}

type memRecorder struct {
	runs []RunRecord
	err  error
}

func (m *memRecorder) RecordRun(_ context.Context, rec RunRecord) error {
	m.runs = append(m.runs, rec)
	return m.err
}

type countingObserver struct {
	ok, failed int
}

func (c *countingObserver) ObserveRun(succeeded bool, _ time.Duration) {
	if succeeded {
		c.ok++
	} else {
		c.failed++
	}
}

func TestRunner_Success(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{}
	recorder := &memRecorder{}
	metrics := &countingObserver{}

	r := &Runner{
		Engine: engineFunc(func(_ context.Context, req Request) error {
			return Update(templateDoc(), req)
		}),
		Notifier: notifier,
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   zaptest.NewLogger(t),
	}

	req := Request{City: "Springfield", Venue: "Civic Hall", Date: "2024-05-01", Folder: dir}
	require.NoError(t, r.Run(context.Background(), req))

	require.Len(t, notifier.got, 1)
	assert.Equal(t, Succeeded, notifier.got[0].Outcome)
	assert.Equal(t, "Poster.psd and Poster.jpg saved successfully!", notifier.got[0].Message)

	require.Len(t, recorder.runs, 1)
	assert.True(t, recorder.runs[0].Succeeded)
	assert.Len(t, recorder.runs[0].LayeredChecksum, 64)
	assert.Len(t, recorder.runs[0].WebChecksum, 64)
	assert.Equal(t, 1, metrics.ok)
}

func TestRunner_MissingFolderReportsErrorOnly(t *testing.T) {
	notifier := &recordingNotifier{}
	metrics := &countingObserver{}
	missing := filepath.Join(t.TempDir(), "missing")

	r := &Runner{
		Engine: engineFunc(func(_ context.Context, req Request) error {
			return Update(templateDoc(), req)
		}),
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   zaptest.NewLogger(t),
	}

	err := r.Run(context.Background(), Request{City: "Springfield", Folder: missing})
	require.ErrorIs(t, err, ErrFolderNotFound)

	require.Len(t, notifier.got, 1)
	assert.Equal(t, Failed, notifier.got[0].Outcome)
	assert.Contains(t, notifier.got[0].Message, "destination folder does not exist")
	assert.Equal(t, 1, metrics.failed)
	assert.Zero(t, metrics.ok)
}

func TestRunner_LocalizedMessages(t *testing.T) {
	var buf bytes.Buffer
	r := &Runner{
		Engine:   engineFunc(func(context.Context, Request) error { return errors.New("boom") }),
		Notifier: WriterNotifier{W: &buf},
		Lang:     "hu",
	}

	assert.Error(t, r.Run(context.Background(), Request{}))
	assert.Equal(t, "Hiba a plakát frissítésekor: boom\n", buf.String())
}

func TestRunner_RecoversEnginePanic(t *testing.T) {
	notifier := &recordingNotifier{}
	recorder := &memRecorder{}
	metrics := &countingObserver{}
	r := &Runner{
		Engine:   engineFunc(func(context.Context, Request) error { panic("boom") }),
		Notifier: notifier,
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   zaptest.NewLogger(t),
	}

	var err error
	require.NotPanics(t, func() { err = r.Run(context.Background(), Request{}) })

	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "render", hostErr.Op)
	assert.EqualError(t, err, "render: panic: boom")

	require.Len(t, notifier.got, 1)
	assert.Equal(t, Failed, notifier.got[0].Outcome)
	assert.Contains(t, notifier.got[0].Message, "panic: boom")
	require.Len(t, recorder.runs, 1)
	assert.False(t, recorder.runs[0].Succeeded)
	assert.Equal(t, 1, metrics.failed)
}

func TestRunner_OversizedTextIsReportedNotFatal(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "poster.yaml")
	require.NoError(t, os.WriteFile(tpl, []byte("width: 100\nheight: 100\nlayers:\n  - name: City\n    text: CITY\n    size: 2000000000\n"), 0644))

	notifier := &recordingNotifier{}
	r := &Runner{Engine: &NativeEngine{TemplatePath: tpl}, Notifier: notifier}
	assert.Error(t, r.Run(context.Background(), Request{City: "Springfield", Folder: dir}))
	require.Len(t, notifier.got, 1)
	assert.Equal(t, Failed, notifier.got[0].Outcome)
	assert.Contains(t, notifier.got[0].Message, "text size 2000000000")

	// A valid template whose City value grows past the canvas bound at save time.
	require.NoError(t, os.WriteFile(tpl, []byte("width: 100\nheight: 100\nlayers:\n  - name: City\n    text: CITY\n    size: 2000\n"), 0644))
	notifier.got = nil
	err := r.Run(context.Background(), Request{City: strings.Repeat("W", 100), Folder: dir})
	assert.ErrorIs(t, err, layers.ErrTooLarge)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, Failed, notifier.got[0].Outcome)
	assert.NoFileExists(t, filepath.Join(dir, LayeredFileName))
}

func TestRunner_RecorderFailureDoesNotChangeOutcome(t *testing.T) {
	notifier := &recordingNotifier{}
	r := &Runner{
		Engine:   engineFunc(func(context.Context, Request) error { return nil }),
		Notifier: notifier,
		Recorder: &memRecorder{err: errors.New("db down")},
	}

	assert.NoError(t, r.Run(context.Background(), Request{Folder: t.TempDir()}))
	require.Len(t, notifier.got, 1)
	assert.Equal(t, Succeeded, notifier.got[0].Outcome)
}

func TestRunner_NoEngine(t *testing.T) {
	notifier := &recordingNotifier{}
	r := &Runner{Notifier: notifier}

	assert.ErrorIs(t, r.Run(context.Background(), Request{}), ErrNoDocument)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, Failed, notifier.got[0].Outcome)
}

func TestMultiNotifier(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	failing := NotifierFunc(func(context.Context, Notification) error { return errors.New("closed") })

	err := MultiNotifier{a, failing, b}.Notify(context.Background(), Notification{Message: "hi"})
	assert.EqualError(t, err, "closed")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestLogNotifier(t *testing.T) {
	n := LogNotifier{Logger: zaptest.NewLogger(t)}
	assert.NoError(t, n.Notify(context.Background(), Notification{Outcome: Failed, Message: "x"}))
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), Notification{Message: "y"}))
}
