package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gnemet/PosterForge/internal/database"
	"github.com/gnemet/PosterForge/internal/layers"
	"github.com/gnemet/PosterForge/internal/metrics"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testTemplate = `
width: 80
height: 40
layers:
  - name: Details
    layers:
      - name: City
        text: CITY
      - name: Venue
        text: VENUE
  - name: Band
    fill: "#123456"
    width: 80
    height: 10
`

func newTestServer(t *testing.T) (*server, string) {
	t.Helper()
	dir := t.TempDir()
	tpl := filepath.Join(dir, "poster.yaml")
	require.NoError(t, os.WriteFile(tpl, []byte(testTemplate), 0644))

	reg := prometheus.NewRegistry()
	lg := zaptest.NewLogger(t)
	return &server{
		runner: &poster.Runner{
			Engine:  &poster.NativeEngine{TemplatePath: tpl},
			Metrics: metrics.New(reg),
			Logger:  lg,
			Lang:    "en",
		},
		templatePath:  tpl,
		defaultFolder: t.TempDir(),
		logger:        lg,
		gatherer:      reg,
	}, tpl
}

func postPoster(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, updateResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posters", strings.NewReader(body)))
	var resp updateResponse
	if rec.Code != http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestServer_UpdatePoster(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	rec, resp := postPoster(t, h, `{"city":"Springfield","venue":"Civic Hall","date":"2024-05-01"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Poster.psd and Poster.jpg saved successfully!", resp.Message)
	assert.FileExists(t, filepath.Join(s.defaultFolder, "Poster.psd"))
	assert.FileExists(t, filepath.Join(s.defaultFolder, "Poster.jpg"))
}

func TestServer_UpdatePosterMissingFolder(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	body, _ := json.Marshal(poster.Request{City: "Springfield", Folder: "missing"})
	rec, resp := postPoster(t, h, string(body))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "destination folder does not exist")

	metricsRec := httptest.NewRecorder()
	h.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `posterforge_runs_total{outcome="error"} 1`)
}

func TestServer_UpdatePosterSubfolder(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.defaultFolder, "springfield"), 0755))

	rec, resp := postPoster(t, s.routes(), `{"city":"Springfield","folder":"springfield"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
	assert.FileExists(t, filepath.Join(s.defaultFolder, "springfield", "Poster.psd"))
}

func TestServer_UpdatePosterRejectsFoldersOutsideOutput(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()
	outside := t.TempDir()

	for _, folder := range []string{outside, "../" + filepath.Base(outside), "a/../../b"} {
		t.Run(folder, func(t *testing.T) {
			body, _ := json.Marshal(poster.Request{City: "Springfield", Folder: folder})
			rec, _ := postPoster(t, h, string(body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid folder")
		})
	}
	assert.NoFileExists(t, filepath.Join(outside, "Poster.psd"))
}

type panicEngine struct{}

func (panicEngine) Update(context.Context, poster.Request) error { panic("renderer crashed") }

func TestServer_PanickingEngineDoesNotBlockLaterRequests(t *testing.T) {
	s, tpl := newTestServer(t)
	h := s.routes()
	s.runner.Engine = panicEngine{}

	rec, resp := postPoster(t, h, `{"city":"Springfield"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "panic: renderer crashed")

	s.runner.Engine = &poster.NativeEngine{TemplatePath: tpl}
	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posters", strings.NewReader(`{"city":"Springfield"}`)))
		done <- rec.Code
	}()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("request still waiting for the run lock")
	}
}

func TestResolveFolder(t *testing.T) {
	base := filepath.Join("srv", "out")

	got, err := resolveFolder(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = resolveFolder(base, "a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "a", "b"), got)

	for _, bad := range []string{"/etc", "..", "../x", "a/../../x"} {
		_, err := resolveFolder(base, bad)
		assert.Error(t, err, bad)
	}
}

type fakeHistory struct {
	runs  []database.Run
	limit int
}

func (f *fakeHistory) RecentRuns(_ context.Context, limit int) ([]database.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func TestServer_Runs(t *testing.T) {
	s, _ := newTestServer(t)
	hist := &fakeHistory{runs: []database.Run{{City: "Springfield", Succeeded: true}}}
	s.history = hist
	h := s.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []database.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Springfield", runs[0].City)
	assert.Equal(t, 5, hist.limit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, defaultRunsLimit, hist.limit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunsWithoutDatabase(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Langs(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/langs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var langs []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &langs))
	assert.Equal(t, []string{"en", "hu"}, langs)
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	printRuns(&buf, []database.Run{
		{City: "Springfield", Venue: "Civic Hall", Date: "2024-05-01", Folder: "/out", Succeeded: true,
			StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{City: "Shelbyville", Folder: "/gone", Error: "open folder /gone: destination folder does not exist"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STARTED"))
	assert.Contains(t, lines[1], "2024-05-01 12:00:00")
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[2], "error")
	assert.Contains(t, lines[2], "destination folder does not exist")
}

func TestServer_UpdatePosterBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := postPoster(t, s.routes(), `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Fields(t *testing.T) {
	s, tpl := newTestServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp fieldsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, tpl, resp.Template)
	assert.Equal(t, []string{"City", "Venue"}, resp.Fields)
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPrintLayerTree(t *testing.T) {
	doc, err := layers.ParseTemplate([]byte(testTemplate), t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	printLayerTree(&buf, doc, "en")

	assert.Equal(t, `80x40
group "Details"
  text "City"
  text "Venue"
pixel "Band"
City: ok
Venue: ok
Date: missing
`, buf.String())
}

func TestPrintLayerTree_NoFields(t *testing.T) {
	doc := &layers.Document{Width: 1, Height: 1}
	var buf bytes.Buffer
	printLayerTree(&buf, doc, "en")
	assert.Contains(t, buf.String(), "Template has no text layers")
}
