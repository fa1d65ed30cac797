package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speedgauge/internal/catalog"
	"speedgauge/internal/config"
	"speedgauge/internal/controller"
	"speedgauge/internal/database"
	"speedgauge/internal/gauge"
	"speedgauge/internal/geo"
	"speedgauge/internal/models"
	"speedgauge/internal/share"
	"speedgauge/internal/view"
)

type fakeTester struct {
	mu        sync.Mutex
	ready     error
	running   bool
	selection catalog.Selection
	dl, ul    *gauge.RasterSurface
}

func (f *fakeTester) Ready() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTester) Session() controller.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return controller.Session{Phase: models.PhaseNotStarted, Running: true}
	}
	return controller.Session{Phase: models.PhaseIdle}
}

func (f *fakeTester) Selection() catalog.Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selection
}

func (f *fakeTester) SelectServer(i int) (models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.selection.Servers) {
		return models.Server{}, fmt.Errorf("server index %d out of range", i)
	}
	s := f.selection.Servers[i]
	f.selection.Selected = &s
	return s, nil
}

func (f *fakeTester) StartTest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeTester) StopTest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return false
	}
	f.running = false
	return true
}

func (f *fakeTester) Surfaces() (*gauge.RasterSurface, *gauge.RasterSurface) { return f.dl, f.ul }
func (f *fakeTester) Locator() geo.Locator                                   { return nil }

var testGauge = config.GaugeConfig{Width: 60, Height: 40, PixelRatio: 2}

func newTestServer(t *testing.T) (*httptest.Server, *fakeTester, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tester := &fakeTester{
		selection: catalog.Selection{
			Chooser: true,
			Servers: []models.Server{
				{Name: "A", URL: "https://a.example/", PingTime: 10},
				{Name: "B", URL: "https://b.example/", PingTime: 20},
			},
		},
		dl: gauge.NewRasterSurface(testGauge.Width, testGauge.Height, testGauge.PixelRatio),
		ul: gauge.NewRasterSurface(testGauge.Width, testGauge.Height, testGauge.PixelRatio),
	}
	static := fstest.MapFS{"static/index.html": {Data: []byte("<html>speedgauge</html>")}}

	srv := New(tester, db, testGauge, 0, static, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tester, db
}

func do(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestStatus(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v view.View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "Start", v.Button)
	assert.True(t, v.ChooserVisible)
	assert.Len(t, v.Servers, 2)
}

func TestStartStopLifecycle(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/stop")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "stop while idle")

	resp, body := do(t, http.MethodPost, ts.URL+"/api/start")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var v view.View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "Stop", v.Button)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/start")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "start while running")

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/select?index=1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "select while running")

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/stop")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartWithExhaustedCatalog(t *testing.T) {
	ts, tester, _ := newTestServer(t)
	tester.ready = fmt.Errorf("probed 2 servers: %w", catalog.ErrNoReachableServer)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/start")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, tester.Session().Running)
}

func TestSelectServer(t *testing.T) {
	ts, tester, _ := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/select")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/select?index=7")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/select?index=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v view.View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.True(t, v.Servers[1].Selected)
	assert.Equal(t, "B", tester.Selection().Selected.Name)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/servers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var servers []view.ServerOption
	require.NoError(t, json.Unmarshal(body, &servers))
	assert.Len(t, servers, 2)
}

func TestStoredResults(t *testing.T) {
	ts, _, db := newTestServer(t)
	require.NoError(t, db.SaveResult(models.Result{
		TestID:       "abc",
		Timestamp:    time.Now(),
		Server:       "A",
		DownloadMbps: 120,
		UploadMbps:   30,
		PingMs:       11,
	}))

	resp, body := do(t, http.MethodGet, ts.URL+"/api/results/abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Result
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 120.0, got.DownloadMbps)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/results/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/results?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recent []models.Result
	require.NoError(t, json.Unmarshal(body, &recent))
	assert.Len(t, recent, 1)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Runs)
}

func TestResultImage(t *testing.T) {
	ts, _, db := newTestServer(t)
	require.NoError(t, db.SaveResult(models.Result{TestID: "abc", Timestamp: time.Now(), DownloadMbps: 50, UploadMbps: 5}))

	resp, body := do(t, http.MethodGet, ts.URL+"/results/?id=abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 2*int(testGauge.Width*testGauge.PixelRatio), img.Bounds().Dx())
	assert.Equal(t, int(testGauge.Height*testGauge.PixelRatio), img.Bounds().Dy())

	resp, _ = do(t, http.MethodGet, ts.URL+"/results/?id=nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/results/")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// a share link with an escaped id resolves to the stored run
	require.NoError(t, db.SaveResult(models.Result{TestID: "run 7+x", Timestamp: time.Now(), DownloadMbps: 1}))
	link, ok := share.New(ts.URL).URL("run 7+x")
	require.True(t, ok)
	resp, _ = do(t, http.MethodGet, link)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLiveGauge(t *testing.T) {
	ts, tester, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/gauge/download.png")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not drawn yet")

	gauge.DrawMeter(tester.dl, 0.5, 0.5, gauge.DefaultPalette.Download, gauge.DefaultPalette)

	resp, body := do(t, http.MethodGet, ts.URL+"/gauge/download.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)

	resp, _ = do(t, http.MethodGet, ts.URL+"/gauge/other.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBackend(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/backend/garbage.php?ckSize=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body, 2*garbageChunk)

	resp, _ = do(t, http.MethodPost, ts.URL+"/backend/empty.php")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/backend/getIP.php", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	ip, _ := io.ReadAll(r.Body)
	assert.Equal(t, "203.0.113.7", string(ip))
}

func TestClientIPFromRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/backend/getIP.php", nil)
	r.RemoteAddr = "198.51.100.4:5555"
	assert.Equal(t, "198.51.100.4", clientIP(r))
}

func TestStaticFiles(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "speedgauge")
}
