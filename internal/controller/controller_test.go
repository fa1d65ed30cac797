package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speedgauge/internal/engine"
	"speedgauge/internal/models"
	"speedgauge/internal/share"
)

type recorder struct {
	mu      sync.Mutex
	forced  int
	results []models.Result
}

func (r *recorder) redraw(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if force {
		r.forced++
	}
}

func (r *recorder) finish(res models.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forced, len(r.results)
}

func newController(t *testing.T) (*Controller, *engine.Script, *recorder) {
	t.Helper()
	eng := engine.NewScript(nil)
	c := New(eng, share.New("https://example.com"), zerolog.Nop())
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	rec := &recorder{}
	c.OnRedraw(rec.redraw)
	c.OnFinish(rec.finish)
	return c, eng, rec
}

func waitPhase(t *testing.T, c *Controller, want models.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Phase() == want }, time.Second, time.Millisecond,
		"phase never became %s (is %s)", want, c.Phase())
}

func TestInitialState(t *testing.T) {
	c, _, _ := newController(t)
	s := c.Session()
	assert.Equal(t, models.PhaseIdle, s.Phase)
	assert.Nil(t, s.Snapshot)
	assert.False(t, s.Running)
	assert.False(t, c.Stop(), "stop while idle is a no-op")
}

func TestStartIsNoOpWhileRunning(t *testing.T) {
	c, eng, _ := newController(t)

	require.True(t, c.Start(context.Background()))
	assert.Equal(t, models.PhaseNotStarted, c.Phase())
	assert.True(t, c.Running())
	assert.Nil(t, c.Session().Snapshot)

	assert.False(t, c.Start(context.Background()))
	_, starts, _ := eng.Calls()
	assert.Equal(t, 1, starts)

	eng.Finish(true)
	c.Wait()
}

func TestTelemetryReplacesSnapshot(t *testing.T) {
	c, eng, _ := newController(t)
	require.True(t, c.Start(context.Background()))

	eng.Emit(models.Snapshot{Phase: models.PhasePing, PingMs: 12, JitterMs: 3, ClientIP: "203.0.113.7"})
	waitPhase(t, c, models.PhasePing)

	eng.Emit(models.Snapshot{Phase: models.PhaseDownload, DownloadMbps: 55, DownloadProgress: 0.4})
	waitPhase(t, c, models.PhaseDownload)

	snap := c.Session().Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, 55.0, snap.DownloadMbps)
	// wholesale replacement: fields absent from the new snapshot are gone
	assert.Equal(t, 0.0, snap.PingMs)
	assert.Empty(t, snap.ClientIP)

	eng.Finish(true)
	c.Wait()
}

func TestUnknownPhasePassesThrough(t *testing.T) {
	c, eng, _ := newController(t)
	require.True(t, c.Start(context.Background()))

	eng.Emit(models.Snapshot{Phase: models.PhaseFromCode(7)})
	waitPhase(t, c, models.PhaseFromCode(7))
	assert.False(t, c.Phase().Known())
	assert.True(t, c.Running())

	eng.Finish(true)
	c.Wait()
}

func TestStopDuringDownloadIsSynchronous(t *testing.T) {
	c, eng, rec := newController(t)
	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseDownload, DownloadMbps: 80})
	waitPhase(t, c, models.PhaseDownload)

	require.True(t, c.Stop())

	s := c.Session()
	assert.Equal(t, models.PhaseAborted, s.Phase)
	assert.False(t, s.Running)
	assert.Nil(t, s.Snapshot)
	_, _, aborts := eng.Calls()
	assert.Equal(t, 1, aborts)
	forced, finished := rec.counts()
	assert.Equal(t, 1, forced)
	assert.Equal(t, 0, finished)

	// late engine events are ignored
	eng.Emit(models.Snapshot{Phase: models.PhaseDownload, DownloadMbps: 90})
	eng.Finish(false)
	c.Wait()

	assert.Equal(t, models.PhaseAborted, c.Phase())
	assert.Nil(t, c.Session().Snapshot)
	forced, finished = rec.counts()
	assert.Equal(t, 1, forced)
	assert.Equal(t, 0, finished)
}

func TestStopConfirmedLateIsIdempotent(t *testing.T) {
	c, eng, rec := newController(t)
	require.True(t, c.Start(context.Background()))
	require.True(t, c.Stop())
	assert.False(t, c.Stop())

	eng.Finish(true)
	c.Wait()

	assert.Equal(t, models.PhaseAborted, c.Phase())
	forced, _ := rec.counts()
	assert.Equal(t, 1, forced)
}

func TestNormalCompletionDerivesShareURL(t *testing.T) {
	c, eng, rec := newController(t)
	require.True(t, c.Start(context.Background()))

	eng.Emit(models.Snapshot{
		Phase:        models.PhaseUpload,
		DownloadMbps: 93.4,
		UploadMbps:   21.7,
		PingMs:       8,
		JitterMs:     1.2,
		Server:       "fra",
		TestID:       "abc123",
	})
	eng.Finish(false)
	c.Wait()

	s := c.Session()
	assert.Equal(t, models.PhaseFinished, s.Phase)
	assert.False(t, s.Running)
	require.NotNil(t, s.Snapshot)
	assert.Equal(t, "https://example.com/results/?id=abc123", s.Snapshot.ShareURL)

	forced, finished := rec.counts()
	assert.Equal(t, 1, forced)
	require.Equal(t, 1, finished)
	res := rec.results[0]
	assert.Equal(t, "abc123", res.TestID)
	assert.Equal(t, 93.4, res.DownloadMbps)
	assert.Equal(t, "https://example.com/results/?id=abc123", res.ShareURL)
	assert.Equal(t, c.now(), res.Timestamp)
}

func TestCompletionWithoutTestID(t *testing.T) {
	c, eng, rec := newController(t)
	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseUpload, UploadMbps: 10})
	eng.Finish(false)
	c.Wait()

	s := c.Session()
	assert.Equal(t, models.PhaseFinished, s.Phase)
	require.NotNil(t, s.Snapshot)
	assert.Empty(t, s.Snapshot.ShareURL)
	_, finished := rec.counts()
	assert.Equal(t, 1, finished)
}

func TestEngineAbortKeepsSnapshot(t *testing.T) {
	c, eng, rec := newController(t)
	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseDownload, DownloadMbps: 40})
	eng.Finish(true)
	c.Wait()

	s := c.Session()
	assert.Equal(t, models.PhaseAborted, s.Phase)
	assert.False(t, s.Running)
	require.NotNil(t, s.Snapshot)
	assert.Equal(t, 40.0, s.Snapshot.DownloadMbps)

	forced, finished := rec.counts()
	assert.Equal(t, 1, forced)
	assert.Equal(t, 0, finished)
}

func TestRestartDiscardsPreviousSnapshot(t *testing.T) {
	c, eng, _ := newController(t)
	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseUpload, UploadMbps: 10, TestID: "first"})
	eng.Finish(false)
	c.Wait()
	require.Equal(t, models.PhaseFinished, c.Phase())

	require.True(t, c.Start(context.Background()))
	s := c.Session()
	assert.Equal(t, models.PhaseNotStarted, s.Phase)
	assert.True(t, s.Running)
	assert.Nil(t, s.Snapshot)

	eng.Finish(true)
	c.Wait()
}

func TestSessionReturnsCopy(t *testing.T) {
	c, eng, _ := newController(t)
	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseDownload, DownloadMbps: 40})
	waitPhase(t, c, models.PhaseDownload)

	s := c.Session()
	s.Snapshot.DownloadMbps = 999
	assert.Equal(t, 40.0, c.Session().Snapshot.DownloadMbps)

	eng.Finish(true)
	c.Wait()
}

func TestEveryHookFiresOncePerCompletion(t *testing.T) {
	c, eng, first := newController(t)
	second := &recorder{}
	c.OnRedraw(second.redraw)
	c.OnFinish(second.finish)

	require.True(t, c.Start(context.Background()))
	eng.Emit(models.Snapshot{Phase: models.PhaseUpload, TestID: "abc123"})
	waitPhase(t, c, models.PhaseUpload)
	eng.Finish(false)
	c.Wait()

	for _, rec := range []*recorder{first, second} {
		forced, results := rec.counts()
		assert.Equal(t, 1, forced)
		assert.Equal(t, 1, results)
	}

	// a hook added after the run does not see earlier completions
	late := &recorder{}
	c.OnFinish(late.finish)
	_, results := late.counts()
	assert.Zero(t, results)
}
