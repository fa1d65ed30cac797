package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"speedgauge/internal/catalog"
	"speedgauge/internal/config"
	"speedgauge/internal/controller"
	"speedgauge/internal/gauge"
	"speedgauge/internal/geo"
	"speedgauge/internal/models"
)

// Tester is the measurement session the server exposes.
type Tester interface {
	Ready() error
	Session() controller.Session
	Selection() catalog.Selection
	SelectServer(i int) (models.Server, error)
	StartTest() bool
	StopTest() bool
	Surfaces() (download, upload *gauge.RasterSurface)
	Locator() geo.Locator
}

// Server handles web requests
type Server struct {
	tester      Tester
	store       models.ResultStore
	gauge       config.GaugeConfig
	port        int
	staticFiles fs.FS
	logger      zerolog.Logger
	http        *http.Server
}

// New creates a new web server. staticFS may be nil.
func New(tester Tester, store models.ResultStore, gaugeCfg config.GaugeConfig, port int, staticFS fs.FS, logger zerolog.Logger) *Server {
	return &Server{
		tester:      tester,
		store:       store,
		gauge:       gaugeCfg,
		port:        port,
		staticFiles: staticFS,
		logger:      logger.With().Str("component", "web").Logger(),
	}
}

// Handler builds the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Test lifecycle
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/servers", s.handleServers)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)

	// Live gauges
	mux.HandleFunc("GET /gauge/{name}", s.handleGauge)

	// Stored results
	mux.HandleFunc("GET /results/", s.handleResultImage)
	mux.HandleFunc("GET /api/results", s.handleRecent)
	mux.HandleFunc("GET /api/results/{id}", s.handleResult)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Measurement backend for the local server
	mux.HandleFunc("/backend/empty.php", handleEmpty)
	mux.HandleFunc("GET /backend/garbage.php", handleGarbage)
	mux.HandleFunc("GET /backend/getIP.php", handleGetIP)

	if s.staticFiles != nil {
		staticFS, err := fs.Sub(s.staticFiles, "static")
		if err != nil {
			s.logger.Warn().Err(err).Msg("No static directory, UI disabled")
		} else {
			mux.Handle("/", http.FileServer(http.FS(staticFS)))
		}
	}

	return s.logRequests(mux)
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Web server shutdown failed")
		}
	}()

	s.logger.Info().Int("port", s.port).Msg("Web server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}
