package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"speedgauge/internal/config"
	"speedgauge/internal/database"
	"speedgauge/internal/models"
	"speedgauge/internal/report"
	"speedgauge/internal/runner"
	"speedgauge/internal/view"
	"speedgauge/internal/web"
)

// StaticFS holds the web UI files under static/.
type StaticFS = fs.FS

func signalContext(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
}

func (a *App) setup(ctx *cli.Context, withStore bool) (*config.Config, *runner.Runner, *database.DB, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var db *database.DB
	if withStore {
		db, err = database.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	r, err := runner.Build(cfg, storeOrNil(db), a.logger)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, nil, err
	}
	return cfg, r, db, nil
}

// storeOrNil keeps a nil *DB from becoming a non-nil interface.
func storeOrNil(db *database.DB) models.ResultStore {
	if db == nil {
		return nil
	}
	return db
}

func (a *App) run(ctx *cli.Context) error {
	cfg, r, db, err := a.setup(ctx, true)
	if err != nil {
		return err
	}
	defer db.Close()

	sigCtx, cancel := signalContext(ctx)
	defer cancel()

	if _, err := r.Init(sigCtx); err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}
	defer func() {
		r.Stop()
		r.Wait()
	}()

	s, err := r.RunOnce(sigCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	v := view.Build(s, r.Selection(), r.Locator())
	fmt.Printf("Status:   %s\n", v.Phase)
	fmt.Printf("Download: %s Mbit/s\n", v.Download)
	fmt.Printf("Upload:   %s Mbit/s\n", v.Upload)
	fmt.Printf("Ping:     %s ms\n", v.Ping)
	fmt.Printf("Jitter:   %s ms\n", v.Jitter)
	if v.ClientIP != "" {
		fmt.Printf("Client:   %s %s\n", v.ClientIP, v.Country)
	}
	if v.ShareURL != "" {
		fmt.Printf("Share:    %s\n", v.ShareURL)
	}
	a.logger.Info().Str("dir", cfg.OutputDir).Msg("Gauges written")
	return nil
}

func (a *App) serve(ctx *cli.Context) error {
	cfg, r, db, err := a.setup(ctx, true)
	if err != nil {
		return err
	}
	defer db.Close()

	sigCtx, cancel := signalContext(ctx)
	defer cancel()

	if _, err := r.Init(sigCtx); err != nil {
		// The UI stays up and reports the catalog as unavailable.
		a.logger.Error().Err(err).Msg("Server selection failed")
	}
	if err := r.Start(); err != nil {
		return err
	}

	srv := web.New(r, db, cfg.Gauge, cfg.Port, a.static, a.logger)
	a.logger.Info().Msgf("Web interface available at http://localhost:%d", cfg.Port)
	err = srv.Start(sigCtx)

	a.logger.Info().Msg("Shutting down...")
	r.Stop()
	r.Wait()
	return err
}

func (a *App) servers(ctx *cli.Context) error {
	_, r, _, err := a.setup(ctx, false)
	if err != nil {
		return err
	}

	sigCtx, cancel := signalContext(ctx)
	defer cancel()

	sel, err := r.Init(sigCtx)
	if err != nil {
		return err
	}
	if !sel.Chooser {
		fmt.Println("No server list configured; tests run against the local backend.")
		return nil
	}

	v := view.Build(r.Session(), sel, nil)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tPING (ms)\tSELECTED")
	for _, s := range v.Servers {
		selected := ""
		if s.Selected {
			selected = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Index, s.Name, s.Ping, selected)
	}
	return w.Flush()
}

func (a *App) report(ctx *cli.Context) error {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	dir, err := report.NewGenerator(db, a.logger).GenerateReport(cfg.OutputDir, ctx.Int("days"))
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}
