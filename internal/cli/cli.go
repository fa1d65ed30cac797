// Package cli implements the speedgauge command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"speedgauge/internal/config"
)

const AppName = "speedgauge"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	static StaticFS
}

func New(static StaticFS) *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	flags := append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable verbose (debug) logging",
		},
	}, config.Flags()...)

	app := &App{
		logger: logger,
		static: static,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run speed tests with live gauges and shareable results",
			Flags: flags,
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run a single measurement and write the gauges to the output directory",
		Action: app.run,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "serve",
		Usage:  "Serve the web UI, the results API and the local measurement backend",
		Action: app.serve,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "servers",
		Usage:  "Probe the configured servers and list the reachable ones",
		Action: app.servers,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "report",
		Usage:  "Generate charts and a summary of stored results",
		Action: app.report,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Usage:   "Number of days to cover",
				Value:   30,
			},
		},
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
