package main

import (
	"embed"
	"log"
	"os"

	"speedgauge/internal/cli"
)

//go:embed static/*
var staticFiles embed.FS

// Version information, set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	c := cli.New(staticFiles)
	c.SetVersion(version, commit, date)
	if err := c.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
