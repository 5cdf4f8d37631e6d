package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/site-repair/internal/history"
	"github.com/dtnitsch/site-repair/internal/repair"
	"github.com/dtnitsch/site-repair/pkg/help"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "site-repair",
		Usage:   "Repair a static CMS export: rewrite references, inject assets, recover what is missing",
		Version: Version,
		Commands: []*cli.Command{
			repair.Command(),
			history.Command(),
			{
				Name:   "quickstart",
				Usage:  "Print a quick reference of stages and commands",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprint(c.App.Writer, help.ColdstartYAML)
					return err
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(repair.ExitFatal)
	}
}
