package history

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/site-repair/pkg/db"
	"github.com/dtnitsch/site-repair/pkg/manifest"
)

// Command returns the history command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect previous runs recorded in the ledger",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recorded runs, newest first",
				Flags:  []cli.Flag{ledgerFlag(), &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum runs to show (0: all)"}},
				Action: ListAction,
			},
			{
				Name:      "show",
				Usage:     "Show the full report of a run (default: latest)",
				ArgsUsage: "[run-id]",
				Flags:     []cli.Flag{ledgerFlag(), &cli.StringFlag{Name: "format", Value: manifest.FormatYAML, Usage: "Output format: yaml|json"}},
				Action:    ShowAction,
			},
		},
	}
}

func ledgerFlag() cli.Flag {
	return &cli.StringFlag{Name: "ledger", Usage: "Run ledger database (default: next to the executable)"}
}

func ListAction(c *cli.Context) error {
	database, err := db.Open(c.String("ledger"))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer database.Close()

	runs, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := c.App.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-26s %-20s %-8s %-8s %-10s %-7s %-8s %s\n",
		"Run ID", "Started", "Scanned", "Modified", "Recovered", "Failed", "Flagged", "Corpus")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, r := range runs {
		corpus := r.CorpusRoot
		if r.DryRun {
			corpus += " (dry run)"
		}
		fmt.Fprintf(w, "%-26s %-20s %-8d %-8d %-10d %-7d %-8d %s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Scanned,
			r.Modified,
			r.AssetsRecovered,
			r.AssetsFailed,
			r.Flagged,
			corpus,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	fmt.Fprintf(w, "\nTip: Use 'site-repair history show <run-id>' to see details\n")
	return nil
}

// ShowAction prints the stored report of one run
func ShowAction(c *cli.Context) error {
	database, err := db.Open(c.String("ledger"))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer database.Close()

	runID, err := runIDOrLatest(c, database)
	if err != nil {
		return err
	}

	report, err := database.GetRun(runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	data, err := manifest.Marshal(report, strings.ToLower(c.String("format")))
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

// runIDOrLatest returns the run ID from args, or the latest run if not provided
func runIDOrLatest(c *cli.Context, database *db.DB) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	runs, err := database.ListRuns(1)
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs found. Run 'site-repair run' first")
	}
	return runs[0].RunID, nil
}
