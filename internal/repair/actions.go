package repair

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/site-repair/internal/common"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/db"
	"github.com/dtnitsch/site-repair/pkg/manifest"
	"github.com/dtnitsch/site-repair/pkg/pipeline"
)

// Exit statuses of the run command.
const (
	ExitClean  = 0
	ExitIssues = 1 // failed assets, flagged documents or failed writes
	ExitFatal  = 2 // configuration or corpus errors
)

// Command returns the run command.
func Command() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Rewrite the corpus in place and recover missing assets",
		Flags:  Flags(),
		Action: RunAction,
	}
}

// Flags are the flags understood by RunAction.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: models.DefaultConfigFile, Usage: "YAML config file"},
		&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "Corpus root directory"},
		&cli.StringFlag{Name: "assets", Usage: "Directory recovered assets are written under (default: corpus root)"},
		&cli.StringFlag{Name: "base", Usage: "Deployment base path, e.g. /mirror/ (empty: domain root)"},
		&cli.StringFlag{Name: "token", Usage: "Version token for the managed stylesheet"},
		&cli.StringFlag{Name: "origin", Usage: "Origin server missing assets are fetched from"},
		&cli.IntFlag{Name: "workers", Usage: "Documents processed concurrently"},
		&cli.IntFlag{Name: "fetch-workers", Usage: "Maximum concurrent asset fetches"},
		&cli.DurationFlag{Name: "timeout", Usage: "Per-asset fetch timeout"},
		&cli.StringFlag{Name: "stages", Usage: "Comma-separated stages to run: " + strings.Join(models.AllStages, ",")},
		&cli.BoolFlag{Name: "dry-run", Usage: "Report what would change without writing"},
		&cli.BoolFlag{Name: "no-fetch", Usage: "Never fetch missing assets from the origin"},
		&cli.StringFlag{Name: "report", Usage: "Report path (default: results/report-<date>.<format>)"},
		&cli.StringFlag{Name: "format", Value: manifest.FormatYAML, Usage: "Report format: yaml|json"},
		&cli.StringFlag{Name: "ledger", Usage: "Run ledger database (default: next to the executable)"},
		&cli.BoolFlag{Name: "no-ledger", Usage: "Do not record the run in the ledger"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log per-document detail"},
	}
}

// NewLogger builds the JSON stderr logger shared by all commands.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func RunAction(c *cli.Context) error {
	logger := NewLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitFatal)
	}
	format := strings.ToLower(c.String("format"))
	if format != manifest.FormatYAML && format != manifest.FormatJSON {
		return cli.Exit(fmt.Sprintf("Error: unknown report format %q (valid: yaml, json)", format), ExitFatal)
	}

	driver, err := pipeline.New(cfg, logger, pipeline.Deps{Offline: c.Bool("no-fetch")})
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitFatal)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := driver.Run(ctx)
	if report == nil {
		logger.Error("run aborted", "error", runErr)
		return cli.Exit(fmt.Sprintf("Error: %v", runErr), ExitFatal)
	}

	reportPath := c.String("report")
	if reportPath == "" {
		reportPath = manifest.DefaultReportPath(format, report.StartedAt)
	}
	digest, err := manifest.WriteReport(reportPath, report, format)
	if err != nil {
		logger.Error("failed to write report", "path", reportPath, "error", err)
		reportPath = ""
	} else {
		logger.Info("report written", "path", reportPath, "sha256", digest)
	}

	if !c.Bool("no-ledger") {
		if err := recordRun(c.String("ledger"), report); err != nil {
			logger.Warn("run not recorded in ledger", "error", err)
		}
	}

	printSummary(c.App.Writer, report, reportPath)

	if runErr != nil {
		logger.Error("run interrupted", "error", runErr)
		return cli.Exit(fmt.Sprintf("Error: %v", runErr), ExitFatal)
	}
	if !report.Clean() {
		return cli.Exit("", ExitIssues)
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides on top of it.
func loadConfig(c *cli.Context) (*models.Config, error) {
	path := c.String("config")
	if c.IsSet("config") {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}
	cfg, err := models.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if c.IsSet("root") {
		cfg.CorpusRoot = c.String("root")
	}
	if c.IsSet("assets") {
		cfg.AssetRoot = c.String("assets")
	}
	if c.IsSet("base") {
		cfg.DeploymentBase = c.String("base")
	}
	if c.IsSet("token") {
		cfg.Token = c.String("token")
	}
	if c.IsSet("origin") {
		cfg.OriginURL = c.String("origin")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("fetch-workers") {
		cfg.FetchWorkers = c.Int("fetch-workers")
	}
	if c.IsSet("timeout") {
		cfg.FetchTimeout = c.Duration("timeout")
	}
	if c.IsSet("stages") {
		cfg.Stages = common.SplitList(c.String("stages"))
	}
	if c.Bool("dry-run") {
		cfg.DryRun = true
	}

	cfg.OriginURL, err = common.NormalizeOrigin(cfg.OriginURL)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func recordRun(ledgerPath string, report *models.RunReport) error {
	database, err := db.Open(ledgerPath)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.RecordRun(report)
}

func printSummary(w io.Writer, r *models.RunReport, reportPath string) {
	if w == nil {
		w = os.Stdout
	}
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s%s: %d/%d documents modified\n", r.RunID, mode, r.Modified, r.Scanned)
	fmt.Fprintf(w, "Assets: %d present, %d recovered, %d failed\n", r.AssetsPresent, r.AssetsRecovered, r.AssetsFailed)

	for _, a := range r.Failed() {
		fmt.Fprintf(w, "  - %s: %s\n", a.LogicalPath, a.Reason)
	}
	if len(r.Flagged) > 0 {
		fmt.Fprintf(w, "Flagged: %d document(s)\n", len(r.Flagged))
		for _, f := range r.Flagged {
			fmt.Fprintf(w, "  - %s [%s] %s\n", f.Path, f.Kind, f.Reason)
		}
	}
	if reportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", reportPath)
	}
}
