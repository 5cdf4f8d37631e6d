// Package pipeline drives one repair pass over a corpus: enumerate documents,
// run every enabled stage on each document, write what changed, recover
// missing assets and aggregate a RunReport.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/cachebuster"
	"github.com/dtnitsch/site-repair/pkg/fetcher"
	"github.com/dtnitsch/site-repair/pkg/injector"
	"github.com/dtnitsch/site-repair/pkg/mapreduce"
	"github.com/dtnitsch/site-repair/pkg/patcher"
	"github.com/dtnitsch/site-repair/pkg/recovery"
	"github.com/dtnitsch/site-repair/pkg/resolver"
	"github.com/dtnitsch/site-repair/pkg/storage"
)

// Deps carries collaborators that tests and the CLI may replace.
type Deps struct {
	Downloader recovery.Downloader // nil means an HTTP fetcher built from the config
	Offline    bool                // never fetch missing assets
	Now        func() time.Time
}

// Driver runs the pipeline. A Driver is good for one Run.
type Driver struct {
	cfg    *models.Config
	root   string
	logger *slog.Logger
	now    func() time.Time

	res       *resolver.Resolver
	inject    *injector.Engine
	token     *cachebuster.Controller
	patch     *patcher.Patcher
	recoverer *recovery.Recoverer
	store     *storage.Storage
}

// New validates cfg and wires every stage.
func New(cfg *models.Config, logger *slog.Logger, deps Deps) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, repairerr.NewInvalidConfig(err)
	}
	root, err := cfg.AbsCorpusRoot()
	if err != nil {
		return nil, repairerr.NewInvalidConfig(err)
	}
	assetRoot, err := filepath.Abs(cfg.EffectiveAssetRoot())
	if err != nil {
		return nil, repairerr.NewInvalidConfig(err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Downloader == nil {
		deps.Downloader = fetcher.NewFetcher(cfg.FetchTimeout, cfg.UserAgent)
	}

	res := resolver.New(resolver.OptionsFromConfig(cfg))
	rec := recovery.New(recovery.Options{
		AssetRoot: assetRoot,
		OriginURL: cfg.OriginURL,
		Overrides: cfg.AssetOverrides,
		Workers:   cfg.FetchWorkers,
		Timeout:   cfg.FetchTimeout,
		Offline:   deps.Offline,
		DryRun:    cfg.DryRun,
	}, res, deps.Downloader, logger)

	return &Driver{
		cfg:       cfg,
		root:      root,
		logger:    logger,
		now:       deps.Now,
		res:       res,
		inject:    injector.New(cfg.Directives, res),
		token:     cachebuster.New(cfg.ManagedStylesheet, cfg.TokenDelimiter),
		patch:     patcher.New(cfg.BlockRules, res),
		recoverer: rec,
		store:     &storage.Storage{},
	}, nil
}

// Run processes every document once. The returned error is non-nil only when
// the corpus cannot be enumerated or ctx is cancelled; every per-document and
// per-asset problem is recorded in the report instead.
func (d *Driver) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:          ulid.Make().String(),
		CorpusRoot:     d.root,
		DeploymentBase: d.res.Base(),
		Token:          d.cfg.Token,
		DryRun:         d.cfg.DryRun,
		StartedAt:      d.now(),
	}

	var (
		mu         sync.Mutex
		stageMaps  []map[string]int
		docEdits   = make(map[string]int)
		unreadable []models.FlaggedDocument
	)

	docs, err := Enumerate(d.root, d.cfg.Include, d.cfg.Exclude, func(rel string, err error) {
		d.logger.Warn("skipping unreadable path", "path", rel, "error", err)
		unreadable = append(unreadable, models.FlaggedDocument{Path: rel, Kind: models.FlagReadFailed, Reason: err.Error()})
	})
	if err != nil {
		return nil, err
	}
	report.Flagged = append(report.Flagged, unreadable...)
	d.logger.Info("corpus enumerated", "root", d.root, "documents", len(docs), "dry_run", d.cfg.DryRun)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for _, rel := range docs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			out := d.processDocument(gctx, rel)

			mu.Lock()
			defer mu.Unlock()
			report.Scanned++
			report.ScanErrors += out.scanErrors
			if out.modified {
				report.Modified++
			}
			if out.writeFailed {
				report.WriteFailures++
			}
			report.Flagged = append(report.Flagged, out.flags...)
			stageMaps = append(stageMaps, mapreduce.Map(out.stageEdits))
			total := 0
			for _, n := range out.stageEdits {
				total += n
			}
			if total > 0 {
				docEdits[rel] = total
			}
			return nil
		})
	}
	waitErr := g.Wait()

	report.StageChanges = mapreduce.Reduce(stageMaps)
	report.MostEdited = mapreduce.TopCounts(docEdits, 10)
	report.Assets = d.recoverer.Results()
	for _, a := range report.Assets {
		switch a.Status {
		case models.OutcomePresent:
			report.AssetsPresent++
		case models.OutcomeRecovered:
			report.AssetsRecovered++
		case models.OutcomeFailed:
			report.AssetsFailed++
		}
	}
	sort.SliceStable(report.Flagged, func(i, j int) bool {
		return report.Flagged[i].Path < report.Flagged[j].Path
	})
	report.FinishedAt = d.now()

	d.logger.Info("run finished",
		"run_id", report.RunID,
		"scanned", report.Scanned,
		"modified", report.Modified,
		"assets_recovered", report.AssetsRecovered,
		"assets_failed", report.AssetsFailed,
		"flagged", len(report.Flagged),
		"write_failures", report.WriteFailures,
	)

	if waitErr != nil {
		return report, waitErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
