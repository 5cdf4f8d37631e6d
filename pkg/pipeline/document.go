package pipeline

import (
	"context"
	"path/filepath"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/scanner"
)

// docOutcome is what one document contributes to the run report.
type docOutcome struct {
	stageEdits  map[string]int
	scanErrors  int
	modified    bool
	writeFailed bool
	flags       []models.FlaggedDocument
}

func (o *docOutcome) flag(rel string, kind models.FlagKind, err error) {
	o.flags = append(o.flags, models.FlaggedDocument{Path: rel, Kind: kind, Reason: err.Error()})
}

// processDocument reads rel once, runs the enabled stages in order and writes
// the document back at most once, only when a stage changed it.
func (d *Driver) processDocument(ctx context.Context, rel string) docOutcome {
	out := docOutcome{stageEdits: make(map[string]int)}
	log := d.logger.With("path", rel)

	data, err := d.store.ReadFile(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		log.Warn("document unreadable", "error", err)
		out.flag(rel, models.FlagReadFailed, err)
		return out
	}
	doc := models.NewDocument(d.root, rel, string(data))

	_, out.scanErrors = scanner.References(doc.Content)
	if out.scanErrors > 0 {
		log.Debug("malformed references skipped", "count", out.scanErrors)
	}

	if d.cfg.StageEnabled(models.StagePaths) {
		out.stageEdits[models.StagePaths], _ = d.res.Rewrite(doc)
	}

	if d.cfg.StageEnabled(models.StageInject) {
		inserted, err := d.inject.Apply(doc)
		if err != nil {
			log.Warn("injection skipped", "error", err)
			out.flag(rel, models.FlagAnchorMissing, err)
		}
		out.stageEdits[models.StageInject] = len(inserted)
	}

	if d.cfg.StageEnabled(models.StageToken) && d.cfg.Token != "" {
		if d.token.Apply(doc, d.cfg.Token) {
			out.stageEdits[models.StageToken] = 1
		}
	}

	if d.cfg.StageEnabled(models.StagePatch) {
		res, err := d.patch.Patch(doc)
		if err != nil {
			log.Warn("structural patch skipped", "error", err)
			out.flag(rel, models.FlagAmbiguous, err)
		}
		out.stageEdits[models.StagePatch] = res.Changes()
	}

	if d.cfg.StageEnabled(models.StageRecover) {
		d.recoverAssets(ctx, doc)
	}

	if !doc.Dirty {
		return out
	}
	out.modified = true
	if d.cfg.DryRun {
		log.Info("document would change", "edits", out.stageEdits)
		return out
	}

	if err := d.store.SaveFile(doc.Path, []byte(doc.Content)); err != nil {
		wErr := repairerr.NewWrite(rel, err)
		log.Error("document write failed", "error", err)
		out.flag(rel, models.FlagWriteFailed, wErr)
		out.writeFailed = true
		out.modified = false
		return out
	}
	log.Debug("document written", "edits", out.stageEdits)
	return out
}

// recoverAssets makes sure every asset the document references exists locally.
// References keep pointing at the local path whatever the outcome.
func (d *Driver) recoverAssets(ctx context.Context, doc *models.Document) {
	seen := make(map[string]bool)
	refs, _ := scanner.References(doc.Content)
	for _, ref := range refs {
		logical, ok := d.res.Logical(ref)
		if !ok || !d.res.IsAsset(logical) || seen[logical] {
			continue
		}
		seen[logical] = true
		if ctx.Err() != nil {
			return
		}
		d.recoverer.Recover(ctx, d.recoverer.Asset(logical))
	}
}
