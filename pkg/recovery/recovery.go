// Package recovery restores assets that are referenced by the corpus but missing
// on disk by fetching them from the original origin.
package recovery

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/caching"
	"github.com/dtnitsch/site-repair/pkg/storage"
)

// Downloader streams a remote resource into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// RemoteMapper maps a logical path back onto the origin's historical layout.
type RemoteMapper interface {
	RemotePath(logical string) string
}

// Options configures a Recoverer.
type Options struct {
	AssetRoot string
	OriginURL string
	Overrides map[string]string // logical path -> explicit remote URL
	Workers   int               // max in-flight fetches
	Timeout   time.Duration     // per fetch
	Offline   bool              // never fetch; missing assets fail
	DryRun    bool              // never write; missing assets fail
}

// Recoverer is safe for concurrent use. Each logical path is resolved at most
// once per Recoverer; concurrent callers for the same path share one fetch.
type Recoverer struct {
	opts   Options
	remote RemoteMapper
	dl     Downloader
	store  *storage.Storage
	sem    *semaphore.Weighted
	group  singleflight.Group
	memo   *caching.Cache
	logger *slog.Logger

	fetches atomic.Int64
}

// New creates a Recoverer. A nil logger discards output.
func New(opts Options, remote RemoteMapper, dl Downloader, logger *slog.Logger) *Recoverer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	overrides := make(map[string]string, len(opts.Overrides))
	for k, v := range opts.Overrides {
		overrides[k] = v
	}
	opts.Overrides = overrides
	opts.OriginURL = strings.TrimRight(opts.OriginURL, "/")

	return &Recoverer{
		opts:   opts,
		remote: remote,
		dl:     dl,
		store:  &storage.Storage{},
		sem:    semaphore.NewWeighted(int64(opts.Workers)),
		memo:   caching.NewCache(),
		logger: logger,
	}
}

// Asset describes the local and remote location of a logical path.
func (r *Recoverer) Asset(logical string) models.Asset {
	a := models.Asset{LogicalPath: logical}

	local := logical
	if unescaped, err := url.PathUnescape(logical); err == nil {
		local = unescaped
	}
	a.LocalPath = filepath.Join(r.opts.AssetRoot, filepath.FromSlash(local))

	if u, ok := r.opts.Overrides[logical]; ok {
		a.RemoteURL = u
	} else if r.opts.OriginURL != "" {
		a.RemoteURL = r.opts.OriginURL + "/" + r.remote.RemotePath(logical)
	}
	return a
}

// Recover makes sure asset exists locally. It returns Present without any
// network access when the file is already there, Recovered after a successful
// fetch and Failed otherwise. A failed fetch never leaves a partial file.
func (r *Recoverer) Recover(ctx context.Context, asset models.Asset) models.Outcome {
	if o, ok := r.memo.Get(asset.LogicalPath); ok {
		return o
	}
	v, _, _ := r.group.Do(asset.LogicalPath, func() (any, error) {
		if o, ok := r.memo.Get(asset.LogicalPath); ok {
			return o, nil
		}
		return r.memo.Set(asset.LogicalPath, r.recover(ctx, asset)), nil
	})
	return v.(models.Outcome)
}

func (r *Recoverer) recover(ctx context.Context, asset models.Asset) models.Outcome {
	if !r.contained(asset.LocalPath) {
		return failed("local path escapes the asset root")
	}
	if r.store.HasFile(asset.LocalPath) {
		o := models.Outcome{Status: models.OutcomePresent}
		if stats, err := r.store.GetFileStats(asset.LocalPath); err == nil {
			o.Bytes = stats.SizeBytes
		}
		return o
	}

	switch {
	case r.opts.Offline:
		return failed("missing locally; fetching disabled")
	case r.opts.DryRun:
		return failed("missing locally; dry run, not fetched")
	case asset.RemoteURL == "":
		return failed("missing locally; no origin configured")
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return failed(repairerr.NewFetch(asset.RemoteURL, err).Error())
	}
	defer r.sem.Release(1)

	fetchCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	r.fetches.Add(1)
	n, err := r.store.SaveStream(asset.LocalPath, func(w io.Writer) (int64, error) {
		return r.dl.Download(fetchCtx, asset.RemoteURL, w)
	})
	if err != nil {
		rErr := repairerr.NewFetch(asset.RemoteURL, err)
		r.logger.Warn("asset recovery failed", "asset", asset.LogicalPath, "url", asset.RemoteURL, "error", err)
		return failed(rErr.Error())
	}

	r.logger.Info("asset recovered", "asset", asset.LogicalPath, "url", asset.RemoteURL, "bytes", n)
	return models.Outcome{Status: models.OutcomeRecovered, Bytes: n}
}

// Results returns every outcome resolved so far, sorted by logical path.
func (r *Recoverer) Results() []models.AssetResult {
	keys := r.memo.Keys()
	out := make([]models.AssetResult, 0, len(keys))
	for _, k := range keys {
		o, _ := r.memo.Get(k)
		out = append(out, models.AssetResult{
			LogicalPath: k,
			RemoteURL:   r.Asset(k).RemoteURL,
			Status:      o.Status,
			Reason:      o.Reason,
			Bytes:       o.Bytes,
		})
	}
	return out
}

// Fetches returns the number of network fetches attempted.
func (r *Recoverer) Fetches() int64 {
	return r.fetches.Load()
}

func (r *Recoverer) contained(local string) bool {
	rel, err := filepath.Rel(r.opts.AssetRoot, local)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func failed(reason string) models.Outcome {
	return models.Outcome{Status: models.OutcomeFailed, Reason: reason}
}
