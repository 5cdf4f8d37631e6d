package recovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/fetcher"
	"github.com/dtnitsch/site-repair/pkg/resolver"
)

type originServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newOrigin(t *testing.T, files map[string]string) *originServer {
	t.Helper()
	o := &originServer{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte(body))
	}))
	t.Cleanup(o.Close)
	return o
}

func newRecoverer(root, origin string, mutate func(*Options)) *Recoverer {
	opts := Options{
		AssetRoot: root,
		OriginURL: origin,
		Workers:   2,
		Timeout:   2 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	res := resolver.New(resolver.OptionsFromConfig(models.DefaultConfig()))
	return New(opts, res, fetcher.NewFetcher(5*time.Second, ""), nil)
}

func TestRecoverThenPresent(t *testing.T) {
	origin := newOrigin(t, map[string]string{
		"/wp-content/uploads/2021/09/x.mp4": "mp4-bytes",
	})
	root := t.TempDir()

	r := newRecoverer(root, origin.URL, nil)
	asset := r.Asset("assets/uploads/2021/09/x.mp4")
	assert.Equal(t, origin.URL+"/wp-content/uploads/2021/09/x.mp4", asset.RemoteURL)
	assert.Equal(t, filepath.Join(root, "assets", "uploads", "2021", "09", "x.mp4"), asset.LocalPath)

	o := r.Recover(context.Background(), asset)
	require.Equal(t, models.OutcomeRecovered, o.Status, o.Reason)
	assert.Equal(t, int64(len("mp4-bytes")), o.Bytes)

	data, err := os.ReadFile(asset.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(data))

	// a fresh run sees the file and never touches the network
	before := origin.hits.Load()
	again := newRecoverer(root, origin.URL, nil)
	o = again.Recover(context.Background(), again.Asset("assets/uploads/2021/09/x.mp4"))
	assert.Equal(t, models.OutcomePresent, o.Status)
	assert.Equal(t, before, origin.hits.Load())
	assert.Zero(t, again.Fetches())
}

func TestRecoverFailureLeavesNoFile(t *testing.T) {
	origin := newOrigin(t, nil)
	root := t.TempDir()

	r := newRecoverer(root, origin.URL, nil)
	asset := r.Asset("assets/uploads/gone.png")
	o := r.Recover(context.Background(), asset)

	assert.Equal(t, models.OutcomeFailed, o.Status)
	assert.Contains(t, o.Reason, "404")
	_, err := os.Stat(asset.LocalPath)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Dir(asset.LocalPath))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files may remain")
}

func TestRecoverDeduplicatesConcurrentCallers(t *testing.T) {
	origin := newOrigin(t, map[string]string{"/wp-content/uploads/a.png": "png"})
	r := newRecoverer(t.TempDir(), origin.URL, nil)
	asset := r.Asset("assets/uploads/a.png")

	var wg sync.WaitGroup
	outcomes := make([]models.Outcome, 20)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = r.Recover(context.Background(), asset)
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		assert.Equal(t, models.OutcomeRecovered, o.Status)
	}
	assert.Equal(t, int64(1), origin.hits.Load())
	assert.Equal(t, int64(1), r.Fetches())

	results := r.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "assets/uploads/a.png", results[0].LogicalPath)
}

func TestRecoverWithoutNetwork(t *testing.T) {
	origin := newOrigin(t, map[string]string{"/wp-content/uploads/a.png": "png"})

	tests := []struct {
		name   string
		mutate func(*Options)
		reason string
	}{
		{"offline", func(o *Options) { o.Offline = true }, "fetching disabled"},
		{"dry run", func(o *Options) { o.DryRun = true }, "dry run"},
		{"no origin", func(o *Options) { o.OriginURL = "" }, "no origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			r := newRecoverer(root, origin.URL, tt.mutate)
			asset := r.Asset("assets/uploads/a.png")

			o := r.Recover(context.Background(), asset)
			assert.Equal(t, models.OutcomeFailed, o.Status)
			assert.Contains(t, o.Reason, tt.reason)
			assert.Zero(t, r.Fetches())
			assert.NoFileExists(t, asset.LocalPath)
		})
	}
	assert.Zero(t, origin.hits.Load())
}

func TestRecoverOverrideAndContainment(t *testing.T) {
	origin := newOrigin(t, map[string]string{"/avatar/abc": "jpeg"})
	root := t.TempDir()

	r := newRecoverer(root, "https://srrn.invalid", func(o *Options) {
		o.Overrides = map[string]string{"assets/placeholder-user.jpg": origin.URL + "/avatar/abc"}
	})

	o := r.Recover(context.Background(), r.Asset("assets/placeholder-user.jpg"))
	require.Equal(t, models.OutcomeRecovered, o.Status, o.Reason)
	assert.FileExists(t, filepath.Join(root, "assets", "placeholder-user.jpg"))

	o = r.Recover(context.Background(), r.Asset("assets/../../etc/passwd"))
	assert.Equal(t, models.OutcomeFailed, o.Status)
}
