package injector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/resolver"
)

func newTestEngine(base string) *Engine {
	cfg := models.DefaultConfig()
	opts := resolver.OptionsFromConfig(cfg)
	opts.DeploymentBase = base
	return New(cfg.Directives, resolver.New(opts))
}

func TestApplyInsertsBeforeHeadClose(t *testing.T) {
	e := newTestEngine("")
	doc := models.NewDocument("/site", "about-us/index.html",
		"<html><head>\n<title>About</title>\n</head><body></body></html>")

	inserted, err := e.Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom-fixes-css", "custom-menu-js"}, inserted)

	want := "<html><head>\n<title>About</title>\n" +
		"\t<link rel=\"stylesheet\" id=\"custom-fixes-css\" href=\"../css/custom-fixes.css\" type=\"text/css\" media=\"all\">\n" +
		"\t<script src=\"../custom-menu.js\" defer=\"\"></script>\n" +
		"</head><body></body></html>"
	assert.Equal(t, want, doc.Content)
	assert.True(t, doc.Dirty)

	// rerun is a no-op
	doc.Dirty = false
	inserted, err = e.Apply(doc)
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.False(t, doc.Dirty)
	assert.Equal(t, 1, strings.Count(doc.Content, "custom-fixes.css"))
}

func TestApplyMarkerPresentInAnyForm(t *testing.T) {
	e := newTestEngine("")
	content := `<html><head>
<link rel='stylesheet' href='/FFC-EX-SRRN.net/css/custom-fixes.css?v=final2'>
<script src="custom-menu.js"></script>
</head></html>`
	doc := models.NewDocument("/site", "index.html", content)

	inserted, err := e.Apply(doc)
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Equal(t, content, doc.Content)
}

func TestApplyUsesDeploymentBase(t *testing.T) {
	e := newTestEngine("/FFC-EX-SRRN.net/")
	doc := models.NewDocument("/site", "a/b/c/index.html", "<head><script src=\"custom-menu.js\"></script></HEAD>")

	_, err := e.Apply(doc)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, `href="/FFC-EX-SRRN.net/css/custom-fixes.css"`)
	assert.True(t, strings.HasSuffix(doc.Content, "media=\"all\">\n</HEAD>"), "anchor match is case-insensitive")
}

func TestApplyAnchorMissing(t *testing.T) {
	e := newTestEngine("")
	content := "<div>fragment without head</div>"
	doc := models.NewDocument("/site", "partial.html", content)

	inserted, err := e.Apply(doc)
	require.Error(t, err)
	assert.True(t, repairerr.Is(err, repairerr.ErrAnchorMissing))
	assert.Nil(t, inserted)
	assert.Equal(t, content, doc.Content)
	assert.False(t, doc.Dirty)
}

func TestApplyScopes(t *testing.T) {
	res := resolver.New(resolver.OptionsFromConfig(models.DefaultConfig()))

	tests := []struct {
		name    string
		scope   models.AnchorScope
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "body falls back to body close",
			scope:   models.AnchorBody,
			content: "<body><p>x</p></body>",
			want:    "<body><p>x</p>\t<div id=\"donate\"></div>\n</body>",
		},
		{
			name:    "body prefers head close",
			scope:   models.AnchorBody,
			content: "<head></head><body></body>",
			want:    "<head>\t<div id=\"donate\"></div>\n</head><body></body>",
		},
		{
			name:    "body-end uses last body close",
			scope:   models.AnchorBodyEnd,
			content: "<head></head><body><!-- </body> --></body>",
			want:    "<head></head><body><!-- </body> -->\t<div id=\"donate\"></div>\n</body>",
		},
		{
			name:    "head scope without head",
			scope:   models.AnchorHead,
			content: "<body></body>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New([]models.InjectionDirective{{
				Name:     "donate",
				Marker:   `id="donate"`,
				Template: `<div id="donate"></div>`,
				Scope:    tt.scope,
			}}, res)
			doc := models.NewDocument("/site", "index.html", tt.content)

			_, err := e.Apply(doc)
			if tt.wantErr {
				assert.True(t, repairerr.Is(err, repairerr.ErrAnchorMissing))
				assert.Equal(t, tt.content, doc.Content)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Content)
		})
	}
}

func TestApplyNonASCIIBeforeAnchor(t *testing.T) {
	res := resolver.New(resolver.OptionsFromConfig(models.DefaultConfig()))
	link := "\t<link rel=\"stylesheet\" href=\"a.css\">\n"

	tests := []struct {
		name    string
		scope   models.AnchorScope
		content string
		want    string
	}{
		{
			name:    "latin-1 byte",
			scope:   models.AnchorHead,
			content: "<head><title>Caf\xe9</title></head><body></body>",
			want:    "<head><title>Caf\xe9</title>" + link + "</head><body></body>",
		},
		{
			name:    "rune that grows when lowered",
			scope:   models.AnchorHead,
			content: "<head><title>İstanbul</title></HEAD>",
			want:    "<head><title>İstanbul</title>" + link + "</HEAD>",
		},
		{
			name:    "last body close after invalid utf-8",
			scope:   models.AnchorBodyEnd,
			content: "<body><p>\xff\xfe İİ</p></Body>",
			want:    "<body><p>\xff\xfe İİ</p>" + link + "</Body>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New([]models.InjectionDirective{{
				Name:     "a",
				Marker:   "a.css",
				Template: `<link rel="stylesheet" href="a.css">`,
				Scope:    tt.scope,
			}}, res)
			doc := models.NewDocument("/site", "index.html", tt.content)

			_, err := e.Apply(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Content)
		})
	}
}

func TestIndexFold(t *testing.T) {
	assert.Equal(t, 3, indexFold("ab\xe9</HeAd>", "</head>"))
	assert.Equal(t, -1, indexFold("</hea", "</head>"))
	assert.Equal(t, 15, lastIndexFold("</body></body>\xe9</BODY>", "</body>"))
	assert.Equal(t, -1, lastIndexFold("", "</body>"))
}

func TestApplyAllOrNothing(t *testing.T) {
	res := resolver.New(resolver.OptionsFromConfig(models.DefaultConfig()))
	e := New([]models.InjectionDirective{
		{Name: "a", Marker: "a.css", Template: `<link rel="stylesheet" href="a.css">`, Scope: models.AnchorBodyEnd},
		{Name: "b", Marker: "b.css", Template: `<link rel="stylesheet" href="b.css">`, Scope: models.AnchorHead},
	}, res)
	content := "<body></body>"
	doc := models.NewDocument("/site", "index.html", content)

	_, err := e.Apply(doc)
	require.Error(t, err)
	assert.Equal(t, content, doc.Content, "first directive must not be applied when a later one fails")
}
