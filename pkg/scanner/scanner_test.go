package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repairerr "github.com/dtnitsch/site-repair/internal/errors"
	"github.com/dtnitsch/site-repair/models"
)

func TestScanClassification(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantRaw  string
		style    models.PrefixStyle
		kind     models.ReferenceKind
		dotDepth int
		host     string
		target   string
		suffix   string
	}{
		{
			name:     "relative dotted image",
			html:     `<img src="../../wp-content/uploads/x.png">`,
			wantRaw:  "../../wp-content/uploads/x.png",
			style:    models.StyleRelative,
			kind:     models.KindImage,
			dotDepth: 2,
			target:   "wp-content/uploads/x.png",
		},
		{
			name:    "root relative stylesheet with token",
			html:    `<link rel="stylesheet" href="/css/custom-fixes.css?v=final2">`,
			wantRaw: "/css/custom-fixes.css?v=final2",
			style:   models.StyleRootRelative,
			kind:    models.KindStylesheet,
			target:  "css/custom-fixes.css",
			suffix:  "?v=final2",
		},
		{
			name:    "absolute script",
			html:    `<script src="https://SRRN.net/wp-includes/js/jquery.js"></script>`,
			wantRaw: "https://SRRN.net/wp-includes/js/jquery.js",
			style:   models.StyleAbsolute,
			kind:    models.KindScript,
			host:    "srrn.net",
			target:  "wp-includes/js/jquery.js",
		},
		{
			name:    "protocol relative",
			html:    `<img src='//cdn.example.com/a.png'>`,
			wantRaw: "//cdn.example.com/a.png",
			style:   models.StyleAbsolute,
			kind:    models.KindImage,
			host:    "cdn.example.com",
			target:  "a.png",
		},
		{
			name:    "unquoted video source",
			html:    `<video><source src=assets/uploads/2021/09/x.mp4 type="video/mp4"></video>`,
			wantRaw: "assets/uploads/2021/09/x.mp4",
			style:   models.StyleRelative,
			kind:    models.KindMedia,
			target:  "assets/uploads/2021/09/x.mp4",
		},
		{
			name:    "preloaded stylesheet",
			html:    `<link rel="preload" as="style" href="css/custom-fixes.css?v=old">`,
			wantRaw: "css/custom-fixes.css?v=old",
			style:   models.StyleRelative,
			kind:    models.KindStylesheet,
			target:  "css/custom-fixes.css",
			suffix:  "?v=old",
		},
		{
			name:    "dot slash is not depth",
			html:    `<img src="./assets/a.png">`,
			wantRaw: "./assets/a.png",
			style:   models.StyleRelative,
			kind:    models.KindImage,
			target:  "assets/a.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, bad := References(tt.html)
			require.Equal(t, 0, bad)
			require.Len(t, refs, 1)
			ref := refs[0]
			assert.Equal(t, tt.wantRaw, ref.Raw)
			assert.Equal(t, tt.wantRaw, tt.html[ref.Start:ref.End], "offsets must cover the URL")
			assert.Equal(t, tt.style, ref.Style)
			assert.Equal(t, tt.kind, ref.Kind)
			assert.Equal(t, tt.dotDepth, ref.DotDepth)
			assert.Equal(t, tt.host, ref.Host)
			assert.Equal(t, tt.target, ref.Target)
			assert.Equal(t, tt.suffix, ref.Suffix)
		})
	}
}

func TestScanSrcset(t *testing.T) {
	doc := `<img src="a.png" srcset="../wp-content/uploads/a-300x200.png 300w,  ../wp-content/uploads/a-1024x683.png 1024w">`
	refs, bad := References(doc)
	require.Equal(t, 0, bad)
	require.Len(t, refs, 3)

	assert.Equal(t, models.KindImage, refs[0].Kind)
	assert.Equal(t, models.KindSrcset, refs[1].Kind)
	assert.Equal(t, "../wp-content/uploads/a-300x200.png", doc[refs[1].Start:refs[1].End])
	assert.Equal(t, "../wp-content/uploads/a-1024x683.png", doc[refs[2].Start:refs[2].End])
	assert.Equal(t, 1, refs[2].DotDepth)
}

func TestScanInlineStyle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{"unquoted", `<div style="background-image:url(/wp-content/uploads/p.jpg)"></div>`, []string{"/wp-content/uploads/p.jpg"}},
		{"single quoted with spaces", `<div style="background: URL( 'assets/a b.png' ) no-repeat"></div>`, []string{"assets/a b.png"}},
		{"double quoted in single quoted attr", `<span style='background:url("../x.png")'></span>`, []string{"../x.png"}},
		{"entity quoted", `<div style="background-image:url(&quot;/wp-content/uploads/q.jpg&quot;)"></div>`, []string{"/wp-content/uploads/q.jpg"}},
		{"parenthesis inside quotes", `<div style="background:url('a(1).png')"></div>`, []string{"a(1).png"}},
		{"several urls", `<div style="background:url(a.png), url(b.png);mask:url(#m)"></div>`, []string{"a.png", "b.png"}},
		{"data uri skipped", `<div style="background:url(data:image/png;base64,AAAA)"></div>`, nil},
		{"alongside src", `<img src="i.png" style="border-image:url(j.png)">`, []string{"i.png", "j.png"}},
		{"style element ignored", `<style>.x{background:url(k.png)}</style><p class="url(x)">`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, bad := References(tt.html)
			require.Equal(t, 0, bad)
			var got []string
			for _, ref := range refs {
				assert.Equal(t, ref.Raw, tt.html[ref.Start:ref.End], "offsets must cover the URL")
				if ref.Attr == "style" {
					assert.Equal(t, models.KindStyle, ref.Kind)
				}
				got = append(got, ref.Raw)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanInlineStyleMalformed(t *testing.T) {
	doc := `<div style="background:url('a.png)"></div><div style="background:url(b.png"></div><img src="ok.png">`
	refs, bad := References(doc)
	assert.Equal(t, 2, bad)
	require.Len(t, refs, 1)
	assert.Equal(t, "ok.png", refs[0].Raw)
}

func TestScanIgnoresUnrelatedMarkup(t *testing.T) {
	doc := `<html><head>
<!-- <link rel="stylesheet" href="css/old.css"> -->
<link rel="icon" href="favicon.ico">
<link rel="preload" as="font" href="fonts/a.woff2">
<link rel="stylesheet" href="css/style.css">
<script>var s = '<img src="fake.png">';</script>
</head><body>
<a href="about-us/">About</a>
<div data-src="lazy.png" title='src="nope.png"'></div>
<img src="data:image/png;base64,AAAA">
<img src="#top">
<a href="mailto:x@example.com">mail</a>
</body></html>`

	refs, bad := References(doc)
	require.Equal(t, 0, bad)
	require.Len(t, refs, 1)
	assert.Equal(t, "css/style.css", refs[0].Raw)
}

func TestScanReportsMalformedAndContinues(t *testing.T) {
	doc := `<img src="https:///nohost.png"><img src="ok.png">`

	var errs []error
	var raws []string
	for ref, err := range Scan(doc) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		raws = append(raws, ref.Raw)
	}
	require.Len(t, errs, 1)
	assert.True(t, repairerr.Is(errs[0], repairerr.ErrScan))
	assert.Equal(t, []string{"ok.png"}, raws)
}

func TestScanStopsWhenConsumerStops(t *testing.T) {
	doc := `<img src="a.png"><img src="b.png"><img src="c.png">`
	n := 0
	for range Scan(doc) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestApplyEdits(t *testing.T) {
	text := "0123456789"
	got := ApplyEdits(text, []Edit{
		{Start: 8, End: 9, Text: "X"},
		{Start: 2, End: 4, Text: "ab"},
		{Start: 5, End: 5, Text: "+"},
	})
	assert.Equal(t, "01ab4+567X9", got)
}

func TestParseAttrs(t *testing.T) {
	tag := `<div class="et_pb_module et_pb_testimonial" data-x=1 hidden id='t1'>`
	attrs, err := ParseAttrs(tag, 100)
	require.NoError(t, err)
	require.Len(t, attrs, 4)

	class, ok := Lookup(attrs, "class")
	require.True(t, ok)
	assert.Equal(t, "et_pb_module et_pb_testimonial", class.Value)
	assert.Equal(t, class.Value, tag[class.ValStart-100:class.ValEnd-100])
	assert.True(t, HasToken(class.Value, "et_pb_testimonial"))
	assert.False(t, HasToken(class.Value, "et_pb_testimonial_portrait"))

	hidden, ok := Lookup(attrs, "hidden")
	require.True(t, ok)
	assert.False(t, hidden.HasValue)

	_, err = ParseAttrs(`<img src="broken.png>`, 0)
	assert.True(t, repairerr.Is(err, repairerr.ErrScan))
}
