package cachebuster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/site-repair/models"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		token   string
		want    string
		changed bool
	}{
		{
			name:    "bump existing token",
			text:    `<link rel="stylesheet" href="css/custom-fixes.css?v=final2">`,
			token:   "final3",
			want:    `<link rel="stylesheet" href="css/custom-fixes.css?v=final3">`,
			changed: true,
		},
		{
			name:  "same token is a no-op",
			text:  `<link rel="stylesheet" href="css/custom-fixes.css?v=final3">`,
			token: "final3",
			want:  `<link rel="stylesheet" href="css/custom-fixes.css?v=final3">`,
		},
		{
			name:    "bare reference gets a token",
			text:    `<link rel="stylesheet" href="../../css/custom-fixes.css">`,
			token:   "20240101",
			want:    `<link rel="stylesheet" href="../../css/custom-fixes.css?v=20240101">`,
			changed: true,
		},
		{
			name:    "double suffix collapses",
			text:    `<link rel="stylesheet" href="/css/custom-fixes.css?v=final2?v=final1">`,
			token:   "final3",
			want:    `<link rel="stylesheet" href="/css/custom-fixes.css?v=final3">`,
			changed: true,
		},
		{
			name:    "other parameters and fragment kept",
			text:    `<link rel="stylesheet" href="css/custom-fixes.css?v=old&media=all#x">`,
			token:   "new",
			want:    `<link rel="stylesheet" href="css/custom-fixes.css?v=new&media=all#x">`,
			changed: true,
		},
		{
			name:    "unrelated query joins after token",
			text:    `<link rel="stylesheet" href="css/custom-fixes.css?ver=6.1">`,
			token:   "t1",
			want:    `<link rel="stylesheet" href="css/custom-fixes.css?v=t1&ver=6.1">`,
			changed: true,
		},
		{
			name:    "deployment base prefix",
			text:    `<link rel="stylesheet" href="/FFC-EX-SRRN.net/css/custom-fixes.css?v=a">`,
			token:   "b",
			want:    `<link rel="stylesheet" href="/FFC-EX-SRRN.net/css/custom-fixes.css?v=b">`,
			changed: true,
		},
		{
			name:  "other stylesheets untouched",
			text:  `<link rel="stylesheet" href="css/style.css?v=final2"><link rel="stylesheet" href="css/not-custom-fixes.css?v=1">`,
			token: "final3",
			want:  `<link rel="stylesheet" href="css/style.css?v=final2"><link rel="stylesheet" href="css/not-custom-fixes.css?v=1">`,
		},
		{
			name:    "preload and stylesheet advance together",
			text:    `<link rel="preload" as="style" href="css/custom-fixes.css?v=old"><link rel="stylesheet" href="css/custom-fixes.css?v=old">`,
			token:   "new",
			want:    `<link rel="preload" as="style" href="css/custom-fixes.css?v=new"><link rel="stylesheet" href="css/custom-fixes.css?v=new">`,
			changed: true,
		},
		{
			name:  "preload of another type untouched",
			text:  `<link rel="preload" as="image" href="css/custom-fixes.css?v=old">`,
			token: "new",
			want:  `<link rel="preload" as="image" href="css/custom-fixes.css?v=old">`,
		},
		{
			name:  "reference absent",
			text:  `<html><head></head></html>`,
			token: "final3",
			want:  `<html><head></head></html>`,
		},
		{
			name:  "empty token",
			text:  `<link rel="stylesheet" href="css/custom-fixes.css?v=final2">`,
			token: "",
			want:  `<link rel="stylesheet" href="css/custom-fixes.css?v=final2">`,
		},
	}

	c := New("css/custom-fixes.css", "?v=")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := c.Advance(tt.text, tt.token)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)

			// converged after one pass
			again, changed := c.Advance(got, tt.token)
			assert.Equal(t, got, again)
			assert.False(t, changed)
		})
	}
}

func TestApplyDocument(t *testing.T) {
	c := New("css/custom-fixes.css", "")
	doc := models.NewDocument("/site", "index.html",
		`<head><link rel="stylesheet" href="css/custom-fixes.css?v=final2"></head>`)

	require.True(t, c.Apply(doc, "final3"))
	assert.Equal(t, `<head><link rel="stylesheet" href="css/custom-fixes.css?v=final3"></head>`, doc.Content)
	assert.True(t, doc.Dirty)

	doc.Dirty = false
	assert.False(t, c.Apply(doc, "final3"))
	assert.False(t, doc.Dirty)
}
