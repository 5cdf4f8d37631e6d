package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/site-repair/internal/common"
	"github.com/dtnitsch/site-repair/models"
)

func sampleReport() *models.RunReport {
	return &models.RunReport{
		RunID:           "01HZY8R9K3Q1V4X5T6B7N8M9P0",
		CorpusRoot:      "/srv/site",
		Token:           "final3",
		StartedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt:      time.Date(2024, 1, 2, 3, 4, 9, 0, time.UTC),
		Scanned:         12,
		Modified:        4,
		AssetsRecovered: 1,
		AssetsFailed:    1,
		StageChanges:    map[string]int{"paths": 7, "token": 4},
		Assets: []models.AssetResult{
			{LogicalPath: "assets/uploads/a.png", Status: models.OutcomeRecovered, Bytes: 42},
			{LogicalPath: "assets/uploads/b.png", Status: models.OutcomeFailed, Reason: "404"},
		},
		Flagged: []models.FlaggedDocument{
			{Path: "partial.html", Kind: models.FlagAnchorMissing, Reason: "no </head>"},
		},
	}
}

func TestWriteReportYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "report.yaml")
	digest, err := WriteReport(path, sampleReport(), FormatYAML)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, common.ContentHash(data), digest)

	var got models.RunReport
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, 12, got.Scanned)
	assert.Equal(t, 7, got.StageChanges["paths"])
	require.Len(t, got.Assets, 2)
	assert.Equal(t, models.OutcomeFailed, got.Assets[1].Status)
	assert.Contains(t, string(data), "documents_modified: 4")
}

func TestWriteReportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	_, err := WriteReport(path, sampleReport(), FormatJSON)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "final3", got["token"])
	assert.EqualValues(t, 1, got["assets_failed"])
}

func TestWriteReportUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xml")
	_, err := WriteReport(path, sampleReport(), "xml")
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestDefaultReportPath(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "results/report-2024-01-02.yaml", DefaultReportPath(FormatYAML, now))
}
