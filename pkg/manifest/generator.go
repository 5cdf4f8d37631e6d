package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/site-repair/internal/common"
	"github.com/dtnitsch/site-repair/models"
	"github.com/dtnitsch/site-repair/pkg/storage"
)

// Supported report formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// DefaultReportPath returns the report location used when none is given,
// e.g. "results/report-2024-01-02.yaml".
func DefaultReportPath(format string, now time.Time) string {
	return fmt.Sprintf("results/report-%s.%s", now.Format("2006-01-02"), format)
}

// Marshal renders report in the given format.
func Marshal(report *models.RunReport, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshalling report: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML, "":
		data, err := yaml.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("error marshalling report: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (valid: yaml, json)", format)
	}
}

// WriteReport saves report to path and returns the SHA256 of the written
// bytes. The file is replaced all-or-nothing.
func WriteReport(path string, report *models.RunReport, format string) (string, error) {
	data, err := Marshal(report, format)
	if err != nil {
		return "", err
	}

	s := &storage.Storage{}
	if err := s.SaveFile(path, data); err != nil {
		return "", fmt.Errorf("error saving report: %w", err)
	}
	return common.ContentHash(data), nil
}
