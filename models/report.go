package models

import "time"

// FlagKind classifies why a document needs human attention.
type FlagKind string

const (
	FlagAnchorMissing FlagKind = "anchor_missing"
	FlagAmbiguous     FlagKind = "ambiguous_structure"
	FlagWriteFailed   FlagKind = "write_failed"
	FlagReadFailed    FlagKind = "read_failed"
)

// FlaggedDocument is a document left (partly) untouched by the pipeline.
type FlaggedDocument struct {
	Path   string   `yaml:"path" json:"path"`
	Kind   FlagKind `yaml:"kind" json:"kind"`
	Reason string   `yaml:"reason" json:"reason"`
}

// AssetResult is the final state of one referenced asset.
type AssetResult struct {
	LogicalPath string        `yaml:"logical_path" json:"logical_path"`
	RemoteURL   string        `yaml:"remote_url,omitempty" json:"remote_url,omitempty"`
	Status      OutcomeStatus `yaml:"status" json:"status"`
	Reason      string        `yaml:"reason,omitempty" json:"reason,omitempty"`
	Bytes       int64         `yaml:"bytes,omitempty" json:"bytes,omitempty"`
}

// RunReport is the exit/reporting contract of one pipeline run.
type RunReport struct {
	RunID          string    `yaml:"run_id" json:"run_id"`
	CorpusRoot     string    `yaml:"corpus_root" json:"corpus_root"`
	DeploymentBase string    `yaml:"deployment_base" json:"deployment_base"`
	Token          string    `yaml:"token,omitempty" json:"token,omitempty"`
	DryRun         bool      `yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
	StartedAt      time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt     time.Time `yaml:"finished_at" json:"finished_at"`

	Scanned         int `yaml:"documents_scanned" json:"documents_scanned"`
	Modified        int `yaml:"documents_modified" json:"documents_modified"`
	WriteFailures   int `yaml:"write_failures" json:"write_failures"`
	ScanErrors      int `yaml:"scan_errors" json:"scan_errors"`
	AssetsPresent   int `yaml:"assets_present" json:"assets_present"`
	AssetsRecovered int `yaml:"assets_recovered" json:"assets_recovered"`
	AssetsFailed    int `yaml:"assets_failed" json:"assets_failed"`

	// StageChanges counts edits per stage across all documents.
	StageChanges map[string]int `yaml:"stage_changes,omitempty" json:"stage_changes,omitempty"`
	// MostEdited lists the documents with the most edits as "path:count".
	MostEdited []string `yaml:"most_edited,omitempty" json:"most_edited,omitempty"`

	Assets  []AssetResult     `yaml:"assets,omitempty" json:"assets,omitempty"`
	Flagged []FlaggedDocument `yaml:"flagged,omitempty" json:"flagged,omitempty"`
}

// Failed returns the failed asset results.
func (r *RunReport) Failed() []AssetResult {
	var out []AssetResult
	for _, a := range r.Assets {
		if a.Status == OutcomeFailed {
			out = append(out, a)
		}
	}
	return out
}

// Clean reports whether the run finished without anything needing attention.
func (r *RunReport) Clean() bool {
	return r.AssetsFailed == 0 && r.WriteFailures == 0 && len(r.Flagged) == 0
}
