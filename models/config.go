// Package models defines data structures for configuration, documents and run reports.
package models

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = "site-repair.yaml"

// Stage names, in the order the pipeline applies them to a document.
const (
	StagePaths   = "paths"
	StageInject  = "inject"
	StageToken   = "token"
	StagePatch   = "patch"
	StageRecover = "recover"
)

// AllStages lists every stage in execution order.
var AllStages = []string{StagePaths, StageInject, StageToken, StagePatch, StageRecover}

// LegacyMapping maps a path segment of the historical CMS layout onto the
// logical asset subtree that replaced it.
type LegacyMapping struct {
	Legacy  string `yaml:"legacy"`
	Logical string `yaml:"logical"`
}

// Config holds runtime configuration for a repair run.
// Values come from the YAML file first and are then overridden by CLI flags.
type Config struct {
	CorpusRoot     string   `yaml:"corpus_root"`
	AssetRoot      string   `yaml:"asset_root,omitempty"` // defaults to CorpusRoot
	DeploymentBase string   `yaml:"deployment_base"`      // "" = served from domain root
	LegacyBases    []string `yaml:"legacy_bases,omitempty"`

	OriginURL      string          `yaml:"origin_url"`
	LegacyHosts    []string        `yaml:"legacy_hosts"`
	LegacyMappings []LegacyMapping `yaml:"legacy_mappings"`
	ManagedRoots   []string        `yaml:"managed_roots"`
	SkipPatterns   []string        `yaml:"skip_patterns"`
	AssetsDir      string          `yaml:"assets_dir"` // logical subtree eligible for recovery

	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	ManagedStylesheet string `yaml:"managed_stylesheet"`
	Token             string `yaml:"token,omitempty"`
	TokenDelimiter    string `yaml:"token_delimiter"`

	Directives     []InjectionDirective `yaml:"directives"`
	BlockRules     []BlockRule          `yaml:"block_rules"`
	AssetOverrides map[string]string    `yaml:"asset_overrides,omitempty"`

	UserAgent    string        `yaml:"user_agent"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchWorkers int           `yaml:"fetch_workers"`
	Workers      int           `yaml:"workers"`

	Stages []string `yaml:"stages,omitempty"`
	DryRun bool     `yaml:"dry_run,omitempty"`
}

// DefaultConfig returns the tables of the historical export this tool was built for.
func DefaultConfig() *Config {
	return &Config{
		CorpusRoot:  ".",
		LegacyBases: []string{"/FFC-EX-SRRN.net/"},
		OriginURL:   "https://srrn.net",
		LegacyHosts: []string{"srrn.net", "www.srrn.net"},
		LegacyMappings: []LegacyMapping{
			{Legacy: "wp-content/uploads/", Logical: "assets/uploads/"},
			{Legacy: "wp-content/plugins/", Logical: "assets/plugins/"},
			{Legacy: "wp-content/themes/", Logical: "assets/themes/"},
			{Legacy: "wp-content/cache/", Logical: "assets/cache/"},
		},
		ManagedRoots: []string{"assets/", "css/", "js/", "images/", "wp-includes/", "custom-menu.js"},
		SkipPatterns: []string{"/wp-admin/", "/wp-json/", "xmlrpc.php", "/feed/"},
		AssetsDir:    "assets/",
		Include:      []string{"**/*.html", "**/*.htm"},
		Exclude:      []string{"**/.git/**", "**/.github/**", "**/node_modules/**"},

		ManagedStylesheet: "css/custom-fixes.css",
		TokenDelimiter:    "?v=",

		Directives: []InjectionDirective{
			{
				Name:      "custom-fixes-css",
				Marker:    "custom-fixes.css",
				AssetPath: "css/custom-fixes.css",
				Template:  `<link rel="stylesheet" id="custom-fixes-css" href="{{path}}" type="text/css" media="all">`,
				Scope:     AnchorHead,
			},
			{
				Name:      "custom-menu-js",
				Marker:    "custom-menu.js",
				AssetPath: "custom-menu.js",
				Template:  `<script src="{{path}}" defer=""></script>`,
				Scope:     AnchorHead,
			},
		},
		BlockRules: []BlockRule{
			{
				Name:             "testimonial-portrait",
				BlockClass:       "et_pb_testimonial",
				ChildClass:       "et_pb_testimonial_portrait",
				PlaceholderAsset: "assets/placeholder-user.jpg",
				Placeholder:      `<div class="et_pb_testimonial_portrait"><img src="{{path}}" alt="User" width="90" height="90" /></div>`,
				StripClasses:     []string{"et_pb_testimonial_no_image"},
			},
		},
		AssetOverrides: map[string]string{
			"assets/placeholder-user.jpg": "https://secure.gravatar.com/avatar/ad516503a11cd5ca435acc9bb6523536?s=500",
		},

		UserAgent:    "Mozilla/5.0 (compatible; site-repair/1.0)",
		FetchTimeout: 10 * time.Second,
		FetchWorkers: 4,
		Workers:      4,
	}
}

// LoadConfig reads a YAML config on top of DefaultConfig.
// A missing file is not an error; the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CorpusRoot) == "" {
		return fmt.Errorf("corpus_root is required")
	}
	if c.DeploymentBase != "" && !strings.HasPrefix(c.DeploymentBase, "/") {
		return fmt.Errorf("deployment_base must start with '/': %q", c.DeploymentBase)
	}
	if c.OriginURL != "" {
		u, err := url.Parse(c.OriginURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("origin_url must be an http(s) URL: %q", c.OriginURL)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.FetchWorkers <= 0 {
		return fmt.Errorf("fetch_workers must be positive, got %d", c.FetchWorkers)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	for _, d := range c.Directives {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	for _, r := range c.BlockRules {
		if r.BlockClass == "" || r.ChildClass == "" || r.Placeholder == "" {
			return fmt.Errorf("block rule %q needs block_class, child_class and placeholder", r.Name)
		}
	}
	for _, s := range c.Stages {
		if !isStage(s) {
			return fmt.Errorf("unknown stage %q (valid: %s)", s, strings.Join(AllStages, ", "))
		}
	}
	return nil
}

// EffectiveAssetRoot returns the directory recovered assets are written under.
func (c *Config) EffectiveAssetRoot() string {
	if c.AssetRoot != "" {
		return c.AssetRoot
	}
	return c.CorpusRoot
}

// StageEnabled reports whether the named stage runs. No explicit list means all stages.
func (c *Config) StageEnabled(stage string) bool {
	if len(c.Stages) == 0 {
		return true
	}
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// AbsCorpusRoot resolves the corpus root to an absolute, cleaned path.
func (c *Config) AbsCorpusRoot() (string, error) {
	return filepath.Abs(c.CorpusRoot)
}

func isStage(s string) bool {
	for _, st := range AllStages {
		if st == s {
			return true
		}
	}
	return false
}
