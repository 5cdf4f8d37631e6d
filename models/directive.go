package models

import (
	"fmt"
	"strings"
)

// PathPlaceholder is replaced with the resolved reference text when a template is rendered.
const PathPlaceholder = "{{path}}"

// AnchorScope selects where an injected reference is placed.
type AnchorScope string

const (
	// AnchorHead inserts before </head> only.
	AnchorHead AnchorScope = "head"
	// AnchorBody inserts before </head>, falling back to </body> when the head is not closed.
	AnchorBody AnchorScope = "body"
	// AnchorBodyEnd always inserts before </body>.
	AnchorBodyEnd AnchorScope = "body-end"
)

// InjectionDirective describes a reference that must exist exactly once per document.
// Presence is tested by Marker containment, not by structural match.
type InjectionDirective struct {
	Name      string      `yaml:"name"`
	Marker    string      `yaml:"marker"`
	AssetPath string      `yaml:"asset_path,omitempty"` // logical path substituted for {{path}}
	Template  string      `yaml:"template"`
	Scope     AnchorScope `yaml:"scope"`
}

// Validate checks that the directive can be applied.
func (d InjectionDirective) Validate() error {
	if d.Marker == "" || d.Template == "" {
		return fmt.Errorf("directive %q needs marker and template", d.Name)
	}
	// rendered text must contain the marker, otherwise every run injects it again
	if !strings.Contains(strings.ReplaceAll(d.Template, PathPlaceholder, d.AssetPath), d.Marker) {
		return fmt.Errorf("directive %q template does not contain its marker %q", d.Name, d.Marker)
	}
	switch d.Scope {
	case AnchorHead, AnchorBody, AnchorBodyEnd, "":
	default:
		return fmt.Errorf("directive %q has unknown scope %q", d.Name, d.Scope)
	}
	return nil
}

// BlockRule describes a repeated UI block that must contain a sub-element.
type BlockRule struct {
	Name             string   `yaml:"name"`
	BlockClass       string   `yaml:"block_class"`
	ChildClass       string   `yaml:"child_class"`
	Placeholder      string   `yaml:"placeholder"`
	PlaceholderAsset string   `yaml:"placeholder_asset,omitempty"`
	StripClasses     []string `yaml:"strip_classes,omitempty"`
}
