// Package style loads the node styling configuration.
package style

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/phobologic/cloudgraph/internal/model"
)

//go:embed default.hcl
var defaultSource []byte

// DefaultSource returns the embedded default style file.
func DefaultSource() []byte {
	return append([]byte(nil), defaultSource...)
}

// Style is the rendering triple for one node kind.
type Style struct {
	Shape string
	Color string
	Fill  string
}

// Map maps node kinds to styles.
type Map map[model.NodeKind]Style

type fileRoot struct {
	Styles []*styleBlock `hcl:"style,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type styleBlock struct {
	Kind  string `hcl:"kind,label"`
	Shape string `hcl:"shape"`
	Color string `hcl:"color"`
	Style string `hcl:"style,optional"`
}

// Default returns the embedded styles.
func Default() Map {
	m, err := Parse(defaultSource, "default.hcl")
	if err != nil {
		panic(fmt.Sprintf("style: embedded default: %v", err))
	}
	return m
}

// Load reads a style file. Files ending in .json use the JSON syntax;
// everything else is parsed as native HCL. An empty path yields Default.
func Load(path string) (Map, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style file: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes style blocks from src. filename selects the syntax and
// appears in diagnostics.
func Parse(src []byte, filename string) (Map, error) {
	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)
	if filepath.Ext(filename) == ".json" {
		file, diags = parser.ParseJSON(src, filename)
	} else {
		file, diags = parser.ParseHCL(src, filename)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse style file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode style file %s: %w", filename, diags)
	}

	m := make(Map, len(root.Styles))
	for _, b := range root.Styles {
		kind := model.NodeKind(b.Kind)
		if _, dup := m[kind]; dup {
			return nil, fmt.Errorf("style file %s: duplicate style %q", filename, b.Kind)
		}
		m[kind] = Style{Shape: b.Shape, Color: b.Color, Fill: b.Style}
	}
	return m, nil
}

// Lookup returns the style for kind. Plain nodes are unstyled; any other kind
// without an entry is a configuration gap.
func (m Map) Lookup(kind model.NodeKind) (Style, error) {
	if kind == model.Plain {
		return Style{}, nil
	}
	s, ok := m[kind]
	if !ok {
		return Style{}, fmt.Errorf("%w for node kind %q", model.ErrConfigurationGap, kind)
	}
	return s, nil
}

// JSON encodes m in the HCL JSON syntax accepted by Parse.
func (m Map) JSON() ([]byte, error) {
	blocks := make(map[string]map[string]string, len(m))
	for kind, s := range m {
		b := map[string]string{"shape": s.Shape, "color": s.Color}
		if s.Fill != "" {
			b["style"] = s.Fill
		}
		blocks[string(kind)] = b
	}
	return json.MarshalIndent(map[string]any{"style": blocks}, "", "  ")
}
