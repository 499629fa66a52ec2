// Package inspect guesses which topics and tables a function touches by
// scanning its packaged source with per-runtime regular expressions.
//
// The scan is a single regexp pass over one file. References made through
// variables, configuration or string building are missed, and unrelated text
// that happens to match is reported.
package inspect

import (
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/cloudgraph/internal/model"
)

// Family is the inspection strategy for one runtime family.
type Family interface {
	Name() string
	// LocateFile picks the file to scan from the package listing.
	LocateFile(names []string) (string, bool)
	// Extract returns every reference found in source.
	Extract(source []byte) []Reference
}

// Reference is one resource mention found in source text.
type Reference struct {
	Target     string
	Kind       model.NodeKind
	Directions []model.Direction
	// Offset is the byte offset of the match in the scanned file.
	Offset int
	// Site is filled in after extraction ("handler.py:12 handler").
	Site string
}

// Pattern maps regexp matches to references. The first submatch is the
// resource name, which Label turns into a node label.
type Pattern struct {
	Re         *regexp.Regexp
	Kind       model.NodeKind
	Label      func(name string) string
	Directions []model.Direction
}

// readWrite models table access: static text cannot tell reads from writes.
var readWrite = []model.Direction{model.Outbound, model.Inbound}

// Runtime is a Family built from patterns, a file rule and an optional
// tree-sitter grammar used to name the function enclosing each match.
type Runtime struct {
	name string

	// Matches reports whether a runtime tag belongs to this family. A nil
	// Matches marks the fallback family.
	Matches func(runtime string) bool

	// File picks the file to scan.
	File func(names []string) (string, bool)

	Patterns []Pattern

	lang *sitter.Language

	// FindEnclosingDef returns the qualified name of the function containing
	// node, or "" at module level.
	FindEnclosingDef func(node *sitter.Node, source []byte) string
}

// Name implements Family.
func (r *Runtime) Name() string { return r.name }

// LocateFile implements Family.
func (r *Runtime) LocateFile(names []string) (string, bool) {
	if r.File == nil {
		return "", false
	}
	return r.File(names)
}

// Extract implements Family. All matches of every pattern are returned, in
// pattern order and then source order.
func (r *Runtime) Extract(source []byte) []Reference {
	var refs []Reference
	for _, p := range r.Patterns {
		for _, m := range p.Re.FindAllSubmatchIndex(source, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			name := string(source[m[2]:m[3]])
			label := name
			if p.Label != nil {
				label = p.Label(name)
			}
			if label == "" {
				continue
			}
			refs = append(refs, Reference{
				Target:     label,
				Kind:       p.Kind,
				Directions: p.Directions,
				Offset:     m[0],
			})
		}
	}
	return refs
}

// GetLanguage returns the tree-sitter grammar, or nil.
func (r *Runtime) GetLanguage() *sitter.Language {
	return r.lang
}

// NewParser creates a fresh tree-sitter parser for this family.
// Each goroutine must use its own parser (not thread-safe).
func (r *Runtime) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(r.lang)
	return p
}

// Runtimes maps family names to their configuration.
// Populated by init() functions in per-family files.
var Runtimes = map[string]*Runtime{}

// ForRuntime returns the family for a runtime tag such as "python3.12" or
// "nodejs20.x". Tags no family claims go to the fallback family.
func ForRuntime(runtime string) Family {
	runtime = strings.ToLower(runtime)
	var fallback *Runtime
	for _, name := range sortedNames() {
		r := Runtimes[name]
		if r.Matches == nil {
			if fallback == nil {
				fallback = r
			}
			continue
		}
		if r.Matches(runtime) {
			return r
		}
	}
	if fallback == nil {
		return nil
	}
	return fallback
}

func sortedNames() []string {
	names := make([]string, 0, len(Runtimes))
	for name := range Runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
