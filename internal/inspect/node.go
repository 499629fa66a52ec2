package inspect

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/phobologic/cloudgraph/internal/model"
)

// NodeStage is appended to topic and table names found in node functions.
const NodeStage = "-development"

// NodeEntryFile is the only file scanned in node packages.
const NodeEntryFile = "index.js"

var (
	// Saws.Topic('orders-created')
	nodeTopicRe = regexp.MustCompile(`Saws\.Topic\(\s*['"]([^'"]+)['"]`)
	// TableName: "Orders"
	nodeTableRe = regexp.MustCompile(`TableName:\s*['"]([^'"]+)['"]`)
)

func init() {
	Runtimes["nodejs"] = &Runtime{
		name: "nodejs",
		// Fallback: every runtime that is not python is read as node.
		Matches: nil,
		File:    nodeFile,
		Patterns: []Pattern{
			{
				Re:         nodeTopicRe,
				Kind:       model.Topic,
				Label:      func(name string) string { return name + NodeStage },
				Directions: []model.Direction{model.Outbound},
			},
			{
				Re:         nodeTableRe,
				Kind:       model.Table,
				Label:      func(name string) string { return name + NodeStage },
				Directions: readWrite,
			},
		},
		lang:             javascript.GetLanguage(),
		FindEnclosingDef: jsFindEnclosingDef,
	}
}

func nodeFile(names []string) (string, bool) {
	for _, name := range names {
		if name == NodeEntryFile {
			return name, true
		}
	}
	return "", false
}

// jsFindEnclosingDef names the function containing node: declared functions
// and methods by their name, function expressions by the variable, property or
// assignment target they are bound to ("exports.handler").
func jsFindEnclosingDef(node *sitter.Node, source []byte) string {
	current := node.Parent()
	for current != nil {
		switch current.Type() {
		case "function_declaration", "generator_function_declaration":
			return childText(current, "identifier", source)
		case "method_definition":
			return childText(current, "property_identifier", source)
		case "function", "function_expression", "arrow_function":
			if name := jsBindingName(current, source); name != "" {
				return name
			}
		}
		current = current.Parent()
	}
	return ""
}

func jsBindingName(fn *sitter.Node, source []byte) string {
	parent := fn.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "variable_declarator":
		return childText(parent, "identifier", source)
	case "pair":
		if name := childText(parent, "property_identifier", source); name != "" {
			return name
		}
		return childText(parent, "string", source)
	case "assignment_expression":
		if parent.ChildCount() > 0 {
			return NodeText(parent.Child(0), source)
		}
	}
	return ""
}
