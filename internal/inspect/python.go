package inspect

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/cloudgraph/internal/ident"
	"github.com/phobologic/cloudgraph/internal/model"
)

// PythonStage is appended to table names found in python functions.
const PythonStage = "DEV"

var (
	// ORDERS_TOPIC = 'arn:aws:sns:us-east-1:123456789012:orders'
	pythonTopicRe = regexp.MustCompile(`\b\w+_TOPIC\s*=\s*['"](arn:[^'"]+)['"]`)
	// dynamodb.Table('Orders')
	pythonTableRe = regexp.MustCompile(`dynamodb\.Table\(\s*['"]([^'"]+)['"]`)
)

func init() {
	Runtimes["python"] = &Runtime{
		name:    "python",
		Matches: func(runtime string) bool { return strings.Contains(runtime, "python") },
		File:    pythonFile,
		Patterns: []Pattern{
			{
				Re:         pythonTopicRe,
				Kind:       model.Topic,
				Label:      ident.TopicName,
				Directions: []model.Direction{model.Outbound},
			},
			{
				Re:         pythonTableRe,
				Kind:       model.Table,
				Label:      func(name string) string { return name + PythonStage },
				Directions: readWrite,
			},
		},
		lang:             python.GetLanguage(),
		FindEnclosingDef: pythonFindEnclosingDef,
	}
}

// pythonFile assumes a single-file package: the sole file, or the first .py
// file when dependencies were bundled next to it.
func pythonFile(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	if len(names) == 1 {
		return names[0], true
	}
	for _, name := range names {
		if strings.HasSuffix(name, ".py") && !strings.Contains(name, "/") {
			return name, true
		}
	}
	return names[0], true
}

// pythonFindEnclosingDef returns the qualified name of the function or method
// containing the given node (e.g., "Handler.publish" or "handler").
// Returns "" if the node is at module top-level.
func pythonFindEnclosingDef(node *sitter.Node, source []byte) string {
	current := node.Parent()
	for current != nil {
		if current.Type() == "function_definition" {
			funcName := childText(current, "identifier", source)
			if funcName == "" {
				return ""
			}
			if cls := pythonFindEnclosingClass(current); cls != nil {
				if clsName := childText(cls, "identifier", source); clsName != "" {
					return clsName + "." + funcName
				}
			}
			return funcName
		}
		current = current.Parent()
	}
	return ""
}

func pythonFindEnclosingClass(funcNode *sitter.Node) *sitter.Node {
	parent := funcNode.Parent()
	if parent == nil {
		return nil
	}

	// Direct: func -> block -> class_definition
	if parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == "class_definition" {
		return parent.Parent()
	}

	// Decorated: func -> decorated_definition -> block -> class_definition
	if parent.Type() == "decorated_definition" {
		gp := parent.Parent()
		if gp != nil && gp.Type() == "block" && gp.Parent() != nil && gp.Parent().Type() == "class_definition" {
			return gp.Parent()
		}
	}

	return nil
}

// childText returns the text of the first direct child of the given type.
func childText(node *sitter.Node, childType string, source []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == childType {
			return NodeText(child, source)
		}
	}
	return ""
}
