package inspect

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// annotate fills in Reference.Site with "file:line" and, when the family has a
// grammar, the name of the enclosing function. A parse failure only drops
// the function name.
func annotate(r *Runtime, file string, source []byte, refs []Reference) {
	if len(refs) == 0 {
		return
	}

	var root *sitter.Node
	if r != nil && r.lang != nil && r.FindEnclosingDef != nil {
		tree, err := r.NewParser().ParseCtx(context.Background(), nil, source)
		if err == nil {
			defer tree.Close()
			root = tree.RootNode()
		}
	}

	for i := range refs {
		site := fmt.Sprintf("%s:%d", file, lineAt(source, refs[i].Offset))
		if root != nil {
			if name := r.FindEnclosingDef(nodeAt(root, uint32(refs[i].Offset)), source); name != "" {
				site += " " + name
			}
		}
		refs[i].Site = site
	}
}

// nodeAt returns the deepest node whose byte range covers offset.
func nodeAt(root *sitter.Node, offset uint32) *sitter.Node {
	n := root
	for {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.StartByte() <= offset && offset < child.EndByte() {
				next = child
				break
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
}

func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
