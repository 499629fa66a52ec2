// Package render encodes a closed graph snapshot as text.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/cloudgraph/internal/graph"
	"github.com/phobologic/cloudgraph/internal/model"
	"github.com/phobologic/cloudgraph/internal/style"
)

// GraphName names the emitted digraph.
const GraphName = "lambda"

// Format selects the output encoding.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatTOON Format = "toon"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatTOON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want dot or toon)", s)
}

var (
	bareID       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	recordEscape = strings.NewReplacer(
		`\`, `\\`,
		`|`, `\|`,
		`<`, `\<`,
		`>`, `\>`,
		`{`, `\{`,
		`}`, `\}`,
	)
	idEscape = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	// Record labels arrive with their backslash escapes already in place.
	labelEscape = strings.NewReplacer(`"`, `\"`, "\n", `\n`)
)

// DOT encodes a snapshot as a Graphviz digraph. Every node kind present must
// have a style entry; otherwise an error wrapping model.ErrConfigurationGap is
// returned and nothing is produced. Plain nodes carry no attributes.
func DOT(snap *graph.Snapshot, styles style.Map) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", GraphName)
	b.WriteString("overlap=scalexy;\n")
	b.WriteString("sep=0.1;\n")

	for _, n := range snap.Nodes {
		st, err := styles.Lookup(n.Kind)
		if err != nil {
			return "", fmt.Errorf("node %q: %w", n.Label, err)
		}
		attrs := nodeAttrs(n, st)
		if len(attrs) == 0 {
			fmt.Fprintf(&b, "%s;\n", quoteID(n.Label))
			continue
		}
		fmt.Fprintf(&b, "%s [%s];\n", quoteID(n.Label), strings.Join(attrs, " "))
	}

	for _, e := range snap.Edges {
		fmt.Fprintf(&b, "%s -> %s", endpoint(e.Source), endpoint(e.Target))
		if e.Site != "" {
			fmt.Fprintf(&b, " [tooltip=%s]", quoteID(e.Site))
		}
		b.WriteString(";\n")
	}

	b.WriteString("}\n")
	return b.String(), nil
}

func nodeAttrs(n model.Node, st style.Style) []string {
	var attrs []string
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, key+"="+attrValue(value))
		}
	}
	add("shape", st.Shape)
	add("fillcolor", st.Color)
	add("style", st.Fill)
	if n.Kind == model.RouteEndpoint {
		attrs = append(attrs, `label="`+labelEscape.Replace(recordLabel(n))+`"`)
	}

	keys := make([]string, 0, len(n.Attr))
	for k := range n.Attr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, n.Attr[k])
	}
	return attrs
}

// recordLabel renders "caption | {<GET>GET | <POST>POST}".
func recordLabel(n model.Node) string {
	caption := n.Caption
	if caption == "" {
		caption = n.Label
	}
	if len(n.Ports) == 0 {
		return recordEscape.Replace(caption)
	}
	fields := make([]string, len(n.Ports))
	for i, p := range n.Ports {
		esc := recordEscape.Replace(p)
		fields[i] = "<" + esc + ">" + esc
	}
	return recordEscape.Replace(caption) + " | {" + strings.Join(fields, " | ") + "}"
}

func endpoint(ep model.Endpoint) string {
	if ep.Port == "" {
		return quoteID(ep.Label)
	}
	return quoteID(ep.Label) + ":" + quoteID(ep.Port)
}

func attrValue(v string) string {
	if bareID.MatchString(v) {
		return v
	}
	return quoteID(v)
}

func quoteID(s string) string {
	return `"` + idEscape.Replace(s) + `"`
}
