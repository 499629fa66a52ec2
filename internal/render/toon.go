package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/cloudgraph/internal/graph"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// TOON encodes a snapshot in Token-Oriented Object Notation: a nodes table
// with kind and rank, and an edges table with ports and reference sites.
// Nodes missing from ranks get rank 0.
func TOON(snap *graph.Snapshot, ranks map[string]float64) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("graph: %s", encodeValue(GraphName)))

	nodeRows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodeRows = append(nodeRows, []string{
			n.Label,
			string(n.Kind),
			fmt.Sprintf("%.4f", ranks[n.Label]),
		})
	}
	parts = append(parts, formatTabular("nodes", []string{"label", "kind", "rank"}, nodeRows))

	edgeRows := make([][]string, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		edgeRows = append(edgeRows, []string{
			e.Source.Label,
			e.Source.Port,
			e.Target.Label,
			e.Site,
		})
	}
	parts = append(parts, formatTabular("edges", []string{"source", "port", "target", "site"}, edgeRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

var quoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(value string) string {
	return `"` + quoteEscaper.Replace(value) + `"`
}
