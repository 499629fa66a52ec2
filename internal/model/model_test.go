package model

import (
	"slices"
	"testing"
)

func TestRouteSurfaceNodeKind(t *testing.T) {
	t.Parallel()

	surface := RouteSurface{Name: "shop", Resources: []RouteResource{
		{Path: "/orders", Methods: map[string]string{"GET": ""}},
	}}
	node := Node{Label: surface.Name, Kind: RouteAPI}

	if node.Label != "shop" {
		t.Errorf("label = %q, want shop", node.Label)
	}
	if !slices.Contains(Kinds, node.Kind) {
		t.Errorf("Kinds does not list %q", node.Kind)
	}
	if slices.Contains(Kinds, Plain) {
		t.Error("Kinds must not list the plain kind")
	}
}

func TestFunctionInfoLabel(t *testing.T) {
	t.Parallel()

	if got := (FunctionInfo{Name: "orders", Qualifier: "DEV"}).Label(); got != "orders:DEV" {
		t.Errorf("Label = %q, want orders:DEV", got)
	}
	if got := (FunctionInfo{Name: "orders"}).Label(); got != "orders" {
		t.Errorf("Label = %q, want orders", got)
	}
}

func TestInferredDependencyEdges(t *testing.T) {
	t.Parallel()

	fn := Endpoint{Label: "orders:DEV"}
	table := Endpoint{Label: "OrdersDEV"}

	tests := []struct {
		direction Direction
		want      []Edge
	}{
		{Outbound, []Edge{{Source: fn, Target: table, Site: "h.py:3"}}},
		{Inbound, []Edge{{Source: table, Target: fn, Site: "h.py:3"}}},
		{Bidirectional, []Edge{
			{Source: fn, Target: table, Site: "h.py:3"},
			{Source: table, Target: fn, Site: "h.py:3"},
		}},
	}
	for _, tt := range tests {
		d := InferredDependency{
			FunctionLabel: "orders:DEV",
			TargetLabel:   "OrdersDEV",
			TargetKind:    Table,
			Direction:     tt.direction,
			Site:          "h.py:3",
		}
		if got := d.Edges(); !slices.Equal(got, tt.want) {
			t.Errorf("%s: Edges = %+v, want %+v", tt.direction, got, tt.want)
		}
	}
}
