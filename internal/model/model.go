// Package model defines core data structures for cloudgraph.
package model

import "errors"

// NodeKind selects the styling of a node. It carries no other meaning.
type NodeKind string

const (
	RouteAPI      NodeKind = "route_api"
	RouteEndpoint NodeKind = "route_endpoint"
	Topic         NodeKind = "topic"
	Subscriber    NodeKind = "subscriber"
	Function      NodeKind = "function"
	Table         NodeKind = "table"

	// Plain marks a node that was only ever referenced by an edge.
	Plain NodeKind = "plain"
)

// Kinds lists every styled node kind.
var Kinds = []NodeKind{RouteAPI, RouteEndpoint, Topic, Subscriber, Function, Table}

// Node is a graph vertex. Label is the sole identity key.
type Node struct {
	Label string
	Kind  NodeKind

	// Ports lists record fields for route endpoints (HTTP methods); empty for
	// every other kind.
	Ports []string
	// Caption is the first record field, shown before the ports.
	Caption string
	// Attr holds extra display attributes such as a subscriber's protocol.
	Attr map[string]string
}

// Endpoint names one end of an edge, optionally a record port on the node.
type Endpoint struct {
	Label string
	Port  string
}

// Edge is a directed edge between two endpoints.
type Edge struct {
	Source Endpoint
	Target Endpoint
	// Site describes where an inferred edge was found ("handler.py:12 publish").
	Site string
}

// RouteResource is one path on a route surface with its method integrations.
type RouteResource struct {
	Path string
	// Methods maps HTTP method to integration target reference.
	Methods map[string]string
}

// RouteSurface is a named route surface with its resources in listing order.
type RouteSurface struct {
	Name      string
	Resources []RouteResource
}

// Subscription is one delivery target of a topic.
type Subscription struct {
	Protocol string
	Endpoint string
}

// PubSubTopic is a topic with its subscriptions.
type PubSubTopic struct {
	Name          string
	Subscriptions []Subscription
}

// PackageRef locates a function's deployment package.
type PackageRef struct {
	Location string
	// ImageURI is set instead of Location for container image functions.
	ImageURI string
	// CodeSHA256 identifies identical packages across functions.
	CodeSHA256 string
}

// FunctionInfo describes the qualified variant of a compute function.
type FunctionInfo struct {
	Name      string
	Runtime   string
	Qualifier string
	Package   PackageRef
}

// Label returns the node label of the function ("orders:DEV").
func (f FunctionInfo) Label() string {
	if f.Qualifier == "" {
		return f.Name
	}
	return f.Name + ":" + f.Qualifier
}

// Direction of an inferred dependency relative to the function.
type Direction string

const (
	Outbound      Direction = "function->target"
	Inbound       Direction = "target->function"
	Bidirectional Direction = "bidirectional"
)

// InferredDependency is an edge guessed from function source text.
type InferredDependency struct {
	FunctionLabel string
	TargetLabel   string
	TargetKind    NodeKind
	Direction     Direction
	Site          string
}

// Edges expands the dependency into directed graph edges.
func (d InferredDependency) Edges() []Edge {
	fn := Endpoint{Label: d.FunctionLabel}
	target := Endpoint{Label: d.TargetLabel}
	switch d.Direction {
	case Inbound:
		return []Edge{{Source: target, Target: fn, Site: d.Site}}
	case Bidirectional:
		return []Edge{
			{Source: fn, Target: target, Site: d.Site},
			{Source: target, Target: fn, Site: d.Site},
		}
	default:
		return []Edge{{Source: fn, Target: target, Site: d.Site}}
	}
}

var (
	// ErrSourceUnavailable marks a failed call to an external source. Fatal.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNotFound marks a missing qualified function variant. The function is skipped.
	ErrNotFound = errors.New("not found")
	// ErrInspection marks an unreadable package. The function keeps its node.
	ErrInspection = errors.New("inspection failed")
	// ErrConfigurationGap marks a node kind with no style entry. Fatal.
	ErrConfigurationGap = errors.New("missing style")
)
