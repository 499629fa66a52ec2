// Package pipeline runs the collectors and the inspector and assembles their
// results into one graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/cloudgraph/internal/collect"
	"github.com/phobologic/cloudgraph/internal/graph"
	"github.com/phobologic/cloudgraph/internal/ident"
	"github.com/phobologic/cloudgraph/internal/model"
)

// DefaultQualifier selects the development variant of each function.
const DefaultQualifier = "DEV"

// Sources bundles the three collector sources. A nil source skips its pass.
type Sources struct {
	Routes    collect.RouteSource
	Topics    collect.TopicSource
	Functions collect.FunctionSource
}

// Inferrer guesses dependencies from a function's package.
type Inferrer interface {
	Infer(ctx context.Context, fn model.FunctionInfo) ([]model.InferredDependency, error)
}

// Options configures Build.
type Options struct {
	// Qualifier selects function variants; empty means DefaultQualifier.
	Qualifier string
	// Parallel runs the three passes concurrently into separate fragments
	// that are merged in pass order.
	Parallel bool
	Logger   *slog.Logger
}

type pass func(ctx context.Context, g *graph.Graph) error

// Build runs the routes, topics and functions passes and returns the closed
// graph. Any fatal error aborts the run and no graph is returned. A nil
// inferrer disables dependency inference.
func Build(ctx context.Context, src Sources, inferrer Inferrer, opts Options) (*graph.Snapshot, error) {
	b := &builder{
		src:       src,
		inferrer:  inferrer,
		qualifier: opts.Qualifier,
		logger:    opts.Logger,
	}
	if b.qualifier == "" {
		b.qualifier = DefaultQualifier
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	passes := []pass{b.routes, b.topics, b.functions}
	g := graph.New()

	if !opts.Parallel {
		for _, p := range passes {
			if err := p(ctx, g); err != nil {
				return nil, err
			}
		}
		return g.Close(), nil
	}

	fragments := make([]*graph.Graph, len(passes))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range passes {
		fragments[i] = graph.New()
		eg.Go(func() error {
			return p(egCtx, fragments[i])
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, f := range fragments {
		g.Merge(f)
	}
	return g.Close(), nil
}

type builder struct {
	src       Sources
	inferrer  Inferrer
	qualifier string
	logger    *slog.Logger
}

func (b *builder) routes(ctx context.Context, g *graph.Graph) error {
	if b.src.Routes == nil {
		return nil
	}
	apis, err := collect.ListRoutes(ctx, b.src.Routes)
	if err != nil {
		return err
	}

	var resources int
	for _, api := range apis {
		g.AddNode(api.Name, model.RouteAPI)
		for _, res := range api.Resources {
			resources++
			label := ident.EndpointLabel(api.Name, res.Path)
			methods := sortedMethods(res.Methods)
			g.Insert(model.Node{
				Label:   label,
				Kind:    model.RouteEndpoint,
				Caption: ident.SanitizePath(res.Path),
				Ports:   methods,
			})
			g.AddEdge(api.Name, label)

			for _, method := range methods {
				target := ident.IntegrationTarget(res.Methods[method])
				if target == "" {
					continue
				}
				g.AddNode(target, model.Function)
				g.Link(model.Edge{
					Source: model.Endpoint{Label: label, Port: method},
					Target: model.Endpoint{Label: target},
				})
			}
		}
	}
	b.logger.Info("Collected routes.", "apis", len(apis), "resources", resources)
	return nil
}

func (b *builder) topics(ctx context.Context, g *graph.Graph) error {
	if b.src.Topics == nil {
		return nil
	}
	topics, err := collect.ListTopics(ctx, b.src.Topics)
	if err != nil {
		return err
	}

	for _, topic := range topics {
		g.AddNode(topic.Name, model.Topic)
		for _, sub := range topic.Subscriptions {
			if sub.Protocol == collect.LambdaProtocol {
				g.AddNode(sub.Endpoint, model.Function)
			} else {
				g.Insert(model.Node{
					Label: sub.Endpoint,
					Kind:  model.Subscriber,
					Attr:  map[string]string{"protocol": sub.Protocol},
				})
			}
			g.AddEdge(topic.Name, sub.Endpoint)
		}
	}
	b.logger.Info("Collected topics.", "topics", len(topics))
	return nil
}

func (b *builder) functions(ctx context.Context, g *graph.Graph) error {
	if b.src.Functions == nil {
		return nil
	}
	fns, err := collect.ListFunctions(ctx, b.src.Functions, b.qualifier, b.logger)
	if err != nil {
		return err
	}

	var inferred int
	for _, fn := range fns {
		g.AddNode(fn.Label(), model.Function)
		if b.inferrer == nil {
			continue
		}

		deps, err := b.inferrer.Infer(ctx, fn)
		if errors.Is(err, model.ErrInspection) {
			b.logger.Warn("Skipping dependency inference.", "function", fn.Name, "runtime", fn.Runtime, "err", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("inferring dependencies of %s: %w", fn.Label(), err)
		}

		for _, dep := range deps {
			g.AddNode(dep.TargetLabel, dep.TargetKind)
			for _, e := range dep.Edges() {
				g.Link(e)
			}
		}
		inferred += len(deps)
	}
	b.logger.Info("Collected functions.", "functions", len(fns), "inferred", inferred)
	return nil
}

func sortedMethods(m map[string]string) []string {
	methods := make([]string, 0, len(m))
	for method := range m {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
