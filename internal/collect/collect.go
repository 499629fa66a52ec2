// Package collect gathers routes, topics and functions from their sources
// into self-contained listings.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phobologic/cloudgraph/internal/ident"
	"github.com/phobologic/cloudgraph/internal/model"
)

// API is a route surface as listed by the routing source.
type API struct {
	ID   string
	Name string
}

// Resource is a path on a route surface with the HTTP methods it serves.
type Resource struct {
	ID      string
	Path    string
	Methods []string
}

// RouteSource is the routing service.
type RouteSource interface {
	ListAPIs(ctx context.Context) ([]API, error)
	ListResources(ctx context.Context, apiID string) ([]Resource, error)
	// IntegrationURI returns the integration target reference of one method.
	IntegrationURI(ctx context.Context, apiID, resourceID, method string) (string, error)
}

// TopicSource is the pub/sub service.
type TopicSource interface {
	ListTopicARNs(ctx context.Context) ([]string, error)
	ListSubscriptions(ctx context.Context, topicARN string) ([]model.Subscription, error)
}

// FunctionSummary is one entry of the function listing.
type FunctionSummary struct {
	Name    string
	Runtime string
}

// FunctionDetail is the qualified variant of a function.
type FunctionDetail struct {
	Runtime string
	Package model.PackageRef
}

// FunctionSource is the function-execution service.
type FunctionSource interface {
	ListFunctions(ctx context.Context) ([]FunctionSummary, error)
	// GetFunction returns the variant selected by qualifier, or an error
	// wrapping model.ErrNotFound when the function has no such variant.
	GetFunction(ctx context.Context, name, qualifier string) (FunctionDetail, error)
}

// LambdaProtocol is the subscription protocol of function endpoints.
const LambdaProtocol = "lambda"

// ListRoutes returns every route surface with its resources and, per method,
// the integration target reference.
func ListRoutes(ctx context.Context, src RouteSource) ([]model.RouteSurface, error) {
	apis, err := src.ListAPIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing APIs: %w", err)
	}

	routes := make([]model.RouteSurface, 0, len(apis))
	for _, api := range apis {
		resources, err := src.ListResources(ctx, api.ID)
		if err != nil {
			return nil, fmt.Errorf("listing resources of %s: %w", api.Name, err)
		}

		route := model.RouteSurface{Name: api.Name}
		for _, res := range resources {
			methods := make(map[string]string, len(res.Methods))
			for _, method := range res.Methods {
				uri, err := src.IntegrationURI(ctx, api.ID, res.ID, method)
				if err != nil {
					return nil, fmt.Errorf("reading %s %s%s: %w", method, api.Name, res.Path, err)
				}
				methods[method] = uri
			}
			route.Resources = append(route.Resources, model.RouteResource{
				Path:    res.Path,
				Methods: methods,
			})
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// ListTopics returns every topic with its subscriptions. Function endpoints
// are reduced to the bare (alias-qualified) function name.
func ListTopics(ctx context.Context, src TopicSource) ([]model.PubSubTopic, error) {
	arns, err := src.ListTopicARNs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}

	topics := make([]model.PubSubTopic, 0, len(arns))
	for _, arn := range arns {
		subs, err := src.ListSubscriptions(ctx, arn)
		if err != nil {
			return nil, fmt.Errorf("listing subscriptions of %s: %w", arn, err)
		}

		topic := model.PubSubTopic{Name: ident.TopicName(arn)}
		for _, sub := range subs {
			if sub.Protocol == LambdaProtocol {
				sub.Endpoint = ident.FunctionName(sub.Endpoint)
			}
			topic.Subscriptions = append(topic.Subscriptions, sub)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// ListFunctions returns the functions that have a variant under qualifier.
// Functions without it are skipped.
func ListFunctions(ctx context.Context, src FunctionSource, qualifier string, logger *slog.Logger) ([]model.FunctionInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	summaries, err := src.ListFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}

	var functions []model.FunctionInfo
	for _, s := range summaries {
		detail, err := src.GetFunction(ctx, s.Name, qualifier)
		if errors.Is(err, model.ErrNotFound) {
			logger.Debug("Skipping function without qualifier.", "function", s.Name, "qualifier", qualifier)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading function %s: %w", s.Name, err)
		}

		runtime := detail.Runtime
		if runtime == "" {
			runtime = s.Runtime
		}
		functions = append(functions, model.FunctionInfo{
			Name:      s.Name,
			Runtime:   runtime,
			Qualifier: qualifier,
			Package:   detail.Package,
		})
	}
	return functions, nil
}
