package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/phobologic/cloudgraph/internal/model"
)

// Static serves all three sources from a recorded snapshot. It backs the
// -snapshot flag and tests.
type Static struct {
	APIs      []StaticAPI      `json:"apis"`
	Topics    []StaticTopic    `json:"topics"`
	Functions []StaticFunction `json:"functions"`
}

// StaticAPI is a recorded route surface.
type StaticAPI struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Resources []StaticResource `json:"resources"`
}

// StaticResource maps HTTP methods to integration URIs.
type StaticResource struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	Integrations map[string]string `json:"integrations"`
}

// StaticTopic is a recorded topic.
type StaticTopic struct {
	ARN           string               `json:"arn"`
	Subscriptions []StaticSubscription `json:"subscriptions"`
}

// StaticSubscription is a recorded subscription.
type StaticSubscription struct {
	Protocol string `json:"protocol"`
	Endpoint string `json:"endpoint"`
}

// StaticFunction is a recorded function with its qualified variants.
type StaticFunction struct {
	Name     string                   `json:"name"`
	Runtime  string                   `json:"runtime"`
	Variants map[string]StaticVariant `json:"variants"`
}

// StaticVariant is one qualified variant of a function.
type StaticVariant struct {
	Runtime    string `json:"runtime,omitempty"`
	Location   string `json:"location,omitempty"`
	ImageURI   string `json:"image_uri,omitempty"`
	CodeSHA256 string `json:"code_sha256,omitempty"`
}

// LoadSnapshot reads a Static source from a JSON file.
func LoadSnapshot(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s Static
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// ListAPIs implements RouteSource.
func (s *Static) ListAPIs(context.Context) ([]API, error) {
	apis := make([]API, 0, len(s.APIs))
	for _, a := range s.APIs {
		apis = append(apis, API{ID: a.ID, Name: a.Name})
	}
	return apis, nil
}

// ListResources implements RouteSource. Methods are sorted.
func (s *Static) ListResources(_ context.Context, apiID string) ([]Resource, error) {
	api, err := s.api(apiID)
	if err != nil {
		return nil, err
	}
	resources := make([]Resource, 0, len(api.Resources))
	for _, r := range api.Resources {
		methods := make([]string, 0, len(r.Integrations))
		for m := range r.Integrations {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		resources = append(resources, Resource{ID: r.ID, Path: r.Path, Methods: methods})
	}
	return resources, nil
}

// IntegrationURI implements RouteSource.
func (s *Static) IntegrationURI(_ context.Context, apiID, resourceID, method string) (string, error) {
	api, err := s.api(apiID)
	if err != nil {
		return "", err
	}
	for _, r := range api.Resources {
		if r.ID != resourceID {
			continue
		}
		if uri, ok := r.Integrations[method]; ok {
			return uri, nil
		}
	}
	return "", fmt.Errorf("%w: %s %s/%s", model.ErrSourceUnavailable, method, apiID, resourceID)
}

func (s *Static) api(id string) (*StaticAPI, error) {
	for i := range s.APIs {
		if s.APIs[i].ID == id {
			return &s.APIs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: api %q", model.ErrSourceUnavailable, id)
}

// ListTopicARNs implements TopicSource.
func (s *Static) ListTopicARNs(context.Context) ([]string, error) {
	arns := make([]string, 0, len(s.Topics))
	for _, t := range s.Topics {
		arns = append(arns, t.ARN)
	}
	return arns, nil
}

// ListSubscriptions implements TopicSource.
func (s *Static) ListSubscriptions(_ context.Context, topicARN string) ([]model.Subscription, error) {
	for _, t := range s.Topics {
		if t.ARN != topicARN {
			continue
		}
		subs := make([]model.Subscription, 0, len(t.Subscriptions))
		for _, sub := range t.Subscriptions {
			subs = append(subs, model.Subscription{Protocol: sub.Protocol, Endpoint: sub.Endpoint})
		}
		return subs, nil
	}
	return nil, fmt.Errorf("%w: topic %q", model.ErrSourceUnavailable, topicARN)
}

// ListFunctions implements FunctionSource.
func (s *Static) ListFunctions(context.Context) ([]FunctionSummary, error) {
	fns := make([]FunctionSummary, 0, len(s.Functions))
	for _, f := range s.Functions {
		fns = append(fns, FunctionSummary{Name: f.Name, Runtime: f.Runtime})
	}
	return fns, nil
}

// GetFunction implements FunctionSource.
func (s *Static) GetFunction(_ context.Context, name, qualifier string) (FunctionDetail, error) {
	for _, f := range s.Functions {
		if f.Name != name {
			continue
		}
		v, ok := f.Variants[qualifier]
		if !ok {
			return FunctionDetail{}, fmt.Errorf("%w: %s:%s", model.ErrNotFound, name, qualifier)
		}
		runtime := v.Runtime
		if runtime == "" {
			runtime = f.Runtime
		}
		return FunctionDetail{
			Runtime: runtime,
			Package: model.PackageRef{Location: v.Location, ImageURI: v.ImageURI, CodeSHA256: v.CodeSHA256},
		}, nil
	}
	return FunctionDetail{}, fmt.Errorf("%w: function %s", model.ErrNotFound, name)
}
