// Package awsapi implements the collect sources on API Gateway, SNS and Lambda.
package awsapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/phobologic/cloudgraph/internal/collect"
	"github.com/phobologic/cloudgraph/internal/ident"
	"github.com/phobologic/cloudgraph/internal/model"
)

// Options selects the AWS account and region.
type Options struct {
	Region  string
	Profile string
}

// Clients bundles the three service clients.
type Clients struct {
	Routes    *Routes
	Topics    *Topics
	Functions *Functions
}

// New loads the shared AWS configuration and creates the service clients.
func New(ctx context.Context, opts Options) (*Clients, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %w", model.ErrSourceUnavailable, err)
	}
	return &Clients{
		Routes:    &Routes{client: apigateway.NewFromConfig(cfg)},
		Topics:    &Topics{client: sns.NewFromConfig(cfg)},
		Functions: &Functions{client: lambda.NewFromConfig(cfg)},
	}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, op, err)
}

// Routes implements collect.RouteSource on API Gateway REST APIs.
type Routes struct {
	client *apigateway.Client
}

// ListAPIs implements collect.RouteSource.
func (r *Routes) ListAPIs(ctx context.Context) ([]collect.API, error) {
	var apis []collect.API
	p := apigateway.NewGetRestApisPaginator(r.client, &apigateway.GetRestApisInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("GetRestApis", err)
		}
		for _, item := range page.Items {
			apis = append(apis, collect.API{ID: aws.ToString(item.Id), Name: aws.ToString(item.Name)})
		}
	}
	return apis, nil
}

// ListResources implements collect.RouteSource.
func (r *Routes) ListResources(ctx context.Context, apiID string) ([]collect.Resource, error) {
	var resources []collect.Resource
	p := apigateway.NewGetResourcesPaginator(r.client, &apigateway.GetResourcesInput{RestApiId: aws.String(apiID)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("GetResources", err)
		}
		for _, item := range page.Items {
			res := collect.Resource{ID: aws.ToString(item.Id), Path: aws.ToString(item.Path)}
			for method := range item.ResourceMethods {
				res.Methods = append(res.Methods, method)
			}
			sort.Strings(res.Methods)
			resources = append(resources, res)
		}
	}
	return resources, nil
}

// IntegrationURI implements collect.RouteSource. Only AWS and AWS_PROXY
// integrations that invoke a function report a URI.
func (r *Routes) IntegrationURI(ctx context.Context, apiID, resourceID, method string) (string, error) {
	out, err := r.client.GetMethod(ctx, &apigateway.GetMethodInput{
		RestApiId:  aws.String(apiID),
		ResourceId: aws.String(resourceID),
		HttpMethod: aws.String(method),
	})
	if err != nil {
		return "", unavailable("GetMethod", err)
	}
	in := out.MethodIntegration
	if in == nil {
		return "", nil
	}
	switch in.Type {
	case apigwtypes.IntegrationTypeAws, apigwtypes.IntegrationTypeAwsProxy:
	default:
		return "", nil
	}
	uri := aws.ToString(in.Uri)
	if !strings.Contains(uri, ident.LambdaPathMarker) {
		return "", nil
	}
	return uri, nil
}

// Topics implements collect.TopicSource on SNS.
type Topics struct {
	client *sns.Client
}

// ListTopicARNs implements collect.TopicSource.
func (t *Topics) ListTopicARNs(ctx context.Context) ([]string, error) {
	var arns []string
	p := sns.NewListTopicsPaginator(t.client, &sns.ListTopicsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("ListTopics", err)
		}
		for _, topic := range page.Topics {
			arns = append(arns, aws.ToString(topic.TopicArn))
		}
	}
	return arns, nil
}

// ListSubscriptions implements collect.TopicSource.
func (t *Topics) ListSubscriptions(ctx context.Context, topicARN string) ([]model.Subscription, error) {
	var subs []model.Subscription
	p := sns.NewListSubscriptionsByTopicPaginator(t.client, &sns.ListSubscriptionsByTopicInput{TopicArn: aws.String(topicARN)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("ListSubscriptionsByTopic", err)
		}
		for _, sub := range page.Subscriptions {
			subs = append(subs, model.Subscription{
				Protocol: aws.ToString(sub.Protocol),
				Endpoint: aws.ToString(sub.Endpoint),
			})
		}
	}
	return subs, nil
}

// Functions implements collect.FunctionSource on Lambda.
type Functions struct {
	client *lambda.Client
}

// ListFunctions implements collect.FunctionSource.
func (f *Functions) ListFunctions(ctx context.Context) ([]collect.FunctionSummary, error) {
	var fns []collect.FunctionSummary
	p := lambda.NewListFunctionsPaginator(f.client, &lambda.ListFunctionsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, unavailable("ListFunctions", err)
		}
		for _, fn := range page.Functions {
			fns = append(fns, collect.FunctionSummary{
				Name:    aws.ToString(fn.FunctionName),
				Runtime: string(fn.Runtime),
			})
		}
	}
	return fns, nil
}

// GetFunction implements collect.FunctionSource. A missing alias maps to
// model.ErrNotFound.
func (f *Functions) GetFunction(ctx context.Context, name, qualifier string) (collect.FunctionDetail, error) {
	out, err := f.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
		Qualifier:    aws.String(qualifier),
	})
	if err != nil {
		var nf *lambdatypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return collect.FunctionDetail{}, fmt.Errorf("%w: %s:%s", model.ErrNotFound, name, qualifier)
		}
		return collect.FunctionDetail{}, unavailable("GetFunction", err)
	}

	var detail collect.FunctionDetail
	if out.Configuration != nil {
		detail.Runtime = string(out.Configuration.Runtime)
		detail.Package.CodeSHA256 = aws.ToString(out.Configuration.CodeSha256)
	}
	if out.Code != nil {
		detail.Package.Location = aws.ToString(out.Code.Location)
		detail.Package.ImageURI = aws.ToString(out.Code.ImageUri)
	}
	return detail, nil
}
