// Package ident converts provider identifiers into display-safe node labels.
//
// ARN handling relies on fixed colon-segment offsets:
//
//	arn:aws:sns:<region>:<account>:<topic>                      topic name from segment 5
//	arn:aws:lambda:<region>:<account>:function:<name>[:<alias>] function name from segment 6
//
// These offsets are an assumption about the provider's format, not a parser.
package ident

import "strings"

const (
	// TopicSegment is the first segment of a topic ARN that names the topic.
	TopicSegment = 5
	// FunctionSegment is the first segment of a function ARN that names the function.
	FunctionSegment = 6
)

var pathReplacer = strings.NewReplacer("{", "(", "}", ")")

// SanitizePath replaces path-parameter braces with parentheses. Braces are
// reserved for record bodies in the output grammar.
func SanitizePath(path string) string {
	return pathReplacer.Replace(path)
}

// StripARNPrefix returns the colon-delimited segments of arn from index keep
// onward. Identifiers with no segment at that index are returned unchanged.
func StripARNPrefix(arn string, keep int) string {
	if keep <= 0 {
		return arn
	}
	parts := strings.Split(arn, ":")
	if len(parts) <= keep {
		return arn
	}
	return strings.Join(parts[keep:], ":")
}

// TopicName returns the bare topic name of a topic ARN.
func TopicName(arn string) string {
	return StripARNPrefix(arn, TopicSegment)
}

// FunctionName returns the (possibly alias-qualified) function name of a
// function ARN, e.g. "orders:DEV".
func FunctionName(arn string) string {
	return StripARNPrefix(arn, FunctionSegment)
}

// LambdaPathMarker appears in every integration URI that invokes a function.
const LambdaPathMarker = ":lambda:path/"

// IntegrationTarget extracts the function name from a route integration URI.
// The function ARN is the second-to-last path segment:
//
//	arn:aws:apigateway:<region>:lambda:path/2015-03-31/functions/<function-arn>/invocations
//
// URIs of other integrations (HTTP backends, other services) yield "".
func IntegrationTarget(uri string) string {
	if !strings.Contains(uri, LambdaPathMarker) {
		return ""
	}
	parts := strings.Split(uri, "/")
	if len(parts) < 2 {
		return ""
	}
	return FunctionName(parts[len(parts)-2])
}

// EndpointLabel returns the label of a route resource node.
func EndpointLabel(api, path string) string {
	return api + SanitizePath(path)
}
