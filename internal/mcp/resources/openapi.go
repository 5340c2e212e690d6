package resources

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	OpenAPIURI      = "gatherings://api/openapi.json"
	openAPIMIMEType = "application/json"
)

// DocumentLoader returns the serialized API description.
type DocumentLoader func() ([]byte, error)

// APIResources exposes the REST API description so agents can construct
// requests the tools do not cover.
type APIResources struct {
	load DocumentLoader
}

func NewAPIResources(load DocumentLoader) *APIResources {
	return &APIResources{load: load}
}

func (r *APIResources) OpenAPIResource() mcp.Resource {
	return mcp.NewResource(
		OpenAPIURI,
		"Gatherings REST API",
		mcp.WithResourceDescription("OpenAPI 3 description of the events, RSVP, review and profile endpoints"),
		mcp.WithMIMEType(openAPIMIMEType),
	)
}

func (r *APIResources) OpenAPIHandler(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if r == nil || r.load == nil {
		return nil, fmt.Errorf("openapi document not configured")
	}
	doc, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	uri := OpenAPIURI
	if request.Params.URI != "" {
		uri = request.Params.URI
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: openAPIMIMEType,
			Text:     string(doc),
		},
	}, nil
}
