package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

const openAPIURI = "specsync://openapi"

// OpenAPISpec is a minimal OpenAPI 3.0 document.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi"`
	Info    OpenAPIInfo         `json:"info"`
	Paths   map[string]PathItem `json:"paths"`
}

// OpenAPIInfo describes the API in the info section.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// PathItem holds the operations served on one path.
type PathItem struct {
	Post *Operation `json:"post,omitempty"`
}

// Operation is one tool exposed as an HTTP operation.
type Operation struct {
	OperationID string              `json:"operationId"`
	Summary     string              `json:"summary,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
	Tags        []string            `json:"tags,omitempty"`
}

// RequestBody carries the tool arguments.
type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

// MediaType pairs a content type with the tool's input schema.
type MediaType struct {
	Schema any `json:"schema"`
}

// Response describes one status code of an operation.
type Response struct {
	Description string `json:"description"`
}

// OpenAPI returns the OpenAPI document for this server's tools.
func (s *Server) OpenAPI() ([]byte, error) {
	return GenerateOpenAPI(s.mcpServer)
}

// GenerateOpenAPI maps every registered tool to POST /tools/{name}.
func GenerateOpenAPI(srv *mcplib.Server) ([]byte, error) {
	tools := srv.Tools()

	paths := make(map[string]PathItem, len(tools))
	for _, t := range tools {
		op := Operation{
			OperationID: t.Name,
			Summary:     t.Description,
			Responses: map[string]Response{
				"200": {Description: "Report"},
				"400": {Description: "Invalid scope, format, threshold or arguments"},
				"500": {Description: "Internal server error"},
			},
			Tags: []string{"specsync"},
		}
		if t.InputSchema != nil && hasProperties(t.InputSchema) {
			op.RequestBody = &RequestBody{
				Required: false,
				Content: map[string]MediaType{
					"application/json": {Schema: t.InputSchema},
				},
			}
		}
		paths["/tools/"+t.Name] = PathItem{Post: &op}
	}

	spec := OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "specsync MCP API",
			Description: "Generated from the specsync MCP tool registrations.",
			Version:     SchemaVersion,
		},
		Paths: paths,
	}
	return json.MarshalIndent(spec, "", "  ")
}

func hasProperties(schema any) bool {
	m, ok := schema.(map[string]any)
	if !ok {
		return false
	}
	props, ok := m["properties"].(map[string]any)
	return ok && len(props) > 0
}

func (s *Server) registerOpenAPIResource() {
	s.mcpServer.Resource(openAPIURI).
		Name(openAPIURI).
		Description("OpenAPI description of the specsync tools").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			data, err := s.OpenAPI()
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      openAPIURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
