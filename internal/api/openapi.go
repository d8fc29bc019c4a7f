package api

import "strings"

type endpoint struct {
	method      string
	path        string
	summary     string
	request     map[string]any
	responses   []string
	authorized  bool
	description string
}

var sourceSchema = map[string]any{
	"type":     "object",
	"required": []string{"jenkinsfile"},
	"properties": map[string]any{
		"jenkinsfile": map[string]any{"type": "string", "description": "Declarative pipeline text"},
		"source":      map[string]any{"type": "string", "description": "Label recorded with the run"},
	},
}

var planSchema = map[string]any{
	"type":     "object",
	"required": []string{"jenkinsfile"},
	"properties": map[string]any{
		"jenkinsfile": map[string]any{"type": "string"},
		"event":       map[string]any{"type": "string", "default": "push"},
		"ref":         map[string]any{"type": "string", "default": "refs/heads/main"},
		"inputs":      map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		"env":         map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		"failed":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

var endpoints = []endpoint{
	{method: "get", path: "/healthz", summary: "Liveness probe", responses: []string{"200"}},
	{method: "post", path: "/v1/convert", summary: "Convert a Jenkinsfile", request: sourceSchema,
		responses: []string{"200", "400", "401", "413", "422"}, authorized: true,
		description: "Returns the workflow, composite actions and a migration report."},
	{method: "post", path: "/v1/analyze", summary: "Analyze a Jenkinsfile", request: sourceSchema,
		responses: []string{"200", "400", "401", "413"}, authorized: true},
	{method: "post", path: "/v1/plan", summary: "Simulate which jobs run for an event", request: planSchema,
		responses: []string{"200", "400", "401", "413", "422"}, authorized: true},
	{method: "get", path: "/v1/runs", summary: "List recorded conversion runs",
		responses: []string{"200", "400", "401", "503"}, authorized: true},
}

var responseText = map[string]string{
	"200": "OK",
	"400": "Bad request",
	"401": "Missing or invalid token",
	"413": "Request body too large",
	"422": "Input is not a declarative pipeline",
	"503": "Run ledger is disabled",
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the HTTP surface.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]any{}
	for _, ep := range endpoints {
		responses := map[string]any{}
		for _, code := range ep.responses {
			responses[code] = map[string]any{"description": responseText[code]}
		}
		operation := map[string]any{
			"operationId": operationID(ep),
			"summary":     ep.summary,
			"responses":   responses,
		}
		if ep.description != "" {
			operation["description"] = ep.description
		}
		if ep.authorized {
			operation["security"] = []any{map[string]any{"BearerAuth": []string{}}}
		}
		if ep.request != nil {
			operation["requestBody"] = map[string]any{
				"required": true,
				"content": map[string]any{
					"application/json": map[string]any{"schema": ep.request},
				},
			}
		}
		item, _ := paths[ep.path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[ep.path] = item
		}
		item[ep.method] = operation
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "jenkins2gha",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

// operationID derives "post_v1_convert" style ids.
func operationID(ep endpoint) string {
	return ep.method + strings.ReplaceAll(ep.path, "/", "_")
}
