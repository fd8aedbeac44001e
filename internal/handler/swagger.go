package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/budget-backend/docs"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/swaggo/swag"
)

// OpenAPI3Spec represents an OpenAPI 3.0 spec structure
type OpenAPI3Spec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       map[string]interface{} `json:"info"`
	Servers    []Server               `json:"servers"`
	Paths      map[string]interface{} `json:"paths"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// Server represents an OpenAPI 3.0 server
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIHandler serves the generated Swagger 2.0 document as OpenAPI 3.0
type OpenAPIHandler struct {
	servers []Server
}

// NewOpenAPIHandler creates a new OpenAPIHandler listing servers
func NewOpenAPIHandler(servers ...Server) *OpenAPIHandler {
	return &OpenAPIHandler{servers: servers}
}

// ServeSpec handles GET /api/v1/openapi.json
func (h *OpenAPIHandler) ServeSpec(c echo.Context) error {
	spec, err := convertSwagger2(swag.ReadDoc(docs.SwaggerInfo.InstanceName()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build OpenAPI document")
		return NewInternalError(c, "Failed to read API document")
	}
	spec.Servers = h.servers
	return c.JSON(http.StatusOK, spec)
}

func convertSwagger2(doc string, err error) (*OpenAPI3Spec, error) {
	if err != nil {
		return nil, err
	}

	var swagger2 map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &swagger2); err != nil {
		return nil, err
	}

	info, _ := swagger2["info"].(map[string]interface{})
	paths, _ := swagger2["paths"].(map[string]interface{})

	converted := make(map[string]interface{}, len(paths))
	for path, item := range paths {
		ops, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out := make(map[string]interface{}, len(ops))
		for method, op := range ops {
			if opMap, ok := op.(map[string]interface{}); ok {
				out[method] = convertOperation(opMap)
			} else {
				out[method] = op
			}
		}
		converted[path] = out
	}

	components := make(map[string]interface{})
	if secDefs, ok := swagger2["securityDefinitions"].(map[string]interface{}); ok {
		components["securitySchemes"] = secDefs
	}
	if definitions, ok := swagger2["definitions"].(map[string]interface{}); ok {
		components["schemas"] = rewriteRefs(definitions)
	}

	return &OpenAPI3Spec{
		OpenAPI:    "3.0.3",
		Info:       info,
		Paths:      converted,
		Components: components,
	}, nil
}

// convertOperation moves a body parameter into requestBody and wraps the
// remaining parameter types into schemas
func convertOperation(op map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(op))
	for key, value := range op {
		if key != "parameters" && key != "consumes" && key != "produces" {
			out[key] = rewriteRefs(value)
		}
	}

	params, _ := op["parameters"].([]interface{})
	var converted []interface{}
	for _, p := range params {
		param, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if param["in"] == "body" {
			out["requestBody"] = map[string]interface{}{
				"required": param["required"],
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": rewriteRefs(param["schema"]),
					},
				},
			}
			continue
		}
		converted = append(converted, convertParameter(param))
	}
	if len(converted) > 0 {
		out["parameters"] = converted
	}

	if responses, ok := out["responses"].(map[string]interface{}); ok {
		for code, r := range responses {
			resp, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			if schema, ok := resp["schema"]; ok {
				delete(resp, "schema")
				resp["content"] = map[string]interface{}{
					"application/json": map[string]interface{}{"schema": schema},
				}
			}
			responses[code] = resp
		}
	}
	return out
}

func convertParameter(param map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, field := range []string{"name", "in", "description", "required"} {
		if val, ok := param[field]; ok {
			out[field] = val
		}
	}

	schema := make(map[string]interface{})
	for _, field := range []string{"type", "format", "enum", "default", "minimum", "maximum", "items"} {
		if val, ok := param[field]; ok {
			schema[field] = rewriteRefs(val)
		}
	}
	if len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

// rewriteRefs points Swagger 2.0 definition references at components/schemas
func rewriteRefs(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if ref, ok := value.(string); ok && key == "$ref" {
				out[key] = strings.Replace(ref, "#/definitions/", "#/components/schemas/", 1)
				continue
			}
			out[key] = rewriteRefs(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = rewriteRefs(item)
		}
		return out
	default:
		return data
	}
}
