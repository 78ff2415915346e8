// Package router owns the routing table from qualified tool names to
// domain services. The table is resolved once at construction; dispatch
// is a map lookup plus schema validation, never a prefix scan.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/gitpulse/internal/observability"
	"github.com/harun/gitpulse/internal/tracing"
	"github.com/harun/gitpulse/pkg/catalog"
	"github.com/harun/gitpulse/pkg/domains"
)

type route struct {
	service domains.Service
	action  string
	schema  *gojsonschema.Schema
}

// Router validates and dispatches tool calls to domain services.
type Router struct {
	catalog *catalog.Catalog
	routes  map[string]route
	logger  zerolog.Logger
}

// New builds the catalog from the given services and resolves the
// routing table. A catalog conflict or an uncompilable parameter
// schema is fatal.
func New(services ...domains.Service) (*Router, error) {
	sources := make([]catalog.ToolSource, len(services))
	for i, svc := range services {
		sources[i] = svc
	}

	cat, err := catalog.Build(sources...)
	if err != nil {
		return nil, err
	}

	routes := make(map[string]route, cat.Len())
	for _, svc := range services {
		for _, def := range svc.Tools() {
			qualified := catalog.QualifiedName(svc.Domain(), def.Name)
			schema, err := compileSchema(def)
			if err != nil {
				return nil, fmt.Errorf("failed to compile schema for %s: %w", qualified, err)
			}
			routes[qualified] = route{service: svc, action: def.Name, schema: schema}
		}
	}

	log.Info().Int("routes", len(routes)).Msg("Routing table resolved")

	return &Router{
		catalog: cat,
		routes:  routes,
		logger:  log.With().Str("component", "router").Logger(),
	}, nil
}

// Catalog returns the tool catalog backing this router.
func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog
}

// Dispatch routes one tool call to its domain service. The returned
// result always carries the request ID; errors are encoded in the
// result status, never returned, so the host can fold them back.
func (r *Router) Dispatch(ctx context.Context, req ToolCallRequest) ToolCallResult {
	domain, _, _ := catalog.SplitName(req.ToolName)

	ctx, span := tracing.StartSpan(ctx, "gitpulse.router", "router.dispatch",
		attribute.String("tool", req.ToolName),
		attribute.String("domain", string(domain)),
	)
	defer span.End()

	start := time.Now()
	result := r.dispatch(ctx, req)

	duration := time.Since(start)
	observability.RecordDispatch(req.ToolName, string(result.Status), duration)
	observability.RecordDispatchAudit(ctx, req.ToolName, tracing.GetConversationID(ctx), string(result.Status), map[string]interface{}{
		"request_id":  req.ID,
		"duration_ms": duration.Milliseconds(),
	})

	event := r.logger.Info()
	if result.Status != StatusSuccess {
		event = r.logger.Warn()
	}
	event.
		Str("tool", req.ToolName).
		Str("domain", string(domain)).
		Str("request_id", req.ID).
		Str("status", string(result.Status)).
		Dur("duration", duration).
		Msg("Dispatch complete")

	return result
}

func (r *Router) dispatch(ctx context.Context, req ToolCallRequest) ToolCallResult {
	rt, ok := r.routes[req.ToolName]
	if !ok {
		return ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       StatusInvalidCall,
			ErrorMessage: fmt.Sprintf("unknown tool: %s", req.ToolName),
		}
	}

	args := req.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArguments(rt.schema, args); err != nil {
		return ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       StatusInvalidCall,
			ErrorMessage: err.Error(),
		}
	}

	payload, err := rt.service.Invoke(ctx, rt.action, args)
	if err != nil {
		status := StatusDomainError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = StatusTransportError
		}
		return ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       status,
			ErrorMessage: err.Error(),
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ToolCallResult{
			RequestID:    req.ID,
			ToolName:     req.ToolName,
			Status:       StatusDomainError,
			ErrorMessage: fmt.Sprintf("failed to encode result: %v", err),
		}
	}

	return ToolCallResult{
		RequestID: req.ID,
		ToolName:  req.ToolName,
		Status:    StatusSuccess,
		Payload:   raw,
	}
}

// compileSchema generates a JSON Schema from the tool parameters.
func compileSchema(def catalog.ToolDefinition) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArguments(schema *gojsonschema.Schema, args map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("argument validation failed: %w", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			messages = append(messages, verr.String())
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(messages, "; "))
	}
	return nil
}
