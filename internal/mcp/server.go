// Package mcp implements the Model Context Protocol: JSON-RPC 2.0 server for
// tools/list and tools/call, scoped to the authenticated actor.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/agent"
	"github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/requestctx"
	"github.com/hrm8/assistant/internal/tools"
)

var tracer = otel.Tracer("github.com/hrm8/assistant/internal/mcp")

const jsonrpcVersion = "2.0"

// JSON-RPC 2.0 types
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

type jsonrpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC 2.0 error codes
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

const maxBodyBytes = 1 << 20

// Handler serves tools/list and tools/call for the actor set on the request
// context. Every call goes through the executor, so access checks,
// redaction and auditing match the chat endpoints.
type Handler struct {
	exec *agent.Executor
}

// NewHandler creates an MCP handler over exec.
func NewHandler(exec *agent.Executor) *Handler {
	return &Handler{exec: exec}
}

// ServeHTTP handles POST /mcp JSON-RPC 2.0 requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRPCError(w, nil, codeInvalidRequest, "method must be POST")
		return
	}
	ctx, span := tracer.Start(r.Context(), "mcp.serve",
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
		))
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, codeParseError, "invalid JSON: "+err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if req.JSONRPC != jsonrpcVersion {
		writeRPCError(w, req.ID, codeInvalidRequest, "jsonrpc must be 2.0")
		return
	}
	a := requestctx.Actor(ctx)
	if a == nil {
		writeRPCError(w, req.ID, codeInvalidRequest, "unauthenticated")
		return
	}

	var resp *jsonrpcResponse
	switch req.Method {
	case "tools/list":
		resp = h.handleToolsList(ctx, a, req.ID)
	case "tools/call":
		resp = h.handleToolsCall(ctx, a, &req)
	default:
		resp = errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) allowed(ctx context.Context, a *actor.Actor) []tools.Definition {
	return h.exec.Engine().AllowedTools(ctx, h.exec.Registry(), a)
}

func (h *Handler) handleToolsList(ctx context.Context, a *actor.Actor, id any) *jsonrpcResponse {
	ctx, span := tracer.Start(ctx, "mcp.tools.list")
	defer span.End()

	defs := append(h.allowed(ctx, a), agent.BatchDeclaration())
	list := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		list = append(list, map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": d.Parameters,
		})
	}
	span.SetAttributes(attribute.Int("tools.count", len(list)))
	return &jsonrpcResponse{JSONRPC: jsonrpcVersion, ID: id, Result: map[string]any{"tools": list}}
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (h *Handler) handleToolsCall(ctx context.Context, a *actor.Actor, req *jsonrpcRequest) *jsonrpcResponse {
	ctx, span := tracer.Start(ctx, "mcp.tools.call")
	defer span.End()

	var params toolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "tool name is required")
	}
	span.SetAttributes(attribute.String("tool.name", params.Name))

	allowed := h.allowed(ctx, a)
	var (
		payload any
		success bool
	)
	if params.Name == agent.BatchToolName {
		calls, err := agent.ParseBatchCalls(params.Arguments)
		if err != nil {
			return errorResponse(req.ID, codeInvalidParams, err.Error())
		}
		batch, err := h.exec.ExecuteBatch(ctx, calls, a, allowed)
		if err != nil {
			return errorResponse(req.ID, codeInvalidParams, err.Error())
		}
		payload, success = batch, batch.Success
	} else {
		def, ok := find(allowed, params.Name)
		if !ok {
			return errorResponse(req.ID, codeServerError, fmt.Sprintf("Tool %s not found or not allowed for this user", params.Name))
		}
		res := h.exec.Execute(ctx, def, params.Arguments, a)
		payload, success = res, res.Success
	}

	text, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return errorResponse(req.ID, codeServerError, err.Error())
	}
	if !success {
		span.SetStatus(codes.Error, "tool failed")
	}
	return &jsonrpcResponse{JSONRPC: jsonrpcVersion, ID: req.ID, Result: map[string]any{
		"content": []map[string]string{{"type": "text", "text": string(text)}},
		"isError": !success,
	}}
}

func find(defs []tools.Definition, name string) (tools.Definition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return tools.Definition{}, false
}

func errorResponse(id any, code int, message string) *jsonrpcResponse {
	return &jsonrpcResponse{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: message}}
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(errorResponse(id, code, message))
}
