package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/agent"
	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/auth"
	"github.com/hrm8/assistant/internal/catalog"
	"github.com/hrm8/assistant/internal/llm"
	"github.com/hrm8/assistant/internal/mcp"
	"github.com/hrm8/assistant/internal/policy"
	"github.com/hrm8/assistant/internal/testutil"
)

var (
	casey       = actor.NewConsultant("c1", "casey@hrm8.test", "c1", "r1")
	companyUser = actor.NewCompanyUser("u-co1-user", "uma@acme.test", "co1", "USER")
	globalAdmin = actor.NewHRM8User("u-global", "grace@hrm8.test", "GLOBAL_ADMIN", "", nil)
)

type testEnv struct {
	handler http.Handler
	tokens  *auth.TokenService
	audit   *audit.Store
}

func newTestEnv(t *testing.T, provider llm.Provider, opts ...Option) *testEnv {
	t.Helper()
	st := testutil.NewDemoStore(t)
	auditStore := testutil.NewTestAuditStore(t)
	engine := policy.NewEngine(st, nil, auditStore)
	reg, err := catalog.NewRegistry(st, engine)
	require.NoError(t, err)
	exec := agent.NewExecutor(reg, engine, nil)
	orch := agent.NewOrchestrator(provider, exec, st, agent.Config{Model: "gpt-4o"})
	tokens := auth.NewTokenService(testutil.TestJWTSecret, "hrm8-test")

	opts = append([]Option{WithAuditStore(auditStore), WithMCPServer(mcp.NewHandler(exec))}, opts...)
	srv := NewServer(orch, exec, tokens, opts...)
	return &testEnv{handler: srv.Routes(), tokens: tokens, audit: auditStore}
}

func (e *testEnv) token(t *testing.T, a *actor.Actor) string {
	t.Helper()
	tok, err := e.tokens.IssueToken(a, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, a *actor.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, a))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"})

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/v1/health?detail=true", nil, nil)
	out := decode(t, rec)
	comp, _ := out["components"].(map[string]any)
	require.NotNil(t, comp)
	assert.Equal(t, "ok", comp["audit_store"])
	assert.Equal(t, "ok", comp["mcp"])
	assert.Equal(t, "disabled", comp["policy_overlay"])
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"})

	rec := env.do(t, http.MethodPost, "/v1/assistant/chat", nil, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	invalid := actor.NewHRM8User("u-r", "r@hrm8.test", "REGIONAL_LICENSEE", "", nil)
	rec = env.do(t, http.MethodPost, "/v1/assistant/chat", invalid, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "invalid_actor", out["error"])
	assert.Contains(t, out["message"], "assigned region")
}

func TestChatEndpoint(t *testing.T) {
	provider := &testutil.ToolCallMockProvider{Responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "get_my_commissions", Arguments: map[string]any{}}}},
		{Content: "You have three commissions."},
	}}
	env := newTestEnv(t, provider)

	rec := env.do(t, http.MethodPost, "/v1/assistant/chat", casey, map[string]any{"message": "my commissions?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp agent.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "You have three commissions.", resp.Answer)
	assert.Equal(t, "gpt-4o", resp.Model)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, "get_my_commissions", resp.ToolsUsed[0].Name)
	assert.True(t, resp.ToolsUsed[0].Success)

	entries, err := env.audit.List(context.Background(), audit.ListFilter{PerformedBy: "c1"})
	require.NoError(t, err)
	require.Len(t, entries, 1, "HIGH tool is audited")
	assert.Equal(t, "get_my_commissions", entries[0].Changes.ToolName)
}

func TestChatEndpoint_Errors(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai", Err: errors.New("upstream unavailable")})

	rec := env.do(t, http.MethodPost, "/v1/assistant/chat", casey, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "provider_error", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/v1/assistant/chat", casey, map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/chat", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+env.token(t, casey))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai", Content: "Three open jobs in London."})

	rec := env.do(t, http.MethodPost, "/v1/assistant/stream", casey, map[string]any{"message": "open jobs?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Three open jobs in London.", rec.Body.String())
	assert.True(t, rec.Flushed)

	rec = env.do(t, http.MethodPost, "/v1/assistant/stream", casey, map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "open jobs?"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamEndpoint_ErrorBeforeOutput(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai", Err: errors.New("upstream 502")})

	rec := env.do(t, http.MethodPost, "/v1/assistant/stream", casey, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "provider_error", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/v1/assistant/stream", casey, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamEndpoint_OverOpenAICompatibleServer(t *testing.T) {
	upstream := testutil.NewOpenAICompatibleServer("streamed from upstream", 0, 0)
	t.Cleanup(upstream.Close)
	provider, err := llm.NewProvider("gpt-4o", llm.ProviderConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: upstream.URL})
	require.NoError(t, err)
	env := newTestEnv(t, provider)

	rec := env.do(t, http.MethodPost, "/v1/assistant/stream", casey, map[string]any{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "streamed from upstream", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/assistant/chat", casey, map[string]any{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "streamed from upstream", decode(t, rec)["answer"])
}

func TestToolsEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"})

	names := func(a *actor.Actor) []string {
		rec := env.do(t, http.MethodGet, "/v1/assistant/tools", a, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Tools []toolInfo `json:"tools"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		var n []string
		for _, ti := range out.Tools {
			n = append(n, ti.Name)
		}
		return n
	}

	consultantTools := names(casey)
	assert.Contains(t, consultantTools, "get_my_quick_stats")
	assert.Contains(t, consultantTools, agent.BatchToolName)

	companyTools := names(companyUser)
	assert.NotContains(t, companyTools, "get_my_quick_stats")
	assert.NotContains(t, companyTools, "search_consultants")
	assert.Contains(t, companyTools, "get_dashboard_overview")
}

func TestAuditEndpoints(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"})
	require.NoError(t, env.audit.Write(context.Background(), &audit.Entry{
		EntityType:  audit.EntityTypeToolExecution,
		EntityID:    "get_job_details",
		PerformedBy: "c1",
		Changes:     audit.Changes{ToolName: "get_job_details", Sensitivity: "HIGH", Success: true},
	}))

	rec := env.do(t, http.MethodGet, "/v1/audit", casey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/audit?tool=get_job_details", globalAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Entries []audit.Entry `json:"entries"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	id := list.Entries[0].ID

	rec = env.do(t, http.MethodGet, "/v1/audit/"+id, globalAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/audit/"+id+"/verify", globalAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = env.do(t, http.MethodGet, "/v1/audit/aud_missing", globalAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/audit?from=yesterday", globalAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMCPEndpoint(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"})
	rec := env.do(t, http.MethodPost, "/mcp", casey, map[string]any{"jsonrpc": "2.0", "method": "tools/list", "id": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "get_my_quick_stats")

	rec = env.do(t, http.MethodPost, "/mcp", nil, map[string]any{"jsonrpc": "2.0", "method": "tools/list", "id": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"}, WithRateLimiter(NewRateLimiter(0.001, 2)))

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/v1/assistant/tools", casey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/v1/assistant/tools", casey, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = env.do(t, http.MethodGet, "/v1/assistant/tools", globalAdmin, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other actors are unaffected")
}

func TestCORSMiddleware(t *testing.T) {
	env := newTestEnv(t, &testutil.MockProvider{ProviderName: "openai"}, WithCORSOrigins([]string{"https://app.hrm8.test"}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/assistant/chat", nil)
	req.Header.Set("Origin", "https://app.hrm8.test")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.hrm8.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
