package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claudebridge/internal/api/middleware"
	"github.com/router-for-me/claudebridge/internal/config"
	"github.com/router-for-me/claudebridge/internal/runtime/executor"
	_ "github.com/router-for-me/claudebridge/internal/translator"
	"github.com/router-for-me/claudebridge/sdk/api/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExecutor struct {
	reloaded *config.Config
	calls    int
}

func (s *stubExecutor) Execute(_ context.Context, req executor.Request) (executor.Response, error) {
	s.calls++
	return executor.Response{Payload: []byte(`{"id":"msg_1","type":"message","model":"` + req.Model + `"}`)}, nil
}

func (s *stubExecutor) ExecuteStream(context.Context, executor.Request) (<-chan executor.StreamChunk, error) {
	out := make(chan executor.StreamChunk)
	close(out)
	return out, nil
}

func (s *stubExecutor) CountTokens(context.Context, executor.Request) (executor.Response, error) {
	return executor.Response{Payload: []byte(`{"input_tokens":3}`)}, nil
}

func (s *stubExecutor) Reload(cfg *config.Config) error {
	s.reloaded = cfg
	return nil
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...ServerOption) (*Server, *stubExecutor) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	exec := &stubExecutor{}
	return NewServer(config.NewHolder(cfg), exec, opts...), exec
}

func serve(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/health", "/healthz"} {
		t.Run(path, func(t *testing.T) {
			w := serve(s, http.MethodGet, path, "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"ok","service":"claudebridge"}`, w.Body.String())
		})
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name    string
		method  string
		path    string
		wantMsg string
	}{
		{"unknown path", http.MethodGet, "/v2/x", "Endpoint GET /v2/x not found"},
		{"unknown post", http.MethodPost, "/v1/chat/completions", "Endpoint POST /v1/chat/completions not found"},
		{"wrong method", http.MethodGet, "/v1/messages", "Endpoint GET /v1/messages not found"},
		{"alias disabled", http.MethodPost, "/messages", "Endpoint POST /messages not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.method, tt.path, "", nil)
			require.Equal(t, http.StatusNotFound, w.Code)
			body := gjson.Parse(w.Body.String())
			assert.Equal(t, "error", body.Get("type").String())
			assert.Equal(t, "not_found", body.Get("error.type").String())
			assert.Equal(t, tt.wantMsg, body.Get("error.message").String())
		})
	}
}

func TestMessagesRoute(t *testing.T) {
	s, exec := newTestServer(t, nil, WithRootMessagesAlias())
	body := `{"model":"claude-3-5-sonnet","max_tokens":16,"messages":[{"role":"user","content":"hi"}]}`

	for _, path := range []string{"/v1/messages", "/messages"} {
		w := serve(s, http.MethodPost, path, body, map[string]string{"x-api-key": "sk-test"})
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "claude-3-5-sonnet", gjson.Get(w.Body.String(), "model").String())
	}
	assert.Equal(t, 2, exec.calls)

	w := serve(s, http.MethodPost, "/v1/messages/count_tokens", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"input_tokens":3}`, w.Body.String())
}

func TestTranslationsRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := serve(s, http.MethodGet, "/v1/translations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "pairs").String(), "claude->openai")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	serve(s, http.MethodGet, "/health", "", nil)

	w := serve(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "claudebridge_http_requests_total")

	disabled := false
	cfg := config.Default()
	cfg.Metrics = &disabled
	s.UpdateConfig(cfg)
	defer middleware.SetMetricsEnabled(true)

	w = serve(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateConfig(t *testing.T) {
	s, exec := newTestServer(t, nil)

	next := config.Default()
	next.ModelFamily = "gpt"
	s.UpdateConfig(next)

	assert.Same(t, next, exec.reloaded)
	assert.Equal(t, "gpt", s.handlers.Config().ModelFamily)

	w := serve(s, http.MethodPost, "/v1/messages",
		`{"model":"claude-3","messages":[{"role":"user","content":"hi"}]}`,
		map[string]string{"Authorization": "Bearer sk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request_error", gjson.Get(w.Body.String(), "error.type").String())

	s.UpdateConfig(nil)
	assert.Equal(t, "gpt", s.handlers.Config().ModelFamily)
}

func TestRouterConfigurator(t *testing.T) {
	s, _ := newTestServer(t, nil, WithRouterConfigurator(func(e *gin.Engine, _ *handlers.BaseAPIHandler, _ *config.Config) {
		e.GET("/extra", func(c *gin.Context) { c.String(http.StatusOK, "extra") })
	}))
	w := serve(s, http.MethodGet, "/extra", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "extra", w.Body.String())
}
