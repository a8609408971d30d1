package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"convstore/internal/config"
	"convstore/internal/db"
)

func setupRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	return NewRouter(gdb, config.Config{AuthSecret: secret})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	}
	return w, envelope
}

func TestPing(t *testing.T) {
	r := setupRouter(t, "")
	w, _ := doJSON(t, r, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	r := setupRouter(t, "")

	// Create.
	w, env := doJSON(t, r, http.MethodPost, "/conversations", `{"title":"Demo","messages":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := env["data"].(map[string]any)["id"].(float64)
	require.EqualValues(t, 1, id)

	// Complete block 0.
	block := `{
		"block": {
			"request": {"role": "user", "content": "Hi"},
			"response": {"role": "assistant", "content": "Hello"},
			"model": {"provider_id": "openai", "model_id": "gpt-test"},
			"temperature": 0.7, "max_tokens": 100, "top_p": 1
		}
	}`
	w, _ = doJSON(t, r, http.MethodPut, "/conversations/1/blocks/0", block)
	require.Equal(t, http.StatusOK, w.Code)

	// Load.
	w, env = doJSON(t, r, http.MethodGet, "/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := env["data"].(map[string]any)
	require.Equal(t, "Demo", data["title"])
	msgs := data["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	require.Equal(t, "Hi", first["request"].(map[string]any)["content"])
	require.Equal(t, "Hello", first["response"].(map[string]any)["content"])

	// List.
	w, env = doJSON(t, r, http.MethodGet, "/conversations?search=demo", "")
	require.Equal(t, http.StatusOK, w.Code)
	listData := env["data"].(map[string]any)
	require.EqualValues(t, 1, listData["total"])
	require.Len(t, listData["items"].([]any), 1)

	// Delete, then a load is 404.
	w, _ = doJSON(t, r, http.MethodDelete, "/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/conversations/1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftEndpoints(t *testing.T) {
	r := setupRouter(t, "")

	w, _ := doJSON(t, r, http.MethodPost, "/conversations", `{"title":"Drafts","messages":[]}`)
	require.Equal(t, http.StatusOK, w.Code)

	draft := `{
		"block": {
			"request": {"role": "user", "content": "pending question"},
			"model": {"provider_id": "openai", "model_id": "gpt-test"},
			"temperature": 1, "max_tokens": 4096, "top_p": 1
		}
	}`
	w, _ = doJSON(t, r, http.MethodPut, "/conversations/1/blocks/0/draft", draft)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := doJSON(t, r, http.MethodGet, "/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	msgs := env["data"].(map[string]any)["messages"].([]any)
	require.Len(t, msgs, 1)
	_, hasResponse := msgs[0].(map[string]any)["response"]
	require.False(t, hasResponse)

	w, _ = doJSON(t, r, http.MethodDelete, "/conversations/1/blocks/0/draft", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, "/conversations/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, env["data"].(map[string]any)["messages"])
}

func TestGetConversationNotFound(t *testing.T) {
	r := setupRouter(t, "")
	w, _ := doJSON(t, r, http.MethodGet, "/conversations/99", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidConversationID(t *testing.T) {
	r := setupRouter(t, "")
	w, _ := doJSON(t, r, http.MethodGet, "/conversations/abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanupOrphansEndpoint(t *testing.T) {
	r := setupRouter(t, "")
	w, env := doJSON(t, r, http.MethodPost, "/maintenance/orphans", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := env["data"].(map[string]any)
	require.EqualValues(t, 0, data["removed_attachments"])
	require.EqualValues(t, 0, data["removed_system_prompts"])
}

func TestAuthRequired(t *testing.T) {
	secret := "test-secret"
	r := setupRouter(t, secret)

	// Ping stays open.
	w, _ := doJSON(t, r, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, w.Code)

	// No token.
	w, _ = doJSON(t, r, http.MethodGet, "/conversations", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "local",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	r := setupRouter(t, "")
	w, _ := doJSON(t, r, http.MethodGet, "/ping", "")
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, "caller-supplied", w2.Header().Get("X-Request-ID"))
}
