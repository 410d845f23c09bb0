package directory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/claude-code-chat/backend/internal/logging"
	chatService "github.com/zhouzirui/claude-code-chat/backend/internal/service/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/workspace"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatService.Service, string) {
	t.Helper()
	root := t.TempDir()
	store := chatService.NewService(chatService.Config{MaxMessages: 10, DefaultDirectory: root}, logging.Discard())
	h := New(workspace.NewManager(store, logging.Discard()), logging.Discard())

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, store, root
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChangeDirectory(t *testing.T) {
	r, store, root := setupRouter(t)

	resp := post(r, "/directory/change", `{"session_id":"s1","path":"project"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body changeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	want := filepath.Join(root, "project")
	assert.True(t, body.Success)
	assert.Equal(t, want, body.CurrentDirectory)
	assert.Equal(t, "s1", body.SessionID)
	assert.NotEmpty(t, body.Message)

	sess, err := store.GetOrCreate(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, want, sess.WorkingDirectory)
}

func TestChangeToFileFails(t *testing.T) {
	r, _, root := setupRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), nil, 0o644))

	resp := post(r, "/directory/change", `{"session_id":"s1","path":"f.txt"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body changeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, root, body.CurrentDirectory)
}

func TestChangeWithoutPath(t *testing.T) {
	r, _, root := setupRouter(t)

	resp := post(r, "/directory/change", `{}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body changeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, workspace.ErrPathRequired.Error(), body.Message)
	assert.Equal(t, root, body.CurrentDirectory)
	assert.NotEmpty(t, body.SessionID)
}

func TestInfoListsDirectory(t *testing.T) {
	r, _, root := setupRouter(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), nil, 0o644))

	resp := post(r, "/directory/info", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, root, body["current_directory"])
	assert.Equal(t, "s1", body["session_id"])
	assert.NotContains(t, body, "error")

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "src", first["name"])
	assert.Equal(t, true, first["is_directory"])
	assert.Equal(t, filepath.Join(root, "src"), first["path"])
}

func TestInfoEmptyDirectoryHasEmptyItems(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := post(r, "/directory/info", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"items":[]`)
}

func TestMalformedBody(t *testing.T) {
	r, _, _ := setupRouter(t)

	for _, path := range []string{"/directory/change", "/directory/info"} {
		resp := post(r, path, "{broken")
		assert.Equal(t, http.StatusInternalServerError, resp.Code, path)

		resp = post(r, path, "")
		assert.Equal(t, http.StatusInternalServerError, resp.Code, path)
		assert.Contains(t, resp.Body.String(), "invalid request body")
	}
}
