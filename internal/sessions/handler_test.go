package sessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/callroom/broker/internal/auth"
	"github.com/callroom/broker/internal/middleware"
	"github.com/callroom/broker/internal/providers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, verifier *auth.Verifier) (*gin.Engine, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc, nil)

	r := gin.New()
	api := r.Group("/api")
	h.Register(api.Group("/sessions", middleware.Auth(verifier)))
	api.GET("/providers", h.ListProviders)
	return r, f
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func createViaHTTP(t *testing.T, r http.Handler) map[string]any {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]string{
		"user_id":      "u1",
		"user_name":    "Alice",
		"session_name": "Weekly sync",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, env.Success)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestHandlerCreateAcceptsAliases(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	data := createViaHTTP(t, r)

	require.Equal(t, "u1", data["user_id"])
	require.Equal(t, "host", data["role"])
	require.Equal(t, "agora", data["provider"])
	require.NotEmpty(t, data["token"])
	require.NotEmpty(t, data["channel_name"])
	require.Equal(t, "rtm-u1", data["rtm_token"])
	require.EqualValues(t, 86400, data["expires_in"])

	session := data["session"].(map[string]any)
	require.Equal(t, "Weekly sync", session["title"])
	require.Equal(t, "active", session["status"])
	require.Len(t, data["participants"], 1)
}

func TestHandlerCreateNumericUserID(t *testing.T) {
	r, f := newTestRouter(t, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]any{
		"user_id": 12345, "user_name": "Alice",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "12345", data["user_id"])
	require.Equal(t, "12345", data["session"].(map[string]any)["host_id"])
	require.Equal(t, providers.UIDSubject(12345), f.agora.lastCall().subject)

	id := data["session_id"].(string)
	w, env = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/join", map[string]any{
		"userId": 777, "userName": "Bob",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.Equal(t, providers.UIDSubject(777), f.agora.lastCall().subject)

	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/end", map[string]any{"user_id": 12345}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerRejectsMalformedUserID(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	for _, id := range []any{-1, 1.5, 1 << 33, true, []string{"u1"}} {
		w, env := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]any{
			"user_id": id, "user_name": "Alice",
		}, "")
		require.Equal(t, http.StatusBadRequest, w.Code, "%v", id)
		require.False(t, env.Success)
	}
}

func TestHandlerCreateAcceptsCamelCase(t *testing.T) {
	r, f := newTestRouter(t, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]string{
		"hostId": "u1", "hostName": "Alice", "sessionName": "Standup",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "u1", data["user_id"])
	require.Equal(t, "Standup", data["session"].(map[string]any)["title"])
	require.Equal(t, providers.AccountSubject("u1"), f.agora.lastCall().subject)
}

func TestHandlerCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]string{"host_id": "u1"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "host name")
}

func TestHandlerCreateUnknownProvider(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/create", map[string]string{
		"host_id": "u1", "host_name": "Alice", "provider": "twilio",
	}, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlerGetSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	id := createViaHTTP(t, r)["session_id"].(string)

	w, env := doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, id, data["id"])
	require.Equal(t, "u1", data["host_id"])
	require.Len(t, data["participants"], 1)

	w, _ = doJSON(t, r, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerJoinLeaveEnd(t *testing.T) {
	r, f := newTestRouter(t, nil)
	id := createViaHTTP(t, r)["session_id"].(string)

	w, env := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/join", map[string]string{
		"user_id": "u2", "user_name": "Bob", "role": "host",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var joined map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	require.Equal(t, "participant", joined["role"])
	require.Len(t, joined["participants"], 2)

	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/leave", map[string]string{"user_id": "u2"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/leave", map[string]string{"user_id": "u2"}, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/end", map[string]string{"user_id": "u2"}, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w, env = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/end", map[string]string{"user_id": "u1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var ended map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &ended))
	require.Equal(t, "ended", ended["status"])
	require.NotNil(t, ended["ended_at"])
	require.Equal(t, 1, f.notifier.count("session-ended"))

	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/join", map[string]string{
		"user_id": "u3", "user_name": "Carol",
	}, "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerInvalidJSON(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/create", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerBearerAuth(t *testing.T) {
	v := auth.NewVerifier("secret")
	r, _ := newTestRouter(t, v)
	body := map[string]string{"host_id": "u1", "host_name": "Alice"}

	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/create", body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := v.Issue("u2", "Bob", time.Minute)
	require.NoError(t, err)
	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/create", body, other)
	require.Equal(t, http.StatusForbidden, w.Code)

	own, err := v.Issue("u1", "Alice", time.Minute)
	require.NoError(t, err)
	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/create", body, own)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestHandlerListProviders(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w, env := doJSON(t, r, http.MethodGet, "/api/providers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	require.Equal(t, "agora", list[0]["name"])
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusFor(invalid("x")))
	require.Equal(t, http.StatusNotFound, StatusFor(ErrSessionNotFound))
	require.Equal(t, http.StatusConflict, StatusFor(ErrDuplicateParticipant))
	require.Equal(t, http.StatusForbidden, StatusFor(ErrNotHost))
	require.Equal(t, http.StatusServiceUnavailable, StatusFor(ErrProviderUnavailable))
	require.Equal(t, http.StatusInternalServerError, StatusFor(storeErr("op", http.ErrServerClosed)))
}
