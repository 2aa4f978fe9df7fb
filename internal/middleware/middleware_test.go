package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesrag/internal/pkg/errcode"
	"github.com/xxxsen/notesrag/internal/pkg/jwt"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(handlers...)
	engine.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey)+"|"+c.GetString(ContextRequestIDKey))
	})
	return engine
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("k")
	engine := newTestEngine(JWTAuth(secret))
	token, err := jwt.GenerateToken("stu-7", secret, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", errcode.ErrUnauthorized},
		{"wrong scheme", "Basic " + token, errcode.ErrUnauthorized},
		{"garbage", "Bearer abc", errcode.ErrUnauthorized},
		{"empty bearer", "Bearer   ", errcode.ErrUnauthorized},
		{"no separator", "Bearer" + token, errcode.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			engine.ServeHTTP(resp, req)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Equal(t, float64(tc.code), body["code"])
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "stu-7|", resp.Body.String())
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	engine := newTestEngine(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("X-Request-Id", "req-1")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, "req-1", resp.Header().Get("X-Request-Id"))
	require.Equal(t, "|req-1", resp.Body.String())

	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/who", nil))
	require.Len(t, resp.Header().Get("X-Request-Id"), 36)
}

func TestCORS(t *testing.T) {
	engine := newTestEngine(CORS([]string{"https://notes.example.com", " "}))

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Origin", "https://notes.example.com")
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Equal(t, "https://notes.example.com", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	engine.ServeHTTP(resp, req)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	open := newTestEngine(CORS(nil))
	resp = httptest.NewRecorder()
	open.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/who", nil))
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	token, reason := bearerToken("Bearer  abc.def ")
	require.Empty(t, reason)
	require.Equal(t, "abc.def", token)

	_, reason = bearerToken("")
	require.Equal(t, "missing authorization", reason)
	_, reason = bearerToken("Token abc")
	require.Equal(t, "invalid authorization", reason)
}
