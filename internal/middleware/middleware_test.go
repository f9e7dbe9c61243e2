package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/renalcare-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserID), "role": c.GetString(ContextUserRole)})
	})
	return r
}

func do(r http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	valid, err := tokens.Generate("42", "Admin")
	if err != nil {
		t.Fatal(err)
	}
	other, _ := utils.NewTokenIssuer("other-secret", time.Hour).Generate("42", "Admin")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + other, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	r := newRouter(AuthMiddleware(tokens))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			rec := do(r, h)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && !strings.Contains(rec.Body.String(), `"user":"42"`) {
				t.Errorf("claims not propagated: %s", rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	r := newRouter(AuthMiddleware(tokens), RequireRole("Admin"))

	admin, _ := tokens.Generate("1", "Admin")
	patient, _ := tokens.Generate("2", "Patient")

	if rec := do(r, http.Header{"Authorization": {"Bearer " + admin}}); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d", rec.Code)
	}
	if rec := do(r, http.Header{"Authorization": {"Bearer " + patient}}); rec.Code != http.StatusForbidden {
		t.Errorf("patient: status = %d, want 403", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	rec := do(r, nil)
	if len(rec.Header().Get(HeaderRequestID)) != 36 {
		t.Errorf("generated id = %q", rec.Header().Get(HeaderRequestID))
	}

	rec = do(r, http.Header{HeaderRequestID: {"abc-123"}})
	if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("propagated id = %q", got)
	}
}

func TestLoggerAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestID(), Logger(logger), Recovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	out := buf.String()
	for _, want := range []string{`"panic":"kaboom"`, `"status":500`, `"path":"/panic"`, `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s:\n%s", want, out)
		}
	}
}
