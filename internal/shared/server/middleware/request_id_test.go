package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWithRequestID(t *testing.T, header string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("X-Request-Id", header)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return seen, resp.Header().Get("X-Request-Id")
}

func TestRequestIDPropagatesCallerID(t *testing.T) {
	seen, echoed := serveWithRequestID(t, "req-abc")
	if seen != "req-abc" || echoed != "req-abc" {
		t.Fatalf("expected req-abc, got context=%q header=%q", seen, echoed)
	}
}

func TestRequestIDReplacesInvalidIDs(t *testing.T) {
	for _, in := range []string{"", "has space", strings.Repeat("a", 200)} {
		seen, echoed := serveWithRequestID(t, in)
		if seen == "" || seen == in || seen != echoed {
			t.Fatalf("input %q: expected a fresh id, got context=%q header=%q", in, seen, echoed)
		}
	}
}
