package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tunegraph/internal/platform/ctxutil"
)

func newTraceRouter(seen *ctxutil.TraceData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/healthz", func(c *gin.Context) {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			*seen = *td
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestAttachTraceContextKeepsInboundIDs(t *testing.T) {
	t.Parallel()

	var seen ctxutil.TraceData
	r := newTraceRouter(&seen)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req.Header.Set("X-Trace-Id", "trace-7")
	r.ServeHTTP(w, req)

	if seen.RequestID != "req-42" || seen.TraceID != "trace-7" {
		t.Fatalf("context ids: want=req-42/trace-7 got=%s/%s", seen.RequestID, seen.TraceID)
	}
	if got := w.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id: want=req-42 got=%s", got)
	}
}

func TestAttachTraceContextReplacesUnsafeIDs(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"too long":     strings.Repeat("a", maxInboundIDLen+1),
		"control char": "abc\x01def",
		"space":        "abc def",
	}
	for name, id := range cases {
		id := id
		t.Run(name, func(t *testing.T) {
			var seen ctxutil.TraceData
			r := newTraceRouter(&seen)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("X-Request-Id", id)
			r.ServeHTTP(w, req)

			if seen.RequestID == id || seen.RequestID == "" {
				t.Fatalf("request id: want generated got=%q", seen.RequestID)
			}
			if got := w.Header().Get("X-Request-Id"); got != seen.RequestID {
				t.Fatalf("X-Request-Id: want=%s got=%s", seen.RequestID, got)
			}
		})
	}
}
