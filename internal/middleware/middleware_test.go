package middleware_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SscSPs/payment_ledger/internal/auditcontext"
	"github.com/SscSPs/payment_ledger/internal/core/domain"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestActorMiddleware(t *testing.T) {
	var seen domain.Actor
	r := gin.New()
	r.Use(middleware.ActorMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen = auditcontext.ActorFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name string
		id   string
		kind string
		want domain.Actor
	}{
		{name: "no headers", want: domain.AnonymousActor},
		{name: "admin", id: "admin-1", kind: "admin", want: domain.Actor{ID: "admin-1", Kind: domain.ActorAdmin}},
		{name: "member", id: "member-1", kind: "member", want: domain.Actor{ID: "member-1", Kind: domain.ActorMember}},
		{name: "system is downgraded", id: "intruder", kind: "system", want: domain.Actor{ID: "intruder", Kind: domain.ActorMember}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.id != "" {
				req.Header.Set(middleware.HeaderActorID, tc.id)
				req.Header.Set(middleware.HeaderActorKind, tc.kind)
			}
			assert.Equal(t, http.StatusOK, serve(r, req).Code)
			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestRequireAdmin_AnonymousCallerIsUnauthorized(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ActorMiddleware())
	r.POST("/admin", middleware.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set(middleware.HeaderActorID, "member-1")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set(middleware.HeaderActorID, "admin-1")
	req.Header.Set(middleware.HeaderActorKind, "admin")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	var received []byte
	r := gin.New()
	r.POST("/webhooks/:provider", middleware.WebhookSignature("secret"), func(c *gin.Context) {
		received, _ = io.ReadAll(c.Request.Body)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/processor", bytes.NewReader(body))
	req.Header.Set(middleware.HeaderWebhookSignature, middleware.Sign("secret", body))
	require.Equal(t, http.StatusOK, serve(r, req).Code)
	assert.Equal(t, body, received)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/processor", bytes.NewReader(body))
	req.Header.Set(middleware.HeaderWebhookSignature, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestWebhookSignature_DisabledWithoutSecret(t *testing.T) {
	r := gin.New()
	r.POST("/", middleware.WebhookSignature(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRateLimit(t *testing.T) {
	rate, err := limiter.NewRateFromFormatted("1-M")
	require.NoError(t, err)
	r := gin.New()
	r.GET("/", middleware.RateLimit(limiter.New(memory.NewStore(), rate)), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}
