package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(name string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, name) }
}

func do(e *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()

	orders := NewDomainGroup("purchase-orders", "/purchase-orders").
		GET("", ok("list")).
		POST("", ok("create")).
		GET("/:id", ok("get")).
		PATCH("/:id/charges", ok("charges"))
	lines := orders.Group("lines", "/:id/lines")
	lines.PUT("/:line_id", ok("update-line")).DELETE("/:line_id", ok("remove-line"))

	var tagged bool
	shipments := NewDomainGroup("inbound-shipments", "/inbound-shipments").
		Use(func(c *gin.Context) { tagged = true; c.Next() }).
		POST("/:id/allocation", ok("allocate"))

	NewRouter(engine, WithAPIVersion("v2")).Register(orders, shipments).Setup()

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v2/purchase-orders", "list"},
		{http.MethodPost, "/api/v2/purchase-orders", "create"},
		{http.MethodGet, "/api/v2/purchase-orders/42", "get"},
		{http.MethodPatch, "/api/v2/purchase-orders/42/charges", "charges"},
		{http.MethodPut, "/api/v2/purchase-orders/42/lines/7", "update-line"},
		{http.MethodDelete, "/api/v2/purchase-orders/42/lines/7", "remove-line"},
	}
	for _, tt := range tests {
		w := do(engine, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.want, w.Body.String())
	}

	assert.False(t, tagged)
	assert.Equal(t, "allocate", do(engine, http.MethodPost, "/api/v2/inbound-shipments/9/allocation").Body.String())
	assert.True(t, tagged)

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/api/v1/purchase-orders").Code)
	assert.Equal(t, "purchase-orders", orders.Name())
	assert.Equal(t, "/inbound-shipments", shipments.Prefix())
}

func TestRouter_APIMiddleware(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", ok("health"))

	calls := 0
	NewRouter(engine, WithAPIMiddleware(func(c *gin.Context) { calls++; c.Next() })).
		Register(NewDomainGroup("incoterms", "/incoterms").GET("", ok("incoterms"))).
		Setup()

	do(engine, http.MethodGet, "/health")
	assert.Equal(t, 0, calls)

	w := do(engine, http.MethodGet, "/api/v1/incoterms")
	assert.Equal(t, "incoterms", w.Body.String())
	assert.Equal(t, 1, calls)
}

func TestDomainGroup_Routes(t *testing.T) {
	shipments := NewDomainGroup("inbound-shipments", "/inbound-shipments").
		GET("", ok("list")).
		POST("/:id/finalize", ok("finalize"))
	shipments.Group("costs", "/:id/costs").DELETE("/:cost_id", ok("remove-cost"))

	assert.Equal(t, []Route{
		{Group: "inbound-shipments", Method: http.MethodGet, Path: "/api/v1/inbound-shipments"},
		{Group: "inbound-shipments", Method: http.MethodPost, Path: "/api/v1/inbound-shipments/:id/finalize"},
		{Group: "costs", Method: http.MethodDelete, Path: "/api/v1/inbound-shipments/:id/costs/:cost_id"},
	}, shipments.Routes("/api/v1"))
}

func TestRouter_LogsMountedRoutes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	NewRouter(gin.New(), WithLogger(zap.New(core))).
		Register(NewDomainGroup("incoterms", "/incoterms").GET("", ok("incoterms"))).
		Setup()

	mounted := logs.FilterMessage("route mounted").All()
	require.Len(t, mounted, 1)
	assert.Equal(t, "/api/v1/incoterms", mounted[0].ContextMap()["path"])
	assert.Equal(t, 1, logs.FilterMessage("API routes mounted").Len())
}
