// Package router assembles the versioned API from per-resource route groups.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar mounts its routes under the API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Route describes one mounted endpoint
type Route struct {
	Group  string
	Method string
	Path   string
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
	logger     *zap.Logger
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the prefix, "v1" by default
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// WithAPIMiddleware adds middleware that runs for API routes only, not for
// /health or /swagger
func WithAPIMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.middleware = append(r.middleware, mw...) }
}

// WithLogger logs the mounted routes at startup
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter returns a Router for engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrars for Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts every registrar and returns the API group
func (r *Router) Setup() *gin.RouterGroup {
	api := r.engine.Group("/api/" + r.apiVersion)
	api.Use(r.middleware...)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
		if g, ok := reg.(*DomainGroup); ok {
			for _, rt := range g.Routes(api.BasePath()) {
				r.logger.Debug("route mounted",
					zap.String("group", rt.Group),
					zap.String("method", rt.Method),
					zap.String("path", rt.Path))
			}
		}
	}
	r.logger.Info("API routes mounted",
		zap.String("prefix", api.BasePath()),
		zap.Int("groups", len(r.registrars)))
	return api
}

// DomainGroup collects the routes of one resource, such as purchase orders
// or inbound shipments, before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []Route
	handlers   [][]gin.HandlerFunc
	children   []*DomainGroup
	middleware []gin.HandlerFunc
}

// NewDomainGroup starts a group mounted at prefix
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware for this group and its children
func (dg *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, mw...)
	return dg
}

func (dg *DomainGroup) add(method, p string, h []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, Route{Group: dg.name, Method: method, Path: p})
	dg.handlers = append(dg.handlers, h)
	return dg
}

func (dg *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.add(http.MethodGet, p, h)
}

func (dg *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.add(http.MethodPost, p, h)
}

func (dg *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.add(http.MethodPut, p, h)
}

func (dg *DomainGroup) PATCH(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.add(http.MethodPatch, p, h)
}

func (dg *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.add(http.MethodDelete, p, h)
}

// Group nests a child group, e.g. the lines of one purchase order
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	dg.children = append(dg.children, child)
	return child
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(dg.prefix, dg.middleware...)
	for i, rt := range dg.routes {
		g.Handle(rt.Method, rt.Path, dg.handlers[i]...)
	}
	for _, child := range dg.children {
		child.RegisterRoutes(g)
	}
}

// Routes lists the group's endpoints, children included, with full paths
// under base
func (dg *DomainGroup) Routes(base string) []Route {
	prefix := path.Join(base, dg.prefix)
	out := make([]Route, 0, len(dg.routes))
	for _, rt := range dg.routes {
		rt.Path = joinRoute(prefix, rt.Path)
		out = append(out, rt)
	}
	for _, child := range dg.children {
		out = append(out, child.Routes(prefix)...)
	}
	return out
}

func joinRoute(prefix, p string) string {
	if p == "" {
		return prefix
	}
	return path.Join(prefix, p)
}

// Name returns the group name
func (dg *DomainGroup) Name() string { return dg.name }

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string { return dg.prefix }
