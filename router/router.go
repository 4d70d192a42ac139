package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router is the HTTP entry point the stats API mounts its routes on.
type Router interface {
	http.Handler
	Group(path string) RouterGroup
}

// RouterGroup registers handlers under a path prefix. The stats API is
// read-only, so GET is the only method a group needs to expose.
type RouterGroup interface {
	GET(path string, handlers ...gin.HandlerFunc)
}

// Context is the per-request handler context.
type Context = gin.Context

type ginRouter struct {
	engine *gin.Engine
}

type ginRouterGroup struct {
	group *gin.RouterGroup
}

// NewRouter returns a Router backed by gin, running in release mode.
func NewRouter() Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.Default()
	return &ginRouter{engine: engine}
}

func (r *ginRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *ginRouter) Group(path string) RouterGroup {
	return &ginRouterGroup{group: r.engine.Group(path)}
}

func (g *ginRouterGroup) GET(path string, handlers ...gin.HandlerFunc) {
	g.group.GET(path, handlers...)
}
