package httpapi

import (
	"tasktracker/pkg/config"
	"tasktracker/pkg/health"
	"tasktracker/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	health.Module,
	fx.Provide(NewEngine),
	fx.Invoke(registerHealthEndpoints),
)

type EngineParams struct {
	fx.In
	Config *config.Config
}

// NewEngine builds the gin engine every HTTP route is mounted on.
func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Logger(), middleware.Error())
	engine.HandleMethodNotAllowed = true

	if p.Config.Metrics.Enable {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return engine
}

func registerHealthEndpoints(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
}
