// Package httpapi wires the gin router for the import wizard API.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pipeline-crm/internal/common/config"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/http/handlers"
	"pipeline-crm/internal/http/middleware"
	"pipeline-crm/internal/wizard"
)

func Router(cfg config.ServerConfig, sessions *wizard.Manager, results handlers.ResultReader, stages wizard.StageLister, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Sessions: sessions,
		Results:  results,
		Stages:   stages,
		Logger:   log,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/import/template", h.Template)

		api.POST("/import/sessions", h.OpenSession)
		api.GET("/import/sessions/:id", h.GetSession)
		api.POST("/import/sessions/:id/upload", h.Upload)
		api.POST("/import/sessions/:id/stage", h.SelectStage)
		api.POST("/import/sessions/:id/start", h.Start)
		api.POST("/import/sessions/:id/previous", h.Previous)
		api.DELETE("/import/sessions/:id", h.CloseSession)

		api.GET("/pipelines/:id/stages", h.ListStages)

		api.GET("/outreach/batches/:batchId/results", h.BatchResults)
		api.GET("/outreach/batches/:batchId/results.csv", h.ExportBatchResults)
		api.POST("/outreach/webhook", h.Webhook)
	}

	return r
}
