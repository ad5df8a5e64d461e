package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storecrm_backend/config"
	"github.com/mmdatafocus/storecrm_backend/handlers"
	"github.com/mmdatafocus/storecrm_backend/middlewares"
	"github.com/mmdatafocus/storecrm_backend/reports"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/staleguard"
	"github.com/mmdatafocus/storecrm_backend/storeapi"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := config.EnvString("PORT", defaultPort)
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Redis is optional: without it the cache stays off and view generations
	// are tracked in process.
	config.ConnectRedisWithRetry()
	defer config.CloseRedis()

	loc := config.StoreLocation()
	client := storeapi.NewClientFromEnv()
	svc := revenue.NewService(revenue.ServiceConfig{
		Aggregate: client,
		Daily:     client,
		Orders:    client,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().In(loc) },
	})
	deps := handlers.SeriesDeps{
		Builder:    reports.NewCachedBuilder(svc, logger),
		Guard:      staleguard.NewTracker(config.GetRedisDB(), logger),
		Location:   loc,
		BatchLimit: config.BatchConcurrency(),
	}

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.ViewIdHeader, middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationIdHeader)
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.TokenMiddleware())
	r.Use(middlewares.ViewMiddleware())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/api/stores/:id/revenue-series", handlers.RevenueSeriesHandler(deps))
	r.POST("/api/revenue-series/batch", handlers.BatchRevenueSeriesHandler(deps))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"field": "server", "port": port}).Info("revenue series service listening")

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
