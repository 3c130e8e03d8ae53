package router

import (
	"net/http"
	"strings"

	"github.com/benefit-next/internal/cache"
	"github.com/benefit-next/internal/config"
	adminhandlers "github.com/benefit-next/internal/http/handlers/admin"
	publichandlers "github.com/benefit-next/internal/http/handlers/public"
	"github.com/benefit-next/internal/logger"
	"github.com/benefit-next/internal/metrics"
	"github.com/benefit-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按会员侧/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	var limiterClient redis.UniversalClient
	if cache.Enabled() {
		limiterClient = cache.Client()
	}
	redeemRule := RateLimitRule{
		Prefix:        cache.BuildKey("rate:redeem"),
		WindowSeconds: cfg.Security.RedeemRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.RedeemRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.RedeemRateLimit.BlockSeconds,
		MessageKey:    "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
		r.Use(MetricsMiddleware())
		metricsPath := strings.TrimSpace(cfg.Metrics.Path)
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, gin.WrapH(metrics.Handler()))
	}

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 会员侧
		members := apiV1.Group("/members/:member_id")
		{
			members.GET("/benefits", publicHandler.ListMemberBenefits)
			members.GET("/benefits/stream", publicHandler.StreamMemberBenefits)
			members.GET("/redemptions", publicHandler.ListMemberRedemptions)
		}

		apiV1.POST("/benefits/:id/redeem",
			RateLimitMiddleware(limiterClient, redeemRule, KeyByIPAndJSONField("member_id")),
			publicHandler.RedeemBenefit,
		)
		apiV1.GET("/businesses/:business_id/redemptions", publicHandler.ListBusinessRedemptions)
		apiV1.GET("/stats", publicHandler.GetStats)

		// 管理端
		admin := apiV1.Group("/admin")
		{
			admin.GET("/benefits", adminHandler.ListBenefits)
			admin.GET("/benefits/:id", adminHandler.GetBenefit)
			admin.POST("/benefits", adminHandler.CreateBenefit)
			admin.PUT("/benefits/:id", adminHandler.UpdateBenefit)
			admin.POST("/benefits/:id/deactivate", adminHandler.DeactivateBenefit)
			admin.POST("/benefits/:id/reactivate", adminHandler.ReactivateBenefit)

			admin.POST("/maintenance/expire", adminHandler.RunExpireSweep)
			admin.POST("/maintenance/resync-counters", adminHandler.ResyncCounters)
			admin.POST("/businesses/:id/resync-counter", adminHandler.ResyncBusinessCounter)
		}
	}

	return r
}
