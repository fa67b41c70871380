package restservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/internal/core/application"
	interfaces "github.com/vault-network/vault/internal/interface"
	"github.com/vault-network/vault/internal/metrics"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type service struct {
	config Config
	appSvc application.Service
	server *http.Server
}

func NewService(svcConfig Config, appSvc application.Service) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if appSvc == nil {
		return nil, fmt.Errorf("missing app service")
	}

	server := &http.Server{
		Addr:    svcConfig.address(),
		Handler: newRouter(svcConfig, appSvc),
	}
	return &service{svcConfig, appSvc, server}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("rest server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	//nolint:all
	s.server.Shutdown(ctx)
	log.Info("stopped rest server")

	s.appSvc.Stop()
	log.Info("stopped app service")
}

func newRouter(cfg Config, appSvc application.Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors(cfg.CorsOrigins))

	if cfg.EnableMetrics {
		metrics.RegisterMetrics()
		router.Use(metrics.HTTPMiddleware())
		router.GET("/metrics", metrics.Handler())
	}

	h := &handler{appSvc}
	router.GET("/healthz", h.health)

	v1 := router.Group("/v1")
	v1.GET("/info", h.getInfo)
	v1.GET("/fees", h.getFeeRates)
	v1.POST("/fees/estimate", h.estimatePeginFee)
	v1.POST("/allocation", h.planAllocation)
	v1.POST("/pegin", h.buildPeginTx)

	deposits := v1.Group("/deposits")
	deposits.POST("", h.startDeposit)
	deposits.GET("", h.listDeposits)
	deposits.GET("/:id", h.getDeposit)
	deposits.GET("/:id/events", h.streamDeposit)
	deposits.POST("/:id/retry", h.retryDeposit)
	deposits.GET("/:id/artifacts", h.getArtifacts)
	deposits.POST("/:id/artifacts/confirm", h.confirmArtifacts)
	deposits.POST("/:id/close", h.closeDeposit)

	return router
}

func cors(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(origin) > 0 && (allowAll || slices.Contains(origins, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
