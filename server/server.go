package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/mattekit/config"
	"github.com/chaos-io/mattekit/rembg"
)

var Version = "dev"

// NewRouter 创建路由
func NewRouter(cfg config.ServerConfig, compose config.ComposeConfig, log *zap.Logger) (*gin.Engine, error) {
	bg, err := compose.BackgroundColor()
	if err != nil {
		return nil, err
	}
	compositor, err := rembg.NewCompositor(compose.Backend, bg)
	if err != nil {
		return nil, err
	}
	handler := NewComposeHandler(compositor, cfg.MaxSize, compose.ResizeMask, log)

	gin.SetMode(cfg.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(log))
	r.MaxMultipartMemory = cfg.MaxSize

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": Version,
			"backend": compose.Backend,
		})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/composite", handler.Composite)
	}
	return r, nil
}

// Run 启动 HTTP 服务，ctx 结束时优雅关闭
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	r, err := NewRouter(cfg.Server, cfg.Compose, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("server shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
