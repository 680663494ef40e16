// Package control 提供 HTTP 控制面：健康检查、运行状态查询与指令注入。
// 指令只进入队列，由事件循环取出执行；处理函数不直接触碰策略。
package control

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/core/model"
)

var validActions = map[model.CommandAction]bool{
	model.CommandSet:    true,
	model.CommandPause:  true,
	model.CommandResume: true,
	model.CommandFlat:   true,
	model.CommandStop:   true,
}

// Server 控制面服务
type Server struct {
	cfg     config.ControlConfig
	router  *gin.Engine
	logger  *zap.Logger
	cmds    chan model.Command
	limiter *rate.Limiter

	// status 最近一次发布的运行状态
	status atomic.Value
	// rejected 因队列满被拒绝的指令数
	rejected atomic.Int64
}

// NewServer 创建控制面服务
func NewServer(cfg config.ControlConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		router:  gin.New(),
		logger:  logger.Named("control"),
		cmds:    make(chan model.Command, max(cfg.QueueSize, 1)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
	s.router.Use(gin.Recovery(), s.rateLimit())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/commands", s.handleCommand)
}

// rateLimit 全局令牌桶限流
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	v := s.status.Load()
	if v == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status not published yet"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd model.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validActions[cmd.Action] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + string(cmd.Action)})
		return
	}
	select {
	case s.cmds <- cmd:
		s.logger.Info("指令入队", zap.String("strategy", cmd.Strategy), zap.String("action", string(cmd.Action)))
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
	default:
		s.rejected.Add(1)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
	}
}

// Handler 返回 HTTP 处理器（测试用）
func (s *Server) Handler() http.Handler { return s.router }

// Commands 待执行指令
func (s *Server) Commands() <-chan model.Command { return s.cmds }

// Publish 发布最新运行状态，v 需可 JSON 序列化且发布后不再修改
func (s *Server) Publish(v any) { s.status.Store(v) }

// Rejected 因队列满被拒绝的指令数
func (s *Server) Rejected() int64 { return s.rejected.Load() }

// Run 监听并服务，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("控制面已启动", zap.String("listen", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
