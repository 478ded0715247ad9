// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/logger"
	"tourhub/internal/pkg/metrics"
	"tourhub/internal/pkg/nacos"
	"tourhub/internal/pkg/tracing"
)

// AppCtx 是注册路由时可以使用的运行时上下文
type AppCtx struct {
	// Ctx 在收到退出信号时取消
	Ctx    context.Context
	Router chi.Router
	Config *Config
	// Nacos 在未配置注册中心时为 nil
	Nacos *nacos.Client

	lifecycle *lifecycle
}

// Go 启动一个随服务一起退出的后台任务。任务返回错误会触发整个服务关停
func (a AppCtx) Go(fn func(ctx context.Context) error) {
	a.lifecycle.group.Go(func() error { return fn(a.lifecycle.ctx) })
}

// OnShutdown 注册一个关停钩子，钩子按注册的相反顺序执行
func (a AppCtx) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.lifecycle.push(name, fn)
}

// AppInfo 包含了启动服务所需的特定信息
type AppInfo struct {
	ServiceName      string
	RegisterHandlers func(appCtx AppCtx) error
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

type lifecycle struct {
	ctx     context.Context
	group   *errgroup.Group
	closers []closer
}

func (l *lifecycle) push(name string, fn func(ctx context.Context) error) {
	l.closers = append(l.closers, closer{name: name, fn: fn})
}

// shutdown 按后进先出的顺序执行关停钩子
func (l *lifecycle) shutdown(ctx context.Context) {
	for i := len(l.closers) - 1; i >= 0; i-- {
		c := l.closers[i]
		if err := c.fn(ctx); err != nil {
			log.Error().Err(err).Str("component", c.name).Msg("❌ shutdown step failed")
			continue
		}
		log.Info().Str("component", c.name).Msg("component shut down")
	}
}

// NewRouter 创建带有通用中间件和运维端点的路由器
func NewRouter(serviceName string, cfg *Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		httpx.Observe(serviceName),
		httpx.SecurityHeaders,
	)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// StartService 封装了服务的通用启动和优雅关停逻辑
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Setup(info.ServiceName, cfg.Log.Level, cfg.Log.Pretty)

	if err := run(info, cfg); err != nil {
		log.Fatal().Err(err).Str("service", info.ServiceName).Msg("service exited with error")
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

func run(info AppInfo, cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	lc := &lifecycle{ctx: gctx, group: group}

	// 1. Tracer 最先初始化，最后关闭，确保缓冲的 span 都被发送出去
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "initialize tracer provider")
	}
	lc.push("tracer", tp.Shutdown)

	// 2. 注册中心（可选）
	var namingClient *nacos.Client
	if cfg.Infra.Nacos.Register && cfg.Infra.Nacos.ServerAddrs != "" {
		serverConfigs, err := nacos.ParseServerAddrs(cfg.Infra.Nacos.ServerAddrs)
		if err != nil {
			lc.shutdown(context.Background())
			return err
		}
		namingClient, err = nacos.NewNacosClientWithConfigs(serverConfigs, nacos.NewClientConfig(cfg.Infra.Nacos.Namespace), cfg.Infra.Nacos.Group)
		if err != nil {
			lc.shutdown(context.Background())
			return err
		}
		lc.push("nacos", func(context.Context) error {
			namingClient.Close()
			return nil
		})
	}

	// 3. 业务路由与依赖
	router := NewRouter(info.ServiceName, cfg)
	appCtx := AppCtx{Ctx: gctx, Router: router, Config: cfg, Nacos: namingClient, lifecycle: lc}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			lc.shutdown(context.Background())
			return errors.Wrap(err, "register handlers")
		}
	}

	// 4. HTTP Server
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	lc.push("http server", server.Shutdown)
	group.Go(func() error {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})

	// 5. 服务注册放在最后，关停时最先注销
	if namingClient != nil {
		ip, err := GetOutboundIP()
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ cannot resolve outbound ip, skipping nacos registration")
		} else if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			log.Warn().Err(err).Msg("⚠️ nacos registration failed")
		} else {
			lc.push("nacos registration", func(context.Context) error {
				return namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port)
			})
		}
	}

	// 6. 优雅关停：等待信号或任一后台任务失败
	group.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		lc.shutdown(shutdownCtx)
		return nil
	})
	return group.Wait()
}
