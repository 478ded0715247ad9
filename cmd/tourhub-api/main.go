// cmd/tourhub-api/main.go
package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"tourhub/internal/pkg/apperr"
	"tourhub/internal/pkg/auth"
	"tourhub/internal/pkg/bootstrap"
	"tourhub/internal/pkg/database"
	"tourhub/internal/pkg/httpx"
	"tourhub/internal/pkg/idempotency"
	"tourhub/internal/pkg/mq"
	"tourhub/internal/pkg/push"
	"tourhub/internal/pkg/upload"
	bookingApp "tourhub/internal/service/booking/application"
	bookingDomain "tourhub/internal/service/booking/domain"
	"tourhub/internal/service/booking/domain/port"
	bookingInfra "tourhub/internal/service/booking/infrastructure"
	"tourhub/internal/service/booking/infrastructure/rule"
	bookingHTTP "tourhub/internal/service/booking/interfaces"
	catalogApp "tourhub/internal/service/catalog/application"
	catalogInfra "tourhub/internal/service/catalog/infrastructure"
	catalogHTTP "tourhub/internal/service/catalog/interfaces"
	identityApp "tourhub/internal/service/identity/application"
	identityInfra "tourhub/internal/service/identity/infrastructure"
	identityHTTP "tourhub/internal/service/identity/interfaces"
	"tourhub/internal/zookeeper"
)

const serviceName = "tourhub-api"

// main 函数是应用的"组装根"：加载配置，组装依赖，然后启动服务
func main() {
	if _, err := bootstrap.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(app bootstrap.AppCtx) error {
	cfg := app.Config
	tracer := otel.Tracer(serviceName)

	// 1. 数据库
	db, err := database.Open(database.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		return err
	}
	app.OnShutdown("mysql", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if cfg.Database.AutoMigrate {
		if err := migrate(db); err != nil {
			return err
		}
	}

	images := upload.NewStore(cfg.Upload.Dir, cfg.Upload.URLPrefix, cfg.Upload.MaxBytes)

	// 2. 账户与认证
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	identityService := identityApp.NewIdentityService(identityInfra.NewGormUserRepository(db), tokens, images,
		cfg.Auth.DefaultAdminEmail, tracer)
	if err := identityService.EnsureDefaultAdmin(app.Ctx, cfg.Auth.DefaultAdminPassword); err != nil {
		log.Warn().Err(err).Msg("⚠️ default administrator not ensured")
	}
	authMiddleware := auth.NewMiddleware(tokens, identityService)

	// 3. 推送中心
	hub := push.NewHub()
	app.Go(func(ctx context.Context) error {
		hub.Run(ctx)
		return nil
	})

	// 4. 预订
	// 配置了 Kafka 时事件先写入 Kafka，再由每个节点的转发器推送给本节点的连接；
	// 否则直接推送给本进程的连接
	pushPublisher := bookingInfra.NewPushEventPublisher(hub)
	publishers := bookingInfra.MultiPublisher{pushPublisher}
	if brokers := cfg.Infra.Kafka.Brokers; len(brokers) > 0 {
		writer := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.Topic)
		app.OnShutdown("kafka writer", func(context.Context) error { return writer.Close() })
		publishers = bookingInfra.MultiPublisher{bookingInfra.NewKafkaEventPublisher(writer)}

		reader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.Topic, serviceName+"-"+hub.NodeID())
		app.Go(bookingHTTP.NewEventRelay(reader, pushPublisher, tracer).Run)
	}

	locker, err := newTourLocker(app)
	if err != nil {
		return err
	}
	policy, err := rule.NewCELTransitionPolicy(cfg.Booking.TransitionRule)
	if err != nil {
		return errors.Wrap(err, "compile transition rule")
	}
	reactivation, err := bookingDomain.ParseReactivationPolicy(cfg.Booking.ReactivationPolicy)
	if err != nil {
		return err
	}
	bookingService := bookingApp.NewBookingService(bookingInfra.NewGormBookingRepository(db), locker, publishers,
		policy, reactivation, tracer)

	var idem *idempotency.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(app.Ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("⚠️ redis is unreachable, idempotency keys fail open until it recovers")
		}
		app.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
		idem = idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL)
	}

	// 5. 线路目录
	catalogService := catalogApp.NewCatalogService(catalogInfra.NewGormTourRepository(db), bookingService, images, tracer)

	// 6. 路由
	r := app.Router
	bookingHTTP.NewBookingHandler(bookingService, authMiddleware, idem).RegisterRoutes(r)
	catalogHTTP.NewCatalogHandler(catalogService, authMiddleware, cfg.Upload.MaxBytes).RegisterRoutes(r)
	identityHTTP.NewIdentityHandler(identityService, authMiddleware, cfg.Upload.MaxBytes).RegisterRoutes(r)

	r.Get("/api/ws", hub.Handler(func(req *http.Request) (int64, error) {
		p, err := authMiddleware.Resolve(req.Context(), req.URL.Query().Get("token"))
		if err != nil {
			return 0, err
		}
		return p.UserID, nil
	}))

	prefix := strings.TrimRight(cfg.Upload.URLPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(images.Root()))))
	mountNotFound(r)

	log.Info().
		Str("lock_backend", cfg.Booking.LockBackend).
		Str("reactivation_policy", string(reactivation)).
		Int("publishers", len(publishers)).
		Msg("✅ tourhub handlers registered")
	return nil
}

// migrate 按外键依赖顺序建表：users、tours、orders
func migrate(db *gorm.DB) error {
	for _, step := range []func(*gorm.DB) error{
		identityInfra.AutoMigrate,
		catalogInfra.AutoMigrate,
		bookingInfra.AutoMigrate,
	} {
		if err := step(db); err != nil {
			return errors.Wrap(err, "auto migrate")
		}
	}
	return nil
}

func newTourLocker(app bootstrap.AppCtx) (port.TourLocker, error) {
	cfg := app.Config
	if cfg.Booking.LockBackend != "zookeeper" {
		return bookingInfra.NoopTourLocker{}, nil
	}
	conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		return nil, err
	}
	app.OnShutdown("zookeeper", func(context.Context) error {
		conn.Close()
		return nil
	})
	return bookingInfra.NewZookeeperTourLocker(conn, cfg.Booking.LockTimeout), nil
}

func mountNotFound(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, req, apperr.NotFound("route %s not found", req.URL.Path))
	})
}
