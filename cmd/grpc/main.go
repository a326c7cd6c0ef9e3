package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-erp-sync/api/syncv1"
	"github.com/fekuna/omnipos-erp-sync/config"
	"github.com/fekuna/omnipos-erp-sync/internal/auth"
	"github.com/fekuna/omnipos-erp-sync/internal/erp"
	"github.com/fekuna/omnipos-erp-sync/internal/runner"
	"github.com/fekuna/omnipos-erp-sync/internal/shopify"
	"github.com/fekuna/omnipos-erp-sync/internal/synclog"
	"github.com/fekuna/omnipos-erp-sync/pkg/admin"
	"github.com/fekuna/omnipos-erp-sync/pkg/broker"
	"github.com/fekuna/omnipos-erp-sync/pkg/cache"
	"github.com/fekuna/omnipos-erp-sync/pkg/database/postgres"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/fekuna/omnipos-erp-sync/pkg/middleware"
	"github.com/fekuna/omnipos-erp-sync/pkg/search"
	"github.com/fekuna/omnipos-erp-sync/pkg/secret"

	invRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-erp-sync/internal/inventory/usecase"

	mapRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/mapping/repository"
	mapUCPkg "github.com/fekuna/omnipos-erp-sync/internal/mapping/usecase"

	mirRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/mirror/repository"
	mirUCPkg "github.com/fekuna/omnipos-erp-sync/internal/mirror/usecase"

	storeRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/store/repository"
	storeUCPkg "github.com/fekuna/omnipos-erp-sync/internal/store/usecase"

	jobH "github.com/fekuna/omnipos-erp-sync/internal/syncjob/handler"
	jobListenerPkg "github.com/fekuna/omnipos-erp-sync/internal/syncjob/listener"
	jobRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/syncjob/repository"
	jobUCPkg "github.com/fekuna/omnipos-erp-sync/internal/syncjob/usecase"

	logIndexerPkg "github.com/fekuna/omnipos-erp-sync/internal/synclog/indexer"
	logRepoPkg "github.com/fekuna/omnipos-erp-sync/internal/synclog/repository"
	logUCPkg "github.com/fekuna/omnipos-erp-sync/internal/synclog/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Credentials cipher
	key, err := secret.LoadKeyFromBase64(cfg.Security.EncryptionKey)
	if err != nil {
		appLogger.Fatal("Invalid ENCRYPTION_KEY", zap.Error(err))
	}
	cipher, err := secret.NewCipher(key)
	if err != nil {
		appLogger.Fatal("Could not initialize cipher", zap.Error(err))
	}

	// 4. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 5. Initialize Redis (job leases)
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 6. Initialize Elasticsearch (log dashboards, optional)
	var logIndexer synclog.Indexer
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch, sync logs will not be indexed", zap.Error(err))
	} else {
		idx := logIndexerPkg.NewElasticIndexer(esClient, cfg.Elastic.LogIndex)
		if err := idx.EnsureIndex(context.Background()); err != nil {
			appLogger.Warn("Could not create sync log index", zap.String("index", cfg.Elastic.LogIndex), zap.Error(err))
		}
		logIndexer = idx
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 7. Initialize Repositories and UseCases
	storeUC := storeUCPkg.NewStoreUseCase(storeRepoPkg.NewPGRepository(db), cipher, appLogger)
	mapUC := mapUCPkg.NewMappingUseCase(mapRepoPkg.NewPGRepository(db), appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepoPkg.NewPGRepository(db), appLogger)
	mirUC := mirUCPkg.NewMirrorUseCase(mirRepoPkg.NewPGRepository(db), appLogger)
	logUC := logUCPkg.NewSyncLogUseCase(logRepoPkg.NewPGRepository(db), logIndexer, appLogger)
	jobUC := jobUCPkg.NewSyncJobUseCase(jobRepoPkg.NewPGRepository(db), storeUC, redisClient, cfg.Sync.LockTTL, appLogger)

	// 8. Kafka producer for job-finished events
	var (
		publisher runner.Publisher
		producer  *broker.KafkaProducer
		consumer  *broker.KafkaConsumer
	)
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(&broker.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.EventTopic})
		publisher = producer
	}

	// 9. Sync runner
	syncRunner := runner.New(runner.Deps{
		Jobs:      jobUC,
		Logs:      logUC,
		Mappings:  mapUC,
		Inventory: invUC,
		Stores:    storeUC,
		Sources:   erp.NewFactory(cipher, cfg.Sync.ErpTimeout),
		Shopify:   shopify.NewFactory(cipher, cfg.Sync.ShopifyTimeout),
		Mirror:    mirUC,
		Publisher: publisher,
	}, runner.Config{
		Workers:        cfg.Sync.Workers,
		JobTimeout:     cfg.Sync.JobTimeout,
		RetryAttempts:  cfg.Sync.RetryAttempts,
		RetryBaseDelay: cfg.Sync.RetryBaseDelay,
		RetryMaxDelay:  cfg.Sync.RetryMaxDelay,
	}, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := jobUC.RecoverOrphans(ctx); err != nil {
		appLogger.Error("Failed to recover orphaned sync jobs", zap.Error(err))
	} else if n > 0 {
		appLogger.Warn("Failed orphaned sync jobs", zap.Int("count", n))
	}

	// 10. Background workers
	scheduler := runner.NewScheduler(storeUC, jobUC, syncRunner, runner.ScheduleConfig{
		Interval:   cfg.Sync.ScheduleInterval,
		Types:      cfg.Sync.ScheduleTypes,
		PruneAfter: cfg.Sync.PruneAfter,
		StaleAfter: cfg.Sync.StaleAfter,
	}, appLogger)
	go scheduler.Start(ctx)

	if cfg.Kafka.Enabled {
		consumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CommandTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		go jobListenerPkg.NewCommandListener(consumer, jobUC, syncRunner, appLogger).Start(ctx)
		appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.CommandTopic))
	}

	// 11. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		appLogger.Fatal("Failed to listen", zap.String("port", port), zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextInterceptor(auth.FromMetadata),
			middleware.LoggingInterceptor(appLogger),
		),
	)
	syncv1.RegisterSyncServiceServer(grpcServer, jobH.NewSyncHandler(jobUC, logUC, invUC, mirUC, syncRunner, appLogger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(syncv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	go func() {
		appLogger.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	// 12. Admin HTTP (health, metrics)
	adminServer := &http.Server{
		Addr: cfg.Server.AdminPort,
		Handler: admin.NewRouter(map[string]admin.Check{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Client.Ping(ctx).Err() },
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("Starting admin server", zap.String("addr", cfg.Server.AdminPort))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to serve admin HTTP", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 45*time.Second)
	defer stop()

	// Running jobs are finalized before their stores go away.
	err = multierr.Combine(
		adminServer.Shutdown(shutdownCtx),
		syncRunner.Shutdown(shutdownCtx),
	)
	if consumer != nil {
		err = multierr.Append(err, consumer.Close())
	}
	if producer != nil {
		err = multierr.Append(err, producer.Close())
	}
	err = multierr.Combine(err, redisClient.Close(), db.Close())
	if err != nil {
		appLogger.Error("Shutdown finished with errors", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
