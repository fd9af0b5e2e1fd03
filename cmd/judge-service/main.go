package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tutorjudge/internal/common/cache"
	commonmw "tutorjudge/internal/common/http/middleware"
	"tutorjudge/internal/common/mq"
	"tutorjudge/internal/common/ratelimit"
	"tutorjudge/internal/judge/backend"
	"tutorjudge/internal/judge/controller"
	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/internal/judge/repository"
	"tutorjudge/internal/judge/service"
	"tutorjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx := context.Background()

	var store cache.Cache
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(ctx, "init redis failed", zap.Error(err))
			return
		}
		store = redisCache
	} else {
		logger.Warn(ctx, "redis not configured, using in-process cache")
		store = cache.NewMemoryCache(appCfg.Execute.ResultCacheSize * 2)
	}
	defer func() {
		_ = store.Close()
	}()

	var publisher repository.StatusEventPublisher
	if len(appCfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.toMQConfig())
		if err != nil {
			logger.Error(ctx, "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = repository.NewMQStatusEventPublisher(producer, appCfg.Status.FinalTopic)
	}

	local, wasm, err := buildLocalBackend(ctx, appCfg.Local)
	if err != nil {
		logger.Error(ctx, "init local backend failed", zap.Error(err))
		return
	}
	if wasm != nil {
		defer func() {
			_ = wasm.Close(context.Background())
		}()
	}
	remote := backend.NewJudge0Client(appCfg.Judge0)
	if !remote.Configured() {
		logger.Warn(ctx, "judge0 api key not configured, every run uses the local fallback")
	}

	executeSvc, err := service.NewExecuteService(service.ExecuteConfig{
		Registry:      driver.DefaultRegistry(),
		Backend:       backend.NewFallback(remote, local),
		ResultCache:   cache.NewMemoryCache(appCfg.Execute.ResultCacheSize),
		ResultTTL:     appCfg.Execute.ResultTTL,
		MaxCodeBytes:  appCfg.Execute.MaxCodeBytes,
		MaxStdinBytes: appCfg.Execute.MaxStdinBytes,
	})
	if err != nil {
		logger.Error(ctx, "init execute service failed", zap.Error(err))
		return
	}

	statusRepo := repository.NewStatusRepository(store, appCfg.Status.TTL)
	submissionSvc, err := service.NewSubmissionService(service.SubmissionConfig{
		Executor:        executeSvc,
		StatusRepo:      statusRepo,
		Publisher:       publisher,
		WorkerPoolSize:  appCfg.Submission.WorkerPoolSize,
		TestParallelism: appCfg.Submission.TestParallelism,
		MaxTestCases:    appCfg.Submission.MaxTestCases,
		QueueWait:       appCfg.Submission.QueueWait,
		JobTimeout:      appCfg.Submission.JobTimeout,
		StatusTimeout:   appCfg.Status.Timeout,
	})
	if err != nil {
		logger.Error(ctx, "init submission service failed", zap.Error(err))
		return
	}

	limiter := ratelimit.NewFixedWindow(store, appCfg.RateLimit.Window, appCfg.Status.Timeout)
	httpServer := buildHTTPServer(appCfg, executeSvc, submissionSvc, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	submissionSvc.Wait()
}

func buildLocalBackend(ctx context.Context, cfg LocalConfig) (*backend.Local, *backend.WasmRuntime, error) {
	extra := map[model.Language]backend.Interpreter{
		model.JavaScript: backend.NewGojaInterpreter(cfg.MaxCallStack),
	}
	if len(cfg.WasmModules) == 0 {
		return backend.NewLocal(extra), nil, nil
	}
	wasm, err := backend.NewWasmRuntime(ctx, cfg.MemoryLimitPages, cfg.WasmModules...)
	if err != nil {
		return nil, nil, err
	}
	for lang, interp := range wasm.Interpreters() {
		if _, ok := extra[lang]; !ok {
			extra[lang] = interp
		}
	}
	return backend.NewLocal(extra), wasm, nil
}

func buildHTTPServer(cfg *AppConfig, executeSvc *service.ExecuteService, submissionSvc *service.SubmissionService, limiter *ratelimit.FixedWindow) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	policy := commonmw.RateLimitPolicy{
		Window:   cfg.RateLimit.Window,
		IPMax:    cfg.RateLimit.IPMax,
		RouteMax: cfg.RateLimit.RouteMax,
	}

	router.GET("/healthz", controller.Health)

	executeController := controller.NewExecuteController(executeSvc)
	router.POST("/api/execute",
		commonmw.RateLimitMiddleware(limiter, "execute", policy),
		executeController.Execute,
	)

	judgeController := controller.NewJudgeController(submissionSvc)
	api := router.Group("/api/v1/judge")
	api.POST("/submissions",
		commonmw.RateLimitMiddleware(limiter, "submit", policy),
		judgeController.Create,
	)
	api.GET("/submissions/:id", judgeController.GetStatus)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
