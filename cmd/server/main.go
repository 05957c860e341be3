package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fzheng/SigmaPilot/internal/advisor"
	"github.com/fzheng/SigmaPilot/internal/anomaly"
	"github.com/fzheng/SigmaPilot/internal/bot"
	"github.com/fzheng/SigmaPilot/internal/cache"
	"github.com/fzheng/SigmaPilot/internal/config"
	"github.com/fzheng/SigmaPilot/internal/db"
	"github.com/fzheng/SigmaPilot/internal/decision"
	"github.com/fzheng/SigmaPilot/internal/handler"
	"github.com/fzheng/SigmaPilot/internal/job"
	"github.com/fzheng/SigmaPilot/internal/provider"
	"github.com/fzheng/SigmaPilot/internal/repository"
	"github.com/fzheng/SigmaPilot/internal/service"
	"github.com/fzheng/SigmaPilot/internal/stream"
	"github.com/fzheng/SigmaPilot/internal/ticket"
	"github.com/fzheng/SigmaPilot/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/fzheng/SigmaPilot/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newTicketRepoFunc       = repository.NewTicketRepository
	newScoreRepoFunc        = repository.NewScoreRepository
	newFillRepoFunc         = repository.NewFillRepository
	newConversationRepoFunc = repository.NewConversationRepository

	newHyperProviderFunc = provider.NewHyperProvider
	newMarkServiceFunc   = service.NewMarkService
	newDeskServiceFunc   = service.NewDeskService
	newDetectorFunc      = anomaly.NewDetector
	newPublisherFunc     = stream.NewPublisher
	newManagerFunc       = ticket.NewManager
	newEngineFunc        = decision.NewEngine
	newBusFunc           = stream.NewBus

	newOpenAIClientFunc   = advisor.NewOpenAIClient
	newAdvisorServiceFunc = advisor.NewAdvisorService
	startTelegramBotFunc  = bot.StartTelegramBot

	newMarkPollerFunc   = job.NewMarkPoller
	newExpiryJobFunc    = job.NewExpiryJob
	newAnomalyTrainFunc = job.NewAnomalyTrainJob
	newMarkFeedFunc     = provider.NewMarkFeed

	startBusFunc = func(b *stream.Bus, ctx context.Context) {
		go func() {
			if err := b.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Stream bus stopped: %v", err)
			}
		}()
	}
	startMarkFeedFunc = func(f *provider.MarkFeed, ctx context.Context) {
		go func() {
			if err := f.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Mark feed stopped: %v", err)
			}
		}()
	}
	startMarkPollerFunc = func(j *job.MarkPoller, ctx context.Context) { go j.Start(ctx) }
	startExpiryJobFunc  = func(j *job.ExpiryJob, ctx context.Context) { go j.Start(ctx) }
	startAnomalyJobFunc = func(j *job.AnomalyTrainJob, ctx context.Context) { go j.Start(ctx) }

	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           SigmaPilot API
// @version         1.0
// @description     Address-scoped trading signal and ticket service with OpenTelemetry tracing.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
	ticketRepo := newTicketRepoFunc(db.Pool, tracer)
	scoreRepo := newScoreRepoFunc(db.Pool, tracer)
	fillRepo := newFillRepoFunc(db.Pool, tracer)
	convRepo := newConversationRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := ticketRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Marks: REST snapshots plus the optional websocket feed below
	hyper := newHyperProviderFunc(cfg.MarkSourceURL, tracer)
	markSvc := newMarkServiceFunc(tracer, hyper, cache.Client)
	deskSvc := newDeskServiceFunc(tracer, ticketRepo, scoreRepo, markSvc)

	var detector ticket.Detector
	var trainJob *job.AnomalyTrainJob
	if cfg.AnomalyEnabled {
		d := newDetectorFunc(cfg.AnomalyThreshold, cfg.AnomalyMinSamples)
		detector = d
		trainJob = newAnomalyTrainFunc(tracer, fillRepo, d, time.Duration(cfg.AnomalyTrainSecs)*time.Second)
	}

	streamCfg := stream.Config{
		ScoreStream:  cfg.ScoreStream,
		FillStream:   cfg.FillStream,
		SignalStream: cfg.SignalStream,
		CloseStream:  cfg.CloseStream,
		Group:        cfg.StreamGroup,
		MaxLen:       cfg.StreamMaxLen,
		Block:        time.Duration(cfg.StreamBlockMS) * time.Millisecond,
	}
	pub := newPublisherFunc(cache.Client, tracer, streamCfg)

	// Advisor is optional; without it the bot keeps its query commands
	// and /ask reports itself unavailable.
	var deskAdvisor bot.Advisor
	if cfg.OpenAIAPIKey != "" {
		llm := newOpenAIClientFunc(cfg.OpenAIAPIKey)
		deskAdvisor = newAdvisorServiceFunc(tracer, llm, deskSvc, markSvc, convRepo, cfg.OpenAIModel, cfg.AdvisorMaxHistory)
		log.Println("Desk advisor service enabled")
	}

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	tgBot := startTelegramBotFunc(deskSvc, deskAdvisor)

	manager := newManagerFunc(tracer, ticketRepo, fillRepo, markSvc, detector, pub, tgBot)
	if db.Pool != nil {
		if err := manager.Recover(ctx); err != nil {
			log.Fatalf("failed to recover live tickets: %v", err)
		}
	}

	engine := newEngineFunc(tracer, manager, scoreRepo, decision.Config{
		MinSources:     cfg.MinSources,
		ScoreWindow:    time.Duration(cfg.ScoreWindowSecs) * time.Second,
		LongThreshold:  cfg.LongThreshold,
		ShortThreshold: cfg.ShortThreshold,
		SignalTTL:      time.Duration(cfg.SignalTTLSecs) * time.Second,
	})

	// Consume scores and fills (background goroutines, stopped by ctx cancel)
	bus := newBusFunc(cache.Client, tracer, engine, manager, streamCfg)
	startBusFunc(bus, ctx)

	// Background jobs
	startMarkPollerFunc(newMarkPollerFunc(tracer, markSvc, time.Duration(cfg.MarkPollSecs)*time.Second), ctx)
	startExpiryJobFunc(newExpiryJobFunc(tracer, manager, scoreRepo, time.Duration(cfg.ExpirySweepSecs)*time.Second), ctx)
	if trainJob != nil {
		startAnomalyJobFunc(trainJob, ctx)
	}
	if cfg.MarkFeedEnabled {
		feed := newMarkFeedFunc(cfg.MarkWSURL, func(asset string, mid float64, ts time.Time) {
			markSvc.ApplyUpdate(ctx, asset, mid, ts)
		})
		startMarkFeedFunc(feed, ctx)
	}

	// Create handlers and routes
	h := newHandlerFunc(tracer, deskSvc, markSvc, manager)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("sigmapilot"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
