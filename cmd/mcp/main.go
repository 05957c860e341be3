package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/fzheng/SigmaPilot/internal/cache"
	"github.com/fzheng/SigmaPilot/internal/config"
	"github.com/fzheng/SigmaPilot/internal/db"
	"github.com/fzheng/SigmaPilot/internal/mcp"
	"github.com/fzheng/SigmaPilot/internal/provider"
	"github.com/fzheng/SigmaPilot/internal/repository"
	"github.com/fzheng/SigmaPilot/internal/service"
	"github.com/fzheng/SigmaPilot/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newTicketRepoFunc = repository.NewTicketRepository
	newScoreRepoFunc  = repository.NewScoreRepository

	newMarkServiceFunc = service.NewMarkService
	newDeskServiceFunc = service.NewDeskService
	newMCPServerFunc   = mcp.NewServer

	runStdioFunc = func(ctx context.Context, s *mcp.Server) error { return s.RunStdio(ctx) }
	listenFunc   = func(srv *http.Server) error { return srv.ListenAndServe() }

	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

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

	// Create repositories and services. Like the ssh dashboard, this process
	// reads marks through Redis and never talks to the venue.
	ticketRepo := newTicketRepoFunc(db.Pool, tracer)
	scoreRepo := newScoreRepoFunc(db.Pool, tracer)
	markSvc := newMarkServiceFunc(tracer, nil, cache.Client)
	deskSvc := newDeskServiceFunc(tracer, ticketRepo, scoreRepo, markSvc)

	limiter := provider.NewRateLimiter(cfg.MCPRateLimitPerMin, time.Minute/time.Duration(cfg.MCPRateLimitPerMin))
	srv := newMCPServerFunc(deskSvc, markSvc, limiter, time.Duration(cfg.MCPRequestTimeoutSecs)*time.Second)

	if cfg.MCPTransport == "http" {
		serveHTTP(srv, cfg)
	} else {
		// stdio: the session lives exactly as long as the client keeps the
		// pipe open. Logging goes to stderr, so the protocol stream on
		// stdout stays clean.
		if err := runStdioFunc(ctx, srv); err != nil {
			log.Printf("MCP stdio session ended: %v", err)
		}
	}

	log.Println("MCP server exited")
}

func serveHTTP(srv *mcp.Server, cfg *config.Config) {
	addr := fmt.Sprintf("%s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(cfg.MCPAuthToken)}

	go func() {
		log.Printf("MCP server listening on %s", addr)
		if err := listenFunc(httpSrv); err != nil && err != http.ErrServerClosed {
			log.Printf("MCP server stopped: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down MCP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("MCP server shutdown error: %v", err)
	}
}
