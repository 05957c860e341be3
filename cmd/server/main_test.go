package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/fzheng/SigmaPilot/internal/bot"
	"github.com/fzheng/SigmaPilot/internal/config"
	"github.com/fzheng/SigmaPilot/internal/job"
	"github.com/fzheng/SigmaPilot/internal/provider"
	"github.com/fzheng/SigmaPilot/internal/service"
	"github.com/fzheng/SigmaPilot/internal/stream"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origStartTelegram := startTelegramBotFunc
	origStartBus := startBusFunc
	origStartMarkFeed := startMarkFeedFunc
	origStartMarkPoller := startMarkPollerFunc
	origStartExpiry := startExpiryJobFunc
	origStartAnomaly := startAnomalyJobFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		// Anomaly and feed branches enabled so their wiring runs; the
		// stubbed start funcs keep everything inert.
		return &config.Config{
			MarkPollSecs:      1,
			MarkFeedEnabled:   true,
			ExpirySweepSecs:   1,
			AnomalyEnabled:    true,
			AnomalyTrainSecs:  1,
			AnomalyMinSamples: 8,
			AnomalyThreshold:  0.7,
		}
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	startTelegramBotFunc = func(*service.DeskService, bot.Advisor) *bot.TelegramBot { return nil }
	startBusFunc = func(*stream.Bus, context.Context) {}
	startMarkFeedFunc = func(*provider.MarkFeed, context.Context) {}
	startMarkPollerFunc = func(*job.MarkPoller, context.Context) {}
	startExpiryJobFunc = func(*job.ExpiryJob, context.Context) {}
	startAnomalyJobFunc = func(*job.AnomalyTrainJob, context.Context) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		startTelegramBotFunc = origStartTelegram
		startBusFunc = origStartBus
		startMarkFeedFunc = origStartMarkFeed
		startMarkPollerFunc = origStartMarkPoller
		startExpiryJobFunc = origStartExpiry
		startAnomalyJobFunc = origStartAnomaly
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
