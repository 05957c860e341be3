package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/fzheng/SigmaPilot/internal/advisor"
	"github.com/fzheng/SigmaPilot/internal/cache"
	"github.com/fzheng/SigmaPilot/internal/config"
	"github.com/fzheng/SigmaPilot/internal/db"
	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/repository"
	"github.com/fzheng/SigmaPilot/internal/service"
	"github.com/fzheng/SigmaPilot/internal/tui"
	"github.com/fzheng/SigmaPilot/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const sshUserKey ctxKey = "ssh_user"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newTicketRepoFunc       = repository.NewTicketRepository
	newScoreRepoFunc        = repository.NewScoreRepository
	newSSHUserRepoFunc      = repository.NewSSHUserRepository
	newConversationRepoFunc = repository.NewConversationRepository

	newMarkServiceFunc    = service.NewMarkService
	newDeskServiceFunc    = service.NewDeskService
	newOpenAIClientFunc   = advisor.NewOpenAIClient
	newAdvisorServiceFunc = advisor.NewAdvisorService

	newWishServerFunc = wish.NewServer
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

	// Create repositories
	ticketRepo := newTicketRepoFunc(db.Pool, tracer)
	scoreRepo := newScoreRepoFunc(db.Pool, tracer)
	sshUserRepo := newSSHUserRepoFunc(db.Pool, tracer)
	convRepo := newConversationRepoFunc(db.Pool, tracer)

	// Create services. The dashboard process never talks to the venue; marks
	// written by the main server reach it through Redis.
	markSvc := newMarkServiceFunc(tracer, nil, cache.Client)
	deskSvc := newDeskServiceFunc(tracer, ticketRepo, scoreRepo, markSvc)

	// Advisor (optional)
	var advisorSvc *advisor.AdvisorService
	if cfg.OpenAIAPIKey != "" {
		llmClient := newOpenAIClientFunc(cfg.OpenAIAPIKey)
		advisorSvc = newAdvisorServiceFunc(tracer, llmClient, deskSvc, markSvc,
			convRepo, cfg.OpenAIModel, cfg.AdvisorMaxHistory)
		log.Println("SSH advisor service enabled")
	}

	// Build Wish SSH server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			user, err := sshUserRepo.GetByFingerprint(context.Background(), fingerprint)
			if err != nil {
				// With auto-enroll on, the first connection of an unknown
				// key claims the username the client offered.
				if !cfg.SSHAutoEnroll || !errors.Is(err, pgx.ErrNoRows) {
					log.Printf("SSH auth denied: fingerprint=%s err=%v", fingerprint, err)
					return false
				}
				user, err = sshUserRepo.Insert(context.Background(), ctx.User(), fingerprint)
				if err != nil {
					log.Printf("SSH auto-enroll failed: fingerprint=%s err=%v", fingerprint, err)
					return false
				}
				log.Printf("SSH auto-enrolled: user=%s fingerprint=%s", user.Username, fingerprint)
			}
			ctx.SetValue(sshUserKey, user)
			_ = sshUserRepo.TouchLogin(context.Background(), user.ID)
			log.Printf("SSH auth accepted: user=%s fingerprint=%s", user.Username, fingerprint)
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				user, _ := s.Context().Value(sshUserKey).(*domain.SSHUser)

				username := "unknown"
				var userID int64
				if user != nil {
					username = user.Username
					userID = user.ID
				}

				var advisorQ tui.AdvisorQuerier
				if advisorSvc != nil {
					advisorQ = advisorSvc
				}

				svc := tui.Services{
					Desk:     deskSvc,
					Advisor:  advisorQ,
					UserID:   userID,
					Username: username,
				}

				model := tui.NewAppModel(svc)
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}
