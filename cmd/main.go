package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"waflow/internal/infrastructure"
	"waflow/internal/interfaces/http"
	"waflow/internal/repository"
	"waflow/internal/usecases"
)

func main() {
	// Load .env file (optional in production, env vars win)
	_ = godotenv.Load()

	cfg, err := infrastructure.LoadConfig()
	if err != nil {
		panic("Invalid configuration: " + err.Error())
	}

	log := infrastructure.NewLogger(cfg.LogLevel)

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	// Initialize Repositories
	tenantRepo := repository.NewTenantRepository(pgClient.Pool)
	contactRepo := repository.NewContactRepository(pgClient.Pool)
	flowRepo := repository.NewFlowRepository(pgClient.Pool)
	sessionRepo := repository.NewSessionRepository(pgClient.Pool)
	messageRepo := repository.NewMessageRepository(pgClient.Pool)

	// Provider client & flow execution adapter
	graphClient := infrastructure.NewGraphClient(cfg.GraphAPIBaseURL, cfg.GraphAPITimeout)
	executor := infrastructure.NewEchoFlowExecutor(graphClient, sessionRepo, messageRepo, log)

	// Core services
	resolver := usecases.NewTenantResolver(tenantRepo, cfg.GlobalVerifyToken, log)
	router := usecases.NewSessionRouter(contactRepo, flowRepo, sessionRepo, messageRepo, executor, cfg.FlowExecTimeout, log)

	// Sanity-check tenant credentials in the background; a broken token
	// only degrades outbound sends, so log and carry on.
	go verifyTenantCredentials(tenantRepo, graphClient, log)

	// HTTP server
	middleware := http.NewMiddleware(cfg.JWTSecret, rate.Limit(cfg.TriggerRatePerSec), cfg.TriggerBurst)
	webhookHandler := http.NewWebhookHandler(resolver, router, messageRepo, log)
	triggerHandler := http.NewManualTriggerHandler(resolver, router, flowRepo, tenantRepo, middleware, log)
	conversationHandler := http.NewConversationHandler(sessionRepo, log)

	r := gin.Default()
	http.SetupRoutes(r, webhookHandler, triggerHandler, conversationHandler, middleware, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pgClient.Pool.Ping(ctx)
	})

	log.Info().Str("addr", cfg.ListenAddr).Msg("webhook ingress listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
}

func verifyTenantCredentials(tenants *repository.TenantRepository, graph *infrastructure.GraphClient, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	all, err := tenants.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("credential check: listing tenants failed")
		return
	}
	for i := range all {
		t := &all[i]
		if t.AccessToken == "" {
			continue
		}
		if err := graph.VerifyCredentials(ctx, t.PhoneNumberID, t.AccessToken); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", t.ID).
				Bool("retryable", infrastructure.IsRetryable(err)).
				Msg("tenant credentials failed verification")
		}
	}
}
