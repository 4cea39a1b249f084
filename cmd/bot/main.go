package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/verify-bot/internal/application/issuance"
	"github.com/verify-bot/internal/application/policy"
	"github.com/verify-bot/internal/application/redemption"
	"github.com/verify-bot/internal/config"
	"github.com/verify-bot/internal/core"
	discordinfra "github.com/verify-bot/internal/infrastructure/discord"
	"github.com/verify-bot/internal/infrastructure/dynamo"
	"github.com/verify-bot/internal/infrastructure/smtp"
	"github.com/verify-bot/internal/transport/gateway"
	transporthttp "github.com/verify-bot/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	attemptRepo := dynamo.NewAttemptRepo(dynamoClient, cfg.DynamoTables.PendingVerifications)
	memberRepo := dynamo.NewMemberRepo(dynamoClient, cfg.DynamoTables.VerifiedMembers)
	policyRepo := dynamo.NewPolicyRepo(dynamoClient, cfg.DynamoTables.GuildPolicies)
	ledger := dynamo.NewLedger(dynamoClient, cfg.DynamoTables.PendingVerifications, cfg.DynamoTables.VerifiedMembers)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// Discord REST client: role API, DMs and interaction follow-ups.
	discordClient, err := discordinfra.NewClient(cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord client: %v", err)
	}

	policySvc := policy.NewService(policyRepo)
	issueSvc := issuance.NewService(issuance.ServiceDeps{
		Attempts:      attemptRepo,
		Members:       memberRepo,
		Policies:      policySvc,
		Mailer:        mailer,
		DefaultDomain: cfg.DefaultDomain,
	})
	redeemSvc := redemption.NewService(redemption.ServiceDeps{
		Attempts: attemptRepo,
		Members:  memberRepo,
		Ledger:   ledger,
		Policies: policySvc,
		Roles:    discordClient,
	})

	coreHandler := core.NewHandler(policySvc, issueSvc, redeemSvc, cfg.DefaultDomain)

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Core:     coreHandler,
		Followup: discordClient,
		DB:       policyRepo,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Webhook server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Gateway ingress: DM interactions and the on-join prompt.
	gw := gateway.New(discordClient, coreHandler)
	if err := gw.Start(); err != nil {
		log.Printf("WARN: gateway not available: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := gw.Stop(); err != nil {
		log.Printf("gateway close: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Stopped")
}
