package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/verify-bot/internal/config"
	"github.com/verify-bot/internal/core"
	"github.com/verify-bot/internal/transport/http/handler"
	appmiddleware "github.com/verify-bot/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds everything the webhook ingress needs. The signed-interaction
// endpoint does nothing but authenticate, parse and format; all command
// semantics live in the core handler.
type Deps struct {
	Core     *core.Handler
	Followup handler.FollowupSender
	DB       handler.Pinger
}

// NewRouter builds and returns the webhook router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Signature-Ed25519", "X-Signature-Timestamp"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — the interactions endpoint is public.
	interactionRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.DB)
	interactionH := handler.NewInteractionHandler(deps.Core, deps.Followup)

	r.Get("/health", healthH.Check)
	r.With(interactionRL.Limit).
		With(appmiddleware.VerifySignature(cfg.DiscordPublicKey)).
		Post("/api/interactions", interactionH.Handle)

	return r
}
