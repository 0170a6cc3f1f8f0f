package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroleaf/neuroleaf-api/internal/api/rest/handlers"
	"github.com/neuroleaf/neuroleaf-api/internal/api/rest/middleware"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Webhook    *handlers.WebhookHandler
	Deck       *handlers.DeckHandler
	Flashcard  *handlers.FlashcardHandler
	Generation *handlers.GenerationHandler
	Test       *handlers.TestHandler
	Account    *handlers.AccountHandler
}

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(h Handlers, auth *middleware.JWTMiddleware, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Webhooks authenticate by signature, not bearer token.
	router.POST("/webhooks/stripe", h.Webhook.HandleStripeWebhook)

	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		api.GET("/me", h.Account.Me)
		api.GET("/me/usage", h.Account.Usage)

		decks := api.Group("/decks")
		{
			decks.POST("", h.Deck.Create)
			decks.GET("", h.Deck.List)
			decks.GET("/:deck_id", h.Deck.Get)
			decks.PUT("/:deck_id", h.Deck.Update)
			decks.DELETE("/:deck_id", h.Deck.Delete)

			decks.GET("/:deck_id/flashcards", h.Flashcard.List)
			decks.POST("/:deck_id/flashcards", h.Flashcard.CreateBatch)
			decks.DELETE("/:deck_id/flashcards/:card_id", h.Flashcard.Delete)

			decks.POST("/:deck_id/generate", h.Generation.GenerateFlashcards)
			decks.POST("/:deck_id/tests", h.Test.Start)
			decks.GET("/:deck_id/analytics", h.Account.DeckAnalytics)
		}

		tests := api.Group("/tests")
		{
			tests.GET("/:session_id", h.Test.Get)
			tests.GET("/:session_id/question", h.Test.NextQuestion)
			tests.POST("/:session_id/responses", h.Test.SubmitResponse)
			tests.POST("/:session_id/complete", h.Test.Complete)
			tests.POST("/:session_id/abandon", h.Test.Abandon)
		}
	}

	log.Infow("API routes configured")
	return router
}
