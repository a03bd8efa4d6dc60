package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"eventgo-saga/config"
	"eventgo-saga/handlers"
	"eventgo-saga/internal/services/events"
	"eventgo-saga/internal/services/inventory"
	"eventgo-saga/internal/services/notify"
	"eventgo-saga/internal/services/payment/stripe"
	"eventgo-saga/internal/services/users"
	"eventgo-saga/services"
	"eventgo-saga/utils"
)

func main() {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis (saga state + reconciliation schedule)
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Initialize PubNub
	var realtime notify.Realtime = notify.NopRealtime{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		realtime = notify.NewPubNubRealtime(pubnub.NewPubNub(pnConfig))
	}

	// Initialize notification queue
	publisher := notify.NewQueuePublisher(cfg.KafkaBrokers, cfg.NotificationTopic)
	defer publisher.Close()

	// Initialize collaborator clients
	provider := stripe.New(&stripe.Config{
		APIKey:  cfg.StripeAPIKey,
		APIURL:  cfg.StripeAPIURL,
		Timeout: cfg.HTTPTimeout,
	})
	inventoryClient := inventory.NewClient(cfg.InventoryURL, cfg.HTTPTimeout)
	usersClient := users.NewClient(cfg.UsersURL, cfg.HTTPTimeout)
	eventsClient := events.NewClient(cfg.EventsURL, cfg.HTTPTimeout)

	// Initialize services
	sagaStore := services.NewSagaStore(redisClient)
	bookingService := services.NewBookingService(
		provider, inventoryClient, publisher, realtime, sagaStore,
		cfg.Currency, cfg.CheckoutRedirectURL, cfg.ReconcileGracePeriod,
	)
	cancellationService := services.NewCancellationService(
		provider, inventoryClient, eventsClient, usersClient, publisher,
	)
	transferService := services.NewTransferService(
		provider, inventoryClient, eventsClient, usersClient, publisher, realtime, sagaStore,
		cfg.Currency, cfg.CheckoutRedirectURL,
	)
	reconcileService := services.NewReconcileService(
		provider, inventoryClient, publisher, sagaStore,
		cfg.ReconcilePollInterval, cfg.TransferTTL,
	)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService)
	transferHandler := handlers.NewTransferHandler(transferService)
	webhookHandler := handlers.NewWebhookHandler(bookingService, transferService, cfg.StripeWebhookSecret)
	ticketHandler := handlers.NewTicketHandler(inventoryClient)

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the durable reconciliation poller
	go reconcileService.Run(ctx)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Booking endpoints
		e.Router.POST("/api/party-booking", bookingHandler.InitiatePartyBooking)
		e.Router.PATCH("/api/tickets/preference", ticketHandler.UpdatePreference)

		// Cancellation endpoints
		e.Router.PATCH("/api/cancel-event/{eventId}", cancellationHandler.CancelEvent)

		// Transfer endpoints
		e.Router.POST("/api/generate-transfer-payment-link", transferHandler.GenerateTransferPaymentLink)

		// Provider webhook
		e.Router.POST("/api/webhook/stripe", webhookHandler.HandleStripeWebhook)

		// Test endpoint for checkout simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/test/simulate-checkout", webhookHandler.SimulateCheckout)
		}

		// Metrics
		e.Router.GET("/metrics", func(e *core.RequestEvent) error {
			promhttp.Handler().ServeHTTP(e.Response, e.Request)
			return nil
		})

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Serve on the configured port unless the invocation carries its own
	// subcommand (e.g. migrate).
	if len(os.Args) <= 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http", "0.0.0.0:" + cfg.Port})
	}

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
