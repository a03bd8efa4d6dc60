package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration (saga state + reconciliation schedule)
	RedisURL string

	// Kafka configuration (notification queue)
	KafkaBrokers      []string
	NotificationTopic string

	// PubNub configuration (realtime user push)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Stripe configuration
	StripeAPIKey        string
	StripeAPIURL        string
	StripeWebhookSecret string
	Currency            string

	// Collaborator service URLs
	InventoryURL string
	UsersURL     string
	EventsURL    string

	// Saga timing
	ReconcileGracePeriod  time.Duration
	ReconcilePollInterval time.Duration
	TransferTTL           time.Duration
	HTTPTimeout           time.Duration

	// Frontend redirect target for completed checkouts
	CheckoutRedirectURL string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// Kafka
		KafkaBrokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "notification.queue"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Stripe
		StripeAPIKey:        getEnv("STRIPE_API_KEY", ""),
		StripeAPIURL:        getEnv("STRIPE_API_URL", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            getEnv("CURRENCY", "sgd"),

		// Collaborators
		InventoryURL: getEnv("INVENTORY_URL", "http://ticket-inventory:8080"),
		UsersURL:     getEnv("USERS_URL", "http://auth-service:8000"),
		EventsURL:    getEnv("EVENTS_URL", "http://events-service:8000"),

		// Saga timing
		ReconcileGracePeriod:  getEnvAsDuration("RECONCILE_GRACE_PERIOD", "60s"),
		ReconcilePollInterval: getEnvAsDuration("RECONCILE_POLL_INTERVAL", "5s"),
		TransferTTL:           getEnvAsDuration("TRANSFER_TTL", "24h"),
		HTTPTimeout:           getEnvAsDuration("HTTP_TIMEOUT", "10s"),

		// Frontend
		CheckoutRedirectURL: getEnv("CHECKOUT_REDIRECT_URL", "http://localhost:3000"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
