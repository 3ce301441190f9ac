package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Telephony provider settings. When the API token is empty it is
	// fetched from Secret Manager at startup (see ProviderTokenSecret).
	ProviderBaseURL     string `envconfig:"PROVIDER_BASE_URL" required:"true"`
	ProviderAPIToken    string `envconfig:"PROVIDER_API_TOKEN"`
	ProviderTokenSecret string `envconfig:"PROVIDER_TOKEN_SECRET" default:"telephony-provider-token"`
	ProviderTimeoutSec  int    `envconfig:"PROVIDER_TIMEOUT_SEC" default:"10"`

	// Pricing, minor currency units.
	CallPricePerMinuteCents int64 `envconfig:"CALL_PRICE_PER_MINUTE_CENTS" default:"150"`
	SMSPricePerSegmentCents int64 `envconfig:"SMS_PRICE_PER_SEGMENT_CENTS" default:"75"`
	MaxSMSLength            int   `envconfig:"MAX_SMS_LENGTH" default:"1600"`

	// Campaign guard settings.
	GuardCallTimeoutSec    int    `envconfig:"GUARD_CALL_TIMEOUT_SEC" default:"5"`
	GuardCampaignWindowHrs int    `envconfig:"GUARD_CAMPAIGN_WINDOW_HOURS" default:"24"`
	GuardSessionWindowMins int    `envconfig:"GUARD_SESSION_WINDOW_MINUTES" default:"30"`
	GuardQueueName         string `envconfig:"GUARD_QUEUE_NAME" default:"guard_queue"`
	GuardPollTimeoutSec    int    `envconfig:"GUARD_POLL_TIMEOUT_SEC" default:"30"`
	GuardPollMaxMsg        int    `envconfig:"GUARD_POLL_MAX_MSG" default:"1"`
	RenewalIntervalMins    int    `envconfig:"RENEWAL_INTERVAL_MINUTES" default:"60"`

	// Stripe wallet top-up settings.
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeTopupSuccessURL string `envconfig:"STRIPE_TOPUP_SUCCESS_URL" default:"http://localhost:3000/wallet"`

	// Google Cloud settings for alerts and secrets.
	GCPProjectID          string `envconfig:"GCP_PROJECT_ID"`
	AlertTopic            string `envconfig:"ALERT_TOPIC" default:"balance_alerts"`
	SecretManagerEndpoint string `envconfig:"SECRET_MANAGER_ENDPOINT"`

	// S3-compatible recording archive settings.
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"call-recordings"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
