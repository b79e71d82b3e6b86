package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// GatewayConfig is shared by every binary that talks to the messaging
// gateway. One API key per logical instance; a send through an instance
// with no key fails before any network I/O.
type GatewayConfig struct {
	GatewayBaseURL      string `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewayKeyPrincipal string `envconfig:"GATEWAY_KEY_PRINCIPAL"`
	GatewayKeyLeads     string `envconfig:"GATEWAY_KEY_LEADS"`
	GatewayKeyCobranca  string `envconfig:"GATEWAY_KEY_COBRANCA"`
	GatewayTimeoutSec   int    `envconfig:"GATEWAY_TIMEOUT_SECONDS" default:"10"`
}

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// CRM pull
	CRMBaseURL string `envconfig:"CRM_BASE_URL" required:"true"`
	CRMToken   string `envconfig:"CRM_API_TOKEN"`

	// campaign stats cache (optional; cache disabled when addr is empty)
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	StatsTTLSec   int    `envconfig:"STATS_CACHE_TTL_SECONDS" default:"30"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	DispatchQueueURL   string `envconfig:"SQS_DISPATCH_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	GatewayConfig
}

type WorkerConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	DispatchQueueURL   string `envconfig:"SQS_DISPATCH_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"10"`

	GatewayRPS   float64 `envconfig:"GATEWAY_RPS" default:"5"`
	GatewayBurst int     `envconfig:"GATEWAY_BURST" default:"10"`

	GatewayConfig
}

type ReminderConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	TickQueueURL       string `envconfig:"SQS_TICK_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"300"`

	GatewayRPS   float64 `envconfig:"GATEWAY_RPS" default:"2"`
	GatewayBurst int     `envconfig:"GATEWAY_BURST" default:"4"`

	// UX pacing hint forwarded to the gateway, milliseconds
	ReminderDelayMs int `envconfig:"REMINDER_DELAY_MS" default:"1200"`

	GatewayConfig
}

type SchedulerConfig struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	TickQueueURL       string `envconfig:"SQS_TICK_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`

	TickInterval string `envconfig:"TICK_INTERVAL" default:"24h"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	load(&cfg)
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	load(&cfg)
	return cfg
}

func LoadReminder() ReminderConfig {
	var cfg ReminderConfig
	load(&cfg)
	return cfg
}

func LoadScheduler() SchedulerConfig {
	var cfg SchedulerConfig
	load(&cfg)
	return cfg
}

func load(cfg any) {
	// .env is a local-dev convenience; real environments set vars directly
	_ = godotenv.Load()
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
}
