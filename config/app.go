package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Env      string `env:"GO_ENV" envDefault:"production"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SessionStore        string        `env:"SESSION_STORE" envDefault:"memory"` // memory|redis
	SessionCleanupDelay time.Duration `env:"SESSION_CLEANUP_DELAY" envDefault:"5m"`
	SessionIdleTTL      time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`
	SessionLockTTL      time.Duration `env:"SESSION_LOCK_TTL" envDefault:"2m"`

	LLMProvider           string        `env:"LLM_PROVIDER" envDefault:"vertex"` // vertex|openai
	LLMModel              string        `env:"LLM_MODEL"`
	LLMTimeout            time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	MaxQuestions          int           `env:"MAX_QUESTIONS" envDefault:"20"`
	GCPProjectID          string        `env:"GCP_PROJECT_ID"`
	GCPLocation           string        `env:"GCP_LOCATION" envDefault:"us-central1"`
	GoogleCredentialsFile string        `env:"GOOGLE_CREDENTIALS_FILE"`
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL"`

	// empty disables the features that need the store
	PostgresURI string `env:"POSTGRES_URI"`
	RedisAddr   string `env:"REDIS_ADDR"`
	MongoURI    string `env:"MONGO_URI"`
	MongoDB     string `env:"MONGO_DB" envDefault:"voiceinterview"`

	MongoForceTLSConfig bool `env:"MONGO_FORCE_TLS_CONFIG"`
	MongoInsecureTLS    bool `env:"MONGO_INSECURE_TLS"`

	JWTSecret   string `env:"SUPABASE_JWT_SECRET"`
	JWTIssuer   string `env:"SUPABASE_JWT_ISSUER"`
	JWTAudience string `env:"SUPABASE_JWT_AUDIENCE"`

	VapiServerSecret string        `env:"VAPI_SERVER_URL_SECRET"`
	RecordingBucket  string        `env:"GCS_RECORDING_BUCKET"`
	WorkerCount      int           `env:"WORKER_COUNT" envDefault:"4"`
	TranscriptTTL    time.Duration `env:"TRANSCRIPT_TTL" envDefault:"24h"`

	WSAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads .env when present, then the environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}

	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore)
	}

	switch c.LLMProvider {
	case "vertex":
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required when LLM_PROVIDER=vertex")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be vertex or openai, got %q", c.LLMProvider)
	}

	if c.PostgresURI != "" && c.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required when POSTGRES_URI is set")
	}
	if c.RecordingBucket != "" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when GCS_RECORDING_BUCKET is set")
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.MaxQuestions <= 0 {
		return fmt.Errorf("MAX_QUESTIONS must be positive, got %d", c.MaxQuestions)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.SessionCleanupDelay <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_DELAY must be positive, got %s", c.SessionCleanupDelay)
	}
	if c.SessionIdleTTL < c.SessionCleanupDelay {
		return fmt.Errorf("SESSION_IDLE_TTL (%s) must not be shorter than SESSION_CLEANUP_DELAY (%s)", c.SessionIdleTTL, c.SessionCleanupDelay)
	}
	if c.SessionLockTTL < c.LLMTimeout {
		return fmt.Errorf("SESSION_LOCK_TTL (%s) must cover LLM_TIMEOUT (%s)", c.SessionLockTTL, c.LLMTimeout)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *AppConfig) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "PORT", value: c.Port},
		{name: "SESSION_STORE", value: c.SessionStore},
		{name: "LLM_PROVIDER", value: c.LLMProvider},
	}
}

func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Redis is needed by the shared session store and by the job stream.
func (c *AppConfig) UsesRedis() bool {
	return c.RedisAddr != ""
}
