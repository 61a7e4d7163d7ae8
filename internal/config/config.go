package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingPublicURL is returned when MinIO is configured without a public
// URL prefix.
var ErrMissingPublicURL = errors.New("MINIO_PUBLIC_URL must be set when MINIO_ENDPOINT is")

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
	Workspace WorkspaceConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Environment    string
	CORSOrigins    []string
	// ReadTimeout only; writes are unbounded so event streams stay open.
	ReadTimeout    time.Duration
	MaxUploadBytes int64
	// PostLoginURL is where the sign-in callback sends the browser.
	PostLoginURL   string
}

// Production reports whether cookies must be marked Secure.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

// MongoDBConfig: an empty URI selects the in-memory document engine.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL           string
	Realm         string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	AllowInsecure bool
}

// Issuer returns the realm issuer URL. Older deployments put the realm path in
// URL directly, so Realm may be empty.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" {
		return ""
	}
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret       string
	WorkspaceTTL time.Duration
}

// MinIOConfig: an empty Endpoint selects the in-memory blob store.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is the prefix resolved blob URLs are built from. Resolved URLs
	// are persisted in records, so it is required with an Endpoint.
	PublicURL string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type WorkspaceConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	SessionTTL    time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("MAX_UPLOAD_MB", 25)
	viper.SetDefault("POST_LOGIN_URL", "/")
	viper.SetDefault("MONGODB_DATABASE", "studyhub")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("OIDC_REDIRECT_URL", "http://localhost:5001/auth/callback")
	viper.SetDefault("JWT_WORKSPACE_TTL", 43200)
	viper.SetDefault("MINIO_BUCKET", "studyhub")
	viper.SetDefault("MINIO_PUBLIC_URL", "/files")
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("WORKSPACE_IDLE_TTL", 30)
	viper.SetDefault("WORKSPACE_SWEEP_INTERVAL", 60)
	viper.SetDefault("SESSION_TTL", 10080)

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Host:           viper.GetString("SERVER_HOST"),
			Environment:    viper.GetString("SERVER_ENVIRONMENT"),
			CORSOrigins:    splitList(viper.GetString("CORS_ORIGINS")),
			ReadTimeout:    30 * time.Second,
			MaxUploadBytes: viper.GetInt64("MAX_UPLOAD_MB") << 20,
			PostLoginURL:   viper.GetString("POST_LOGIN_URL"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:           viper.GetString("KEYCLOAK_URL"),
			Realm:         viper.GetString("KEYCLOAK_REALM"),
			ClientID:      viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  viper.GetString("KEYCLOAK_CLIENT_SECRET"),
			RedirectURL:   viper.GetString("OIDC_REDIRECT_URL"),
			AllowInsecure: strings.EqualFold(strings.TrimSpace(viper.GetString("ALLOW_INSECURE_TOKEN")), "true"),
		},
		JWT: JWTConfig{
			Secret:       os.Getenv("JWT_SECRET"),
			WorkspaceTTL: time.Duration(viper.GetInt("JWT_WORKSPACE_TTL")) * time.Minute,
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			PublicURL: strings.TrimSpace(viper.GetString("MINIO_PUBLIC_URL")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Workspace: WorkspaceConfig{
			IdleTTL:       time.Duration(viper.GetInt("WORKSPACE_IDLE_TTL")) * time.Minute,
			SweepInterval: time.Duration(viper.GetInt("WORKSPACE_SWEEP_INTERVAL")) * time.Second,
			SessionTTL:    time.Duration(viper.GetInt("SESSION_TTL")) * time.Minute,
		},
	}

	// Basic validation
	if cfg.MinIO.Endpoint != "" && cfg.MinIO.PublicURL == "" {
		return nil, ErrMissingPublicURL
	}
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
