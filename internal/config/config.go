package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App       App       `yaml:"app"`
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	Gateway   Gateway   `yaml:"gateway"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Media     Media     `yaml:"media"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"social"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// SlogLevel maps the configured level name onto slog's levels. Unknown
// values fall back to info rather than failing startup.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTP carries the listen port for each service binary. Every binary reads
// the same config; each main picks its own port out of this block.
type HTTP struct {
	GatewayPort  string `yaml:"gateway_port" env:"GATEWAY_PORT" env-default:"3000"`
	IdentityPort string `yaml:"identity_port" env:"IDENTITY_PORT" env-default:"3001"`
	PostPort     string `yaml:"post_port" env:"POST_PORT" env-default:"3002"`
	MediaPort    string `yaml:"media_port" env:"MEDIA_PORT" env-default:"3003"`
	SearchPort   string `yaml:"search_port" env:"SEARCH_PORT" env-default:"3004"`
}

// Gateway holds the backend base URLs the dispatcher forwards to.
type Gateway struct {
	IdentityURL string `yaml:"identity_url" env:"IDENTITY_SERVICE_URL" env-default:"http://localhost:3001"`
	PostURL     string `yaml:"post_url" env:"POST_SERVICE_URL" env-default:"http://localhost:3002"`
	MediaURL    string `yaml:"media_url" env:"MEDIA_SERVICE_URL" env-default:"http://localhost:3003"`
	SearchURL   string `yaml:"search_url" env:"SEARCH_SERVICE_URL" env-default:"http://localhost:3004"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"social_db"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Exchange is the topic prefix shared by all routing keys: the routing
	// key "post.created" maps to topic "social_events.post.created".
	Exchange       string        `yaml:"exchange" env:"KAFKA_EXCHANGE" env-default:"social_events"`
	ConnectRetries int           `yaml:"connect_retries" env:"KAFKA_CONNECT_RETRIES" env-default:"5"`
	ConnectDelay   time.Duration `yaml:"connect_delay" env:"KAFKA_CONNECT_DELAY" env-default:"5s"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"AUTH_ACCESS_TTL" env-default:"60m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"AUTH_REFRESH_TTL" env-default:"168h"`
}

// RateLimit configures both admission layers. Global is the per-client point
// budget applied to every request; the remaining knobs are per-route fixed
// windows stacked on top of it.
type RateLimit struct {
	GlobalPoints    int           `yaml:"global_points" env:"RATELIMIT_GLOBAL_POINTS" env-default:"10"`
	GlobalWindow    time.Duration `yaml:"global_window" env:"RATELIMIT_GLOBAL_WINDOW" env-default:"1s"`
	GatewayMax      int           `yaml:"gateway_max" env:"RATELIMIT_GATEWAY_MAX" env-default:"100"`
	PostsMax        int           `yaml:"posts_max" env:"RATELIMIT_POSTS_MAX" env-default:"100"`
	RegisterMax     int           `yaml:"register_max" env:"RATELIMIT_REGISTER_MAX" env-default:"50"`
	UploadMax       int           `yaml:"upload_max" env:"RATELIMIT_UPLOAD_MAX" env-default:"5"`
	SensitiveWindow time.Duration `yaml:"sensitive_window" env:"RATELIMIT_SENSITIVE_WINDOW" env-default:"10m"`
}

type Media struct {
	Endpoint  string `yaml:"endpoint" env:"MEDIA_S3_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MEDIA_S3_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey string `yaml:"secret_key" env:"MEDIA_S3_SECRET_KEY" env-default:"minioadmin"`
	Bucket    string `yaml:"bucket" env:"MEDIA_S3_BUCKET" env-default:"social-media"`
	UseSSL    bool   `yaml:"use_ssl" env:"MEDIA_S3_USE_SSL" env-default:"false"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
