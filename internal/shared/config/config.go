package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/samber/lo"
)

// Config holds application configuration.
type Config struct {
	Port               string  `env:"PORT,default=5000"`
	FrontendURL        string  `env:"FRONTEND_URL,default=http://localhost:5173"`
	Env                string  `env:"ENV,default=dev"`
	PythonPath         string  `env:"PYTHON_PATH,default=python3"`
	PythonOptions      string  `env:"PYTHON_OPTIONS,default=-u"`
	PredictScript      string  `env:"PREDICT_SCRIPT,default=ml_model/predict.py"`
	WorkerTimeoutMs    int     `env:"WORKER_TIMEOUT_MS,default=30000"`
	MaxBodyBytes       int64   `env:"MAX_BODY_BYTES,default=16384"`
	AnalyzeRatePerSec  float64 `env:"ANALYZE_RATE_PER_SEC,default=0"`
	AnalyzeRateBurst   int     `env:"ANALYZE_RATE_BURST,default=0"`
	ShutdownTimeoutMs  int     `env:"SHUTDOWN_TIMEOUT_MS,default=30000"`
	DatabaseURL        string  `env:"DATABASE_URL"`
	DBMaxOpenConns     int     `env:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns     int     `env:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime  string  `env:"DB_CONN_MAX_LIFETIME"`
	DBConnMaxIdleTime  string  `env:"DB_CONN_MAX_IDLE_TIME"`
	DBPingTimeout      string  `env:"DB_PING_TIMEOUT"`
	HistoryMemoryLimit int     `env:"HISTORY_MEMORY_LIMIT,default=500"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Printf("config: %v", err)
	}
	cfg = Normalize(cfg)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is not set in production; analysis history stays in memory")
	}
	return cfg
}

// Normalize fills zero values with defaults and canonicalizes enums.
func Normalize(cfg Config) Config {
	cfg.Env = normalizeEnv(cfg.Env)
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "5000"
	}
	if strings.TrimSpace(cfg.PythonPath) == "" {
		cfg.PythonPath = "python3"
	}
	if strings.TrimSpace(cfg.PredictScript) == "" {
		cfg.PredictScript = "ml_model/predict.py"
	}
	if cfg.WorkerTimeoutMs <= 0 {
		cfg.WorkerTimeoutMs = 30000
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 << 10
	}
	if cfg.ShutdownTimeoutMs <= 0 {
		cfg.ShutdownTimeoutMs = 30000
	}
	if cfg.HistoryMemoryLimit <= 0 {
		cfg.HistoryMemoryLimit = 500
	}
	return cfg
}

// AllowedOrigins returns the CORS origins listed in FRONTEND_URL.
func (c Config) AllowedOrigins() []string {
	return splitAndTrim(c.FrontendURL, ",")
}

// PythonArgs returns the interpreter flags placed before the script path.
func (c Config) PythonArgs() []string {
	return strings.Fields(c.PythonOptions)
}

// WorkerTimeout is the per-request worker deadline.
func (c Config) WorkerTimeout() time.Duration {
	return time.Duration(c.WorkerTimeoutMs) * time.Millisecond
}

// ShutdownTimeout is the grace period given to in-flight requests.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// String renders the config for startup logs without the database URL.
func (c Config) String() string {
	db := "memory"
	if c.DatabaseURL != "" {
		db = "postgres"
	}
	return fmt.Sprintf("env=%s port=%s origins=%v python=%s script=%s timeout=%s history=%s",
		c.Env, c.Port, c.AllowedOrigins(), c.PythonPath, c.PredictScript, c.WorkerTimeout(), db)
}

func splitAndTrim(raw, sep string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, sep), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
