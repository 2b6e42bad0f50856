package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	Env        string
	Baseline   BaselineConfig
	Snapshot   SnapshotConfig
	Sandbox    SandboxConfig
	Resilience ResilienceConfig
	LLM        LLMConfig
}

type BaselineConfig struct {
	// DSN selects the Postgres backend; empty means the JSON file at Path.
	DSN  string
	Path string
}

type SnapshotConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SandboxConfig struct {
	// BaseURL of the dev-sandbox control endpoint; empty disables sandboxes.
	BaseURL string
}

type ResilienceConfig struct {
	// StatusURL is the upstream generation-status endpoint polled when a
	// stream dies mid-flight; empty disables the polling fallback.
	StatusURL string
}

type LLMConfig struct {
	APIKey string
	Model  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8082", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Baseline: BaselineConfig{
			DSN:  strings.TrimSpace(os.Getenv("BASELINE_PG_DSN")),
			Path: firstNonEmpty(strings.TrimSpace(os.Getenv("BASELINE_STORE_PATH")), "tmp/baselines.json"),
		},
		Snapshot: loadSnapshotConfig(env),
		Sandbox: SandboxConfig{
			BaseURL: strings.TrimSpace(os.Getenv("SANDBOX_CONTROL_URL")),
		},
		Resilience: ResilienceConfig{
			StatusURL: strings.TrimSpace(os.Getenv("GENERATION_STATUS_URL")),
		},
		LLM: LLMConfig{
			APIKey: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))),
			Model:  strings.TrimSpace(os.Getenv("LLM_MODEL")),
		},
	}, nil
}

func loadSnapshotConfig(env string) SnapshotConfig {
	endpoint := resolveSnapshotEndpoint(env)
	return SnapshotConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET")), "previewsync-snapshots"),
		UseSSL:    resolveSnapshotUseSSL(env),
	}
}

func resolveSnapshotEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("SNAPSHOT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ENDPOINT"))
}

func resolveSnapshotUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("SNAPSHOT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
