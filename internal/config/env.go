package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ViewerConfig defines the viewer defaults and render settings.
type ViewerConfig struct {
    Title              string
    Filename           string
    RenderDPI          float64 // DPI at scale 1.0
    JPEGQuality        int
    ColorMode          string  // "rgb"|"gray"
    MaterializeTimeout time.Duration
    RenderTimeout      time.Duration
    EventBuffer        int
}

// StoreConfig defines the optional Redis view-state mirror.
type StoreConfig struct {
    RedisURL  string
    KeyPrefix string
    TTL       time.Duration
    ViewerID  string
}

// ExportConfig defines where exports go and which sources may be opened.
type ExportConfig struct {
    S3Bucket     string
    PartSizeMB   int
    ExportDir    string
    SourceRoot   string // local sources must live here; "" disables them
    AllowHTTP    bool   // permit http(s) sources
}

// HTTPConfig defines the HTTP surface.
type HTTPConfig struct {
    Port            string
    Username        string
    Password        string
    ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Viewer  ViewerConfig
    Store   StoreConfig
    Export  ExportConfig
    HTTP    HTTPConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory (or ENV_FILE) is read first; real
// environment variables win over it.
func FromEnv() Config {
    envFile := os.Getenv("ENV_FILE")
    if envFile == "" { envFile = ".env" }
    _ = godotenv.Load(envFile)

    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/docviewer.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_docviewer",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Viewer = ViewerConfig{
        Title:              getEnv("VIEWER_TITLE", "PDF Document"),
        Filename:           getEnv("VIEWER_FILENAME", "document.pdf"),
        RenderDPI:          parseFloat(getEnv("RENDER_DPI", "96"), 96),
        JPEGQuality:        parseInt(getEnv("RENDER_JPEG_QUALITY", "85"), 85),
        ColorMode:          strings.ToLower(getEnv("RENDER_COLOR_MODE", "rgb")),
        MaterializeTimeout: parseDuration(getEnv("MATERIALIZE_TIMEOUT", "30s"), 30*time.Second),
        RenderTimeout:      parseDuration(getEnv("RENDER_TIMEOUT", "20s"), 20*time.Second),
        EventBuffer:        parseInt(getEnv("VIEWER_EVENT_BUFFER", "64"), 64),
    }
    if cfg.Viewer.JPEGQuality < 1 || cfg.Viewer.JPEGQuality > 100 { cfg.Viewer.JPEGQuality = 85 }
    if cfg.Viewer.RenderDPI <= 0 { cfg.Viewer.RenderDPI = 96 }

    cfg.Store = StoreConfig{
        RedisURL:  getEnv("REDIS_URL", ""),
        KeyPrefix: getEnv("STORE_KEY_PREFIX", "viewer"),
        TTL:       parseDuration(getEnv("STORE_TTL", "24h"), 24*time.Hour),
        ViewerID:  getEnv("VIEWER_ID", hostnameOr("viewer")),
    }

    cfg.Export = ExportConfig{
        S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
        PartSizeMB: parseInt(getEnv("S3_PART_SIZE_MB", "8"), 8),
        ExportDir:  getEnv("EXPORT_DIR", "exports"),
        SourceRoot: getEnv("SOURCE_ROOT", "documents"),
        AllowHTTP:  parseBool(getEnv("SOURCE_ALLOW_HTTP", "false")),
    }

    cfg.HTTP = HTTPConfig{
        Port:            getEnv("PORT", "8080"),
        Username:        getEnv("WEB_USERNAME", ""),
        Password:        getEnv("WEB_PASSWORD", ""),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}

func hostnameOr(def string) string {
    if h, err := os.Hostname(); err == nil && h != "" { return h }
    return def
}
