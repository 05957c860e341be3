package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	APIKey           string

	MarkSourceURL   string
	MarkWSURL       string
	MarkPollSecs    int
	MarkFeedEnabled bool

	ScoreStream   string
	FillStream    string
	SignalStream  string
	CloseStream   string
	StreamGroup   string
	StreamMaxLen  int64
	StreamBlockMS int

	MinSources      int
	ScoreWindowSecs int
	LongThreshold   float64
	ShortThreshold  float64
	SignalTTLSecs   int

	ExpirySweepSecs int

	AnomalyEnabled    bool
	AnomalyTrainSecs  int
	AnomalyMinSamples int
	AnomalyThreshold  float64

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	OpenAIAPIKey      string
	OpenAIModel       string
	AdvisorMaxHistory int

	SSHPort        int
	SSHHostKeyPath string
	SSHAutoEnroll  bool
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           strings.TrimSpace(os.Getenv("API_KEY")),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.APIKey == "" {
		log.Println("Warning: API_KEY not set, write endpoints are unauthenticated")
	}

	cfg.MarkSourceURL = strings.TrimSpace(os.Getenv("MARK_SOURCE_URL"))
	if cfg.MarkSourceURL == "" {
		cfg.MarkSourceURL = "https://api.hyperliquid.xyz"
	}

	cfg.MarkWSURL = strings.TrimSpace(os.Getenv("MARK_WS_URL"))
	if cfg.MarkWSURL == "" {
		cfg.MarkWSURL = "wss://api.hyperliquid.xyz/ws"
	}

	cfg.MarkPollSecs = 15
	if v := os.Getenv("MARK_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MarkPollSecs = n
		}
	}

	cfg.MarkFeedEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MARK_FEED_ENABLED")), "true")

	cfg.ScoreStream = envOr("SCORE_STREAM", "sigma:scores")
	cfg.FillStream = envOr("FILL_STREAM", "sigma:fills")
	cfg.SignalStream = envOr("SIGNAL_STREAM", "sigma:signals")
	cfg.CloseStream = envOr("CLOSE_STREAM", "sigma:closes")
	cfg.StreamGroup = envOr("STREAM_GROUP", "sigma-decide")

	cfg.StreamMaxLen = 10000
	if v := strings.TrimSpace(os.Getenv("STREAM_MAXLEN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.StreamMaxLen = n
		}
	}

	cfg.StreamBlockMS = 5000
	if v := strings.TrimSpace(os.Getenv("STREAM_BLOCK_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StreamBlockMS = n
		}
	}

	cfg.MinSources = 2
	if v := strings.TrimSpace(os.Getenv("DECIDE_MIN_SOURCES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinSources = n
		}
	}

	cfg.ScoreWindowSecs = 300
	if v := strings.TrimSpace(os.Getenv("DECIDE_SCORE_WINDOW_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ScoreWindowSecs = n
		}
	}

	cfg.LongThreshold = 0.35
	if v := strings.TrimSpace(os.Getenv("DECIDE_LONG_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.LongThreshold = n
		}
	}

	cfg.ShortThreshold = -0.35
	if v := strings.TrimSpace(os.Getenv("DECIDE_SHORT_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n < 0 && n > -1 {
			cfg.ShortThreshold = n
		}
	}

	cfg.SignalTTLSecs = 900
	if v := strings.TrimSpace(os.Getenv("DECIDE_SIGNAL_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SignalTTLSecs = n
		}
	}

	cfg.ExpirySweepSecs = 30
	if v := strings.TrimSpace(os.Getenv("EXPIRY_SWEEP_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExpirySweepSecs = n
		}
	}

	cfg.AnomalyEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("ANOMALY_ENABLED")), "true")

	cfg.AnomalyTrainSecs = 3600
	if v := strings.TrimSpace(os.Getenv("ANOMALY_TRAIN_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnomalyTrainSecs = n
		}
	}

	cfg.AnomalyMinSamples = 64
	if v := strings.TrimSpace(os.Getenv("ANOMALY_MIN_SAMPLES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnomalyMinSamples = n
		}
	}

	cfg.AnomalyThreshold = 0.72
	if v := strings.TrimSpace(os.Getenv("ANOMALY_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.AnomalyThreshold = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 5
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.AdvisorMaxHistory = 20
	if v := os.Getenv("ADVISOR_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdvisorMaxHistory = n
		}
	}

	cfg.SSHPort = 2222
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/sigmapilot_ed25519"
	}

	cfg.SSHAutoEnroll = strings.EqualFold(strings.TrimSpace(os.Getenv("SSH_AUTO_ENROLL")), "true")

	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
