package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	JWTSecret          string
	FrontendOrigin     string
	CORSAllowedOrigins []string

	LLMProvider          string
	OpenAIBaseURL        string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIRequestTimeout time.Duration
	OpenAIMaxRetries     int
	OpenAIRetryBase      time.Duration
	AgentAPIURL          string
	AgentAPIKeys         map[string]string

	JudgeProvider      string
	JudgeBaseURL       string
	JudgePath          string
	JudgeTimeout       time.Duration
	CommentaryProvider string
	CommentaryURL      string
	GeminiAPIKey       string
	GeminiModel        string
	CommentaryTimeout  time.Duration

	MaxMessagesPerParticipant int
	MinMessageLen             int
	MaxMessageLen             int
	MoveTimeout               time.Duration
	RevealCharInterval        time.Duration
	OpeningDelay              time.Duration
	TurnDelay                 time.Duration
	PauseClockDuringOpponent  bool
	RosterFile                string

	APIRequestTimeout   time.Duration
	APIReadTimeout      time.Duration
	APIWriteTimeout     time.Duration
	APIIdleTimeout      time.Duration
	RequestBodyMaxBytes int64
	MessageRatePerSec   float64
	MessageRateBurst    int
	ResultCacheTTL      time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	appEnv := strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", "dev")))

	frontendOrigin := getEnv("FRONTEND_ORIGIN", "http://localhost:5173")
	corsAllowedOrigins := parseCSVEnv("CORS_ALLOWED_ORIGINS")
	if len(corsAllowedOrigins) == 0 {
		corsAllowedOrigins = []string{frontendOrigin}
		if appEnv != "prod" && appEnv != "production" {
			corsAllowedOrigins = append(corsAllowedOrigins, "http://localhost:5173", "http://127.0.0.1:5173")
		}
	}

	return Config{
		AppEnv:             appEnv,
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		JWTSecret:          getEnv("JWT_SECRET", "change-me"),
		FrontendOrigin:     frontendOrigin,
		CORSAllowedOrigins: corsAllowedOrigins,

		LLMProvider:          getEnv("LLM_PROVIDER", "mock"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIRequestTimeout: getEnvDuration("OPENAI_REQUEST_TIMEOUT", 20*time.Second),
		OpenAIMaxRetries:     getEnvInt("OPENAI_MAX_RETRIES", 2),
		OpenAIRetryBase:      getEnvDuration("OPENAI_RETRY_BASE", 400*time.Millisecond),
		AgentAPIURL:          getEnv("AGENT_API_URL", "https://agent-prod.studio.lyzr.ai/v3/inference/chat/"),
		AgentAPIKeys: map[string]string{
			"1":    os.Getenv("AGENT_API_KEY_1"),
			"2":    os.Getenv("AGENT_API_KEY_2"),
			"mild": os.Getenv("AGENT_API_KEY_MILD"),
		},

		JudgeProvider:      getEnv("JUDGE_PROVIDER", "mock"),
		JudgeBaseURL:       getEnv("JUDGE_BASE_URL", "https://roastjudge-api-342803715506.asia-south1.run.app"),
		JudgePath:          getEnv("JUDGE_PATH", "/judge_battle"),
		JudgeTimeout:       getEnvDuration("JUDGE_TIMEOUT", 30*time.Second),
		CommentaryProvider: getEnv("COMMENTARY_PROVIDER", "mock"),
		CommentaryURL:      os.Getenv("COMMENTARY_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		CommentaryTimeout:  getEnvDuration("COMMENTARY_TIMEOUT", 20*time.Second),

		MaxMessagesPerParticipant: getEnvInt("MAX_MESSAGES_PER_PARTICIPANT", 3),
		MinMessageLen:             getEnvInt("MIN_MESSAGE_LEN", 1),
		MaxMessageLen:             getEnvInt("MAX_MESSAGE_LEN", 500),
		MoveTimeout:               getEnvDuration("MOVE_TIMEOUT", 25*time.Second),
		RevealCharInterval:        getEnvDuration("REVEAL_CHAR_INTERVAL", 20*time.Millisecond),
		OpeningDelay:              getEnvDuration("OPENING_DELAY", time.Second),
		TurnDelay:                 getEnvDuration("TURN_DELAY", 2*time.Second),
		PauseClockDuringOpponent:  getEnvBool("PAUSE_CLOCK_DURING_OPPONENT", false),
		RosterFile:                os.Getenv("ROSTER_FILE"),

		APIRequestTimeout:   getEnvDuration("API_REQUEST_TIMEOUT", 15*time.Second),
		APIReadTimeout:      getEnvDuration("API_READ_TIMEOUT", 15*time.Second),
		APIWriteTimeout:     getEnvDuration("API_WRITE_TIMEOUT", 30*time.Second),
		APIIdleTimeout:      getEnvDuration("API_IDLE_TIMEOUT", 60*time.Second),
		RequestBodyMaxBytes: int64(getEnvInt("REQUEST_BODY_MAX_BYTES", 64<<10)),
		MessageRatePerSec:   getEnvFloat("MESSAGE_RATE_PER_SEC", 2),
		MessageRateBurst:    getEnvInt("MESSAGE_RATE_BURST", 4),
		ResultCacheTTL:      getEnvDuration("RESULT_CACHE_TTL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseCSVEnv(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		if _, exists := seen[clean]; exists {
			continue
		}
		seen[clean] = struct{}{}
		items = append(items, clean)
	}
	return items
}
