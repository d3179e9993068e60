package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	App struct {
		Name string
		Port string
	}

	Auth struct {
		JWTSecret string
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Kafka struct {
		Brokers       []string
		GroupID       string
		JudgedTopic   string
		IngressTopics []string
	}

	Judge struct {
		ExecutorURL   string
		Languages     []string
		Workers       int
		QueueSize     int
		TimeLimit     time.Duration
		SystemRetries int
	}

	Rooms struct {
		MaxMembers   int
		IdleTTL      time.Duration
		ReplayBuffer int
		SendBuffer   int
	}

	RateLimit struct {
		Requests int
		Window   time.Duration
	}
}

var Config AppConfig

func InitConfig(DevMode bool) *AppConfig {
	if DevMode {
		if err := godotenv.Load(); err != nil {
			log.Error().Err(err).Msg("Error loading .env file")
		}
	}

	Config.App.Name = getEnv("APP_NAME", "cdex-judge-service")
	Config.App.Port = getEnv("PORT", "6002")

	Config.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	Config.Redis.Host = getEnv("REDIS_HOST", "localhost")
	Config.Redis.Port = getEnvInt("REDIS_PORT", 6379)
	Config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	Config.Redis.DB = getEnvInt("REDIS_DB", 0)

	Config.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	Config.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", "judge-service")
	Config.Kafka.JudgedTopic = getEnv("KAFKA_JUDGED_TOPIC", "submission.judged")
	Config.Kafka.IngressTopics = strings.Split(
		getEnv("KAFKA_INGRESS_TOPICS", "leaderboard.updated,contest.started,contest.ended"), ",")

	Config.Judge.ExecutorURL = getEnv("EXECUTOR_URL", "http://localhost:7100/v1/execute")
	Config.Judge.Languages = strings.Split(getEnv("JUDGE_LANGUAGES", "python,javascript,cpp,java"), ",")
	Config.Judge.Workers = getEnvInt("JUDGE_WORKERS", 4)
	Config.Judge.QueueSize = getEnvInt("JUDGE_QUEUE_SIZE", 64)
	Config.Judge.TimeLimit = getEnvDuration("JUDGE_TIME_LIMIT", 10*time.Second)
	Config.Judge.SystemRetries = getEnvInt("JUDGE_SYSTEM_RETRIES", 2)

	Config.Rooms.MaxMembers = getEnvInt("ROOM_MAX_MEMBERS", 64)
	Config.Rooms.IdleTTL = getEnvDuration("ROOM_IDLE_TTL", 5*time.Minute)
	Config.Rooms.ReplayBuffer = getEnvInt("ROOM_REPLAY_BUFFER", 256)
	Config.Rooms.SendBuffer = getEnvInt("ROOM_SEND_BUFFER", 256)

	Config.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", 30)
	Config.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)

	return &Config
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
