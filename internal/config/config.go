package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"apartado/backend/internal/money"
)

type Config struct {
	Port                string
	AllowedOrigin       string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	IdentitySecret      string
	ManagerPIN          string
	WriteRetryAttempts  int
	ShiftLockTTLSeconds int
	DifferenceWarning   money.Money
	DifferenceCritical  money.Money
	EventsChannelPrefix string
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	attempts, err := strconv.Atoi(getEnv("WRITE_RETRY_ATTEMPTS", "3"))
	if err != nil || attempts < 1 {
		attempts = 3
	}
	lockTTL, err := strconv.Atoi(getEnv("SHIFT_LOCK_TTL_SECONDS", "10"))
	if err != nil || lockTTL < 1 {
		lockTTL = 10
	}

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		IdentitySecret:      strings.TrimSpace(os.Getenv("IDENTITY_SECRET")),
		ManagerPIN:          strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		WriteRetryAttempts:  attempts,
		ShiftLockTTLSeconds: lockTTL,
		DifferenceWarning:   getMoney("DIFFERENCE_WARNING", "50.00"),
		DifferenceCritical:  getMoney("DIFFERENCE_CRITICAL", "200.00"),
		EventsChannelPrefix: getEnv("EVENTS_CHANNEL_PREFIX", "pos:events"),
	}
	if cfg.DifferenceCritical < cfg.DifferenceWarning {
		cfg.DifferenceCritical = cfg.DifferenceWarning
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getMoney(key string, fallback string) money.Money {
	m, err := money.Parse(getEnv(key, fallback))
	if err != nil || m.IsNegative() {
		log.Printf("[config] WARN: invalid %s, using %s", key, fallback)
		m, _ = money.Parse(fallback)
	}
	return m
}
