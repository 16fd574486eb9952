package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// LowStockThreshold is the default available/full ratio below which a
	// stock key shows up in the low-stock report.
	LowStockThreshold float64
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	threshold, err := strconv.ParseFloat(getEnv("LOW_STOCK_THRESHOLD", "0.2"), 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		threshold = 0.2
	}

	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPPort:    getEnv("PORT", "8080"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
			Topic:   getEnv("KAFKA_ORDER_TOPIC", "order-status-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "cylinder-ledger"),
		},
		LowStockThreshold: threshold,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
