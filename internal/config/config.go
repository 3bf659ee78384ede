package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL          string
	PlacesAPIKey       string
	PlacesBaseURL      string
	DatabasePath       string
	HTTPTimeoutSeconds int
	LogLevel           string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		ServerURL:          getEnv("SERVER_URL", "http://localhost:3000"),
		PlacesAPIKey:       getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL:      getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		DatabasePath:       getEnv("DATABASE_URL", "localmart.db"),
		HTTPTimeoutSeconds: getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
	}

	if AppConfig.PlacesAPIKey == "" {
		log.Println("PLACES_API_KEY is not set, location search will be unavailable")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
