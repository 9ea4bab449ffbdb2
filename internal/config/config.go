/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the platform-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	HorizonURL           string `mapstructure:"HORIZON_URL"`
	PlatformAPIBaseURL   string `mapstructure:"PLATFORM_API_BASE_URL"`
	PlatformAuthSecret   string `mapstructure:"PLATFORM_AUTH_SECRET"`
	CustodyWebhookSecret string `mapstructure:"CUSTODY_WEBHOOK_SECRET"`
	WebhookDedupTTLMin   int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`

	// Operator-configured message texts for custody-driven notifications.
	PaymentReceivedMessage string `mapstructure:"PAYMENT_RECEIVED_MESSAGE"`
	PaymentFailedMessage   string `mapstructure:"PAYMENT_FAILED_MESSAGE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("HORIZON_URL", "https://horizon-testnet.stellar.org")
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", 1440)
	viper.SetDefault("PAYMENT_RECEIVED_MESSAGE", "payment received")
	viper.SetDefault("PAYMENT_FAILED_MESSAGE", "payment failed")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("HORIZON_URL")
	_ = viper.BindEnv("PLATFORM_API_BASE_URL")
	_ = viper.BindEnv("PLATFORM_AUTH_SECRET")
	_ = viper.BindEnv("CUSTODY_WEBHOOK_SECRET")
	_ = viper.BindEnv("WEBHOOK_DEDUP_TTL_MINUTES")
	_ = viper.BindEnv("PAYMENT_RECEIVED_MESSAGE")
	_ = viper.BindEnv("PAYMENT_FAILED_MESSAGE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.HorizonURL = strings.TrimSuffix(strings.TrimSpace(config.HorizonURL), "/")
	config.PlatformAPIBaseURL = strings.TrimSuffix(strings.TrimSpace(config.PlatformAPIBaseURL), "/")

	if config.WebhookDedupTTLMin <= 0 {
		config.WebhookDedupTTLMin = 1440
	}
	if strings.TrimSpace(config.PaymentReceivedMessage) == "" {
		config.PaymentReceivedMessage = "payment received"
	}
	if strings.TrimSpace(config.PaymentFailedMessage) == "" {
		config.PaymentFailedMessage = "payment failed"
	}

	return
}
