package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string   `mapstructure:"apiKey"`
		WebhookSecret string   `mapstructure:"webhookSecret"`
		ProPriceIDs   []string `mapstructure:"proPriceIds"`
	} `mapstructure:"stripe"`
	AI struct {
		BaseURL string `mapstructure:"baseUrl"`
		APIKey  string `mapstructure:"apiKey"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"ai"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
	Cron struct {
		// ExpirySchedule is a cron spec for the subscription expiry sweeper.
		// Empty disables the sweeper.
		ExpirySchedule string `mapstructure:"expirySchedule"`
	} `mapstructure:"cron"`
}

// LoadConfig loads configuration from config.yml and environment variables.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env is optional in development
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("cron.expirySchedule", "@hourly")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate fails fast on configuration the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhookSecret is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	return nil
}
