// Package config loads service settings from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting of the service.
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RequestTimeout  time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int
	}

	Redis struct {
		Enabled  bool
		Host     string
		Port     int
		Password string
		DB       int
	}

	Kafka struct {
		Enabled bool
		Brokers []string
	}

	// Feed is the supplier SFTP drop.
	Feed struct {
		Host      string
		Port      int
		Username  string
		Password  string
		Dir       string
		Extension string
		Timeout   time.Duration
	}

	Pricing struct {
		Markup       float64
		DeliveryCost float64
	}

	SMTP struct {
		Host     string
		Port     int
		From     string
		Password string
	}

	// Shop identifies the business in outbound email.
	Shop struct {
		SupplierEmail string
		Phone         string
		CompanyNo     string
		WebsiteURL    string
	}

	Stripe struct {
		SecretKey      string
		PublishableKey string
		WebhookSecret  string
		SuccessURL     string
		CancelURL      string
	}

	Security struct {
		AdminJWTSecret   string
		CORSAllowOrigins []string
	}

	Sync struct {
		Interval      time.Duration
		DrainInterval time.Duration
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.ENV == "production"
}

// Load reads configuration from the named file (YAML, without
// extension) and the environment. A missing file is fine; defaults
// plus environment variables carry a full configuration.
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setDefaults()
	bindEnvVariables()

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("appName", "blmotorcycles-backend")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "5s")
	viper.SetDefault("server.requestTimeout", "30s")

	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "blmotorcycles")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("feed.host", "")
	viper.SetDefault("feed.port", 22)
	viper.SetDefault("feed.username", "")
	viper.SetDefault("feed.password", "")
	viper.SetDefault("feed.dir", ".")
	viper.SetDefault("feed.extension", ".csv")
	viper.SetDefault("feed.timeout", "30s")

	viper.SetDefault("pricing.markup", 1.5)
	viper.SetDefault("pricing.deliveryCost", 6.0)

	viper.SetDefault("smtp.host", "smtp.gmail.com")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "brett@blmotorcyclesltd.co.uk")
	viper.SetDefault("smtp.password", "")

	viper.SetDefault("shop.supplierEmail", "sales@bikeit.co.uk")
	viper.SetDefault("shop.phone", "07881274193")
	viper.SetDefault("shop.companyNo", "14122962")
	viper.SetDefault("shop.websiteURL", "https://blmotorcycles.com")

	viper.SetDefault("stripe.secretKey", "")
	viper.SetDefault("stripe.publishableKey", "")
	viper.SetDefault("stripe.webhookSecret", "")
	viper.SetDefault("stripe.successURL", "https://blmotorcycles.com/success?session_id={CHECKOUT_SESSION_ID}")
	viper.SetDefault("stripe.cancelURL", "https://blmotorcycles.com/cancel")

	viper.SetDefault("security.adminJWTSecret", "")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})

	viper.SetDefault("sync.interval", "2h")
	viper.SetDefault("sync.drainInterval", "15m")
}

func bindEnvVariables() {
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("server.requestTimeout", "SERVER_REQUEST_TIMEOUT")

	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")

	viper.BindEnv("feed.host", "FTP_HOST")
	viper.BindEnv("feed.port", "FTP_PORT")
	viper.BindEnv("feed.username", "FTP_USERNAME")
	viper.BindEnv("feed.password", "FTP_PASSWORD")
	viper.BindEnv("feed.dir", "FTP_DIR")
	viper.BindEnv("feed.extension", "FTP_EXTENSION")
	viper.BindEnv("feed.timeout", "FTP_TIMEOUT")

	viper.BindEnv("pricing.markup", "PRICING_MARKUP")
	viper.BindEnv("pricing.deliveryCost", "PRICING_DELIVERY_COST")

	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.from", "EMAIL")
	viper.BindEnv("smtp.password", "EMAIL_PASSWORD")

	viper.BindEnv("shop.supplierEmail", "SUPPLIER_EMAIL")
	viper.BindEnv("shop.phone", "PHONE")
	viper.BindEnv("shop.companyNo", "COMPANY_NO")
	viper.BindEnv("shop.websiteURL", "WEBSITE_URL")

	viper.BindEnv("stripe.secretKey", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.publishableKey", "STRIPE_PUBLISHABLE_KEY")
	viper.BindEnv("stripe.webhookSecret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("stripe.successURL", "STRIPE_SUCCESS_URL")
	viper.BindEnv("stripe.cancelURL", "STRIPE_CANCEL_URL")

	viper.BindEnv("security.adminJWTSecret", "ADMIN_JWT_SECRET")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")

	viper.BindEnv("sync.interval", "SYNC_INTERVAL")
	viper.BindEnv("sync.drainInterval", "SYNC_DRAIN_INTERVAL")
}
