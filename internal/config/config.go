package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Files    FilesConfig    `json:"files"`
	Security SecurityConfig `json:"security"`
	Payments PaymentsConfig `json:"payments"`
	Chain    ChainConfig    `json:"chain"`
	Notify   NotifyConfig   `json:"notify"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
	PublicBaseURL   string        `json:"public_base_url"`
}

// StorageConfig selects the key-value backend: memory, postgres or dynamodb.
type StorageConfig struct {
	Backend  string         `json:"backend"`
	Database DatabaseConfig `json:"database"`
	DynamoDB DynamoDBConfig `json:"dynamodb"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

type DynamoDBConfig struct {
	Table    string `json:"table"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
}

// FilesConfig selects where MRV evidence files go: memory or s3.
type FilesConfig struct {
	Backend        string        `json:"backend"`
	Bucket         string        `json:"bucket"`
	Region         string        `json:"region"`
	Endpoint       string        `json:"endpoint"`
	ForcePathStyle bool          `json:"force_path_style"`
	PresignTTL     time.Duration `json:"presign_ttl"`
}

// AWSCredentials are optional static keys; the default chain is used otherwise.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret         string         `json:"jwt_secret"`
	TokenIssuer       string         `json:"token_issuer"`
	TokenTTL          time.Duration  `json:"token_ttl"`
	VerifierAllowList []string       `json:"verifier_allow_list"`
	AWS               AWSCredentials `json:"aws"`
}

// PaymentsConfig holds the pricing used for checkout sessions and payouts.
type PaymentsConfig struct {
	USDPerCredit    float64 `json:"usd_per_credit"`
	INRPerUSD       float64 `json:"inr_per_usd"`
	PlatformFeeRate float64 `json:"platform_fee_rate"`
	CheckoutBaseURL string  `json:"checkout_base_url"`
}

// ChainConfig drives the simulated ledger.
type ChainConfig struct {
	Network           string        `json:"network"`
	ConfirmationDelay time.Duration `json:"confirmation_delay"`
	ConfirmationCron  string        `json:"confirmation_cron"`
}

// NotifyConfig enables the optional AWS delivery channels. An empty topic
// or sender address leaves that channel off.
type NotifyConfig struct {
	Region      string `json:"region"`
	SNSTopicARN string `json:"sns_topic_arn"`
	EmailFrom   string `json:"email_from"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// DefaultVerifierAllowList is the set of emails allowed to register as NCCR
// verifiers when none is configured.
var DefaultVerifierAllowList = []string{
	"nccr.admin@gov.in",
	"verifier1@nccr.gov.in",
	"verifier2@nccr.gov.in",
	"climate.officer@nccr.gov.in",
	"blue.carbon@nccr.gov.in",
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			PublicBaseURL:   "http://localhost:8080",
		},
		Storage: StorageConfig{
			Backend: "memory",
			Database: DatabaseConfig{
				Host:           "localhost",
				Port:           5432,
				User:           os.Getenv("USER"),
				DBName:         "samudra_registry",
				SSLMode:        "disable",
				MaxConnections: 20,
				MaxIdleConns:   5,
				MaxLifetime:    30 * time.Minute,
			},
			DynamoDB: DynamoDBConfig{
				Table:  "samudra-registry",
				Region: "ap-south-1",
			},
		},
		Files: FilesConfig{
			Backend:    "memory",
			Bucket:     "mrv-files",
			Region:     "ap-south-1",
			PresignTTL: 7 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			TokenIssuer:       "samudra-ledger",
			TokenTTL:          24 * time.Hour,
			VerifierAllowList: append([]string(nil), DefaultVerifierAllowList...),
		},
		Payments: PaymentsConfig{
			USDPerCredit:    15,
			INRPerUSD:       83,
			PlatformFeeRate: 0.10,
			CheckoutBaseURL: "http://localhost:3000/checkout",
		},
		Chain: ChainConfig{
			Network:           "testnet",
			ConfirmationDelay: 30 * time.Second,
			ConfirmationCron:  "@every 15s",
		},
		Notify:  NotifyConfig{Region: "ap-south-1"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	var firstErr error
	setErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	envString("SERVER_HOST", &config.Server.Host)
	setErr(envInt("SERVER_PORT", &config.Server.Port))
	envString("PUBLIC_BASE_URL", &config.Server.PublicBaseURL)
	envList("CORS_ALLOWED_ORIGINS", &config.Server.AllowedOrigins)

	envString("STORAGE_BACKEND", &config.Storage.Backend)
	envString("DATABASE_HOST", &config.Storage.Database.Host)
	setErr(envInt("DATABASE_PORT", &config.Storage.Database.Port))
	envString("DATABASE_USER", &config.Storage.Database.User)
	envString("DATABASE_PASSWORD", &config.Storage.Database.Password)
	envString("DATABASE_DBNAME", &config.Storage.Database.DBName)
	envString("DATABASE_SSLMODE", &config.Storage.Database.SSLMode)
	envString("DYNAMODB_TABLE", &config.Storage.DynamoDB.Table)
	envString("DYNAMODB_REGION", &config.Storage.DynamoDB.Region)
	envString("DYNAMODB_ENDPOINT", &config.Storage.DynamoDB.Endpoint)

	envString("FILES_BACKEND", &config.Files.Backend)
	envString("S3_BUCKET", &config.Files.Bucket)
	envString("S3_REGION", &config.Files.Region)
	envString("S3_ENDPOINT", &config.Files.Endpoint)
	setErr(envDuration("FILES_PRESIGN_TTL", &config.Files.PresignTTL))

	envString("JWT_SECRET", &config.Security.JWTSecret)
	envString("JWT_ISSUER", &config.Security.TokenIssuer)
	setErr(envDuration("JWT_TTL", &config.Security.TokenTTL))
	envList("NCCR_VERIFIER_ALLOW_LIST", &config.Security.VerifierAllowList)
	envString("AWS_ACCESS_KEY_ID", &config.Security.AWS.AccessKeyID)
	envString("AWS_SECRET_ACCESS_KEY", &config.Security.AWS.SecretAccessKey)

	setErr(envFloat("PAYMENTS_USD_PER_CREDIT", &config.Payments.USDPerCredit))
	setErr(envFloat("PAYMENTS_INR_PER_USD", &config.Payments.INRPerUSD))
	setErr(envFloat("PAYMENTS_PLATFORM_FEE_RATE", &config.Payments.PlatformFeeRate))
	envString("PAYMENTS_CHECKOUT_BASE_URL", &config.Payments.CheckoutBaseURL)

	envString("CHAIN_NETWORK", &config.Chain.Network)
	setErr(envDuration("CHAIN_CONFIRMATION_DELAY", &config.Chain.ConfirmationDelay))
	envString("CHAIN_CONFIRMATION_CRON", &config.Chain.ConfirmationCron)

	envString("NOTIFY_REGION", &config.Notify.Region)
	envString("NOTIFY_SNS_TOPIC_ARN", &config.Notify.SNSTopicARN)
	envString("NOTIFY_EMAIL_FROM", &config.Notify.EmailFrom)

	envString("LOG_LEVEL", &config.Logging.Level)
	return firstErr
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envList(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres", "dynamodb":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Files.Backend {
	case "memory", "s3":
	default:
		return fmt.Errorf("unknown files backend %q", c.Files.Backend)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Payments.PlatformFeeRate < 0 || c.Payments.PlatformFeeRate >= 1 {
		return fmt.Errorf("platform fee rate must be in [0,1)")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
