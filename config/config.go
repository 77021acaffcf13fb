package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Supabase project, used for diagnostics only. The service connects straight to Postgres.
	SupabaseURL            string
	SupabaseServiceRoleKey string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT
	JWTSecret    string
	JWTExpiresIn time.Duration

	// AWS S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	// LINE
	LineChannelSecret      string
	LineChannelAccessToken string

	// Server
	Port           string
	AppEnv         string
	AllowedOrigins string
	RequestTimeout time.Duration
	Timezone       string

	// File Upload
	MaxFileSize       int64
	AllowedExtensions string

	// Logging
	LogLevel string
	LogFile  string

	// Feature Toggles
	UseRedisNotifications  bool
	SkipMigrate            bool
	AutoDeleteEmptyClasses bool
	EnableCronJobs         bool
}

// GetDSN builds the connection string for the configured driver.
// DATABASE_URL wins when set (Supabase hands out a ready-made URI).
func (c *Config) GetDSN() string {
	if c.DBDriver == "mysql" {
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=UTC"
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// Location resolves the academy-local timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/academyhub")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-northeast-2"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if useSSM {
			if v, ok := paramMap[strings.ToUpper(key)]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}
	getBool := func(key, def string) bool {
		return strings.ToLower(getVal(key, def)) == "true"
	}

	jwtExpires, err := ParseDuration(getVal("JWT_EXPIRES_IN", "24h"))
	if err != nil {
		log.Fatal("Invalid JWT_EXPIRES_IN format:", err)
	}
	requestTimeout, err := ParseDuration(getVal("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		log.Fatal("Invalid REQUEST_TIMEOUT format:", err)
	}

	maxFileSize, err := strconv.ParseInt(getVal("MAX_FILE_SIZE", "10485760"), 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_FILE_SIZE format:", err)
	}

	driver := strings.ToLower(getVal("DB_DRIVER", "postgres"))
	defaultPort := "5432"
	if driver == "mysql" {
		defaultPort = "3306"
	}

	AppConfig = &Config{
		DBDriver:    driver,
		DatabaseURL: getVal("DATABASE_URL", ""),
		DBHost:      getVal("DB_HOST", "localhost"),
		DBPort:      getVal("DB_PORT", defaultPort),
		DBUser:      getVal("DB_USER", "postgres"),
		DBPassword:  getVal("DB_PASSWORD", ""),
		DBName:      getVal("DB_NAME", "postgres"),
		DBSSLMode:   getVal("DB_SSLMODE", "require"),

		SupabaseURL:            getVal("SUPABASE_URL", ""),
		SupabaseServiceRoleKey: getVal("SUPABASE_SERVICE_ROLE_KEY", ""),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "your_super_secret_jwt_key"),
		JWTExpiresIn: jwtExpires,

		AWSRegion:          getVal("AWS_REGION", "ap-northeast-2"),
		AWSAccessKeyID:     getVal("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getVal("AWS_SECRET_ACCESS_KEY", ""),
		S3BucketName:       getVal("S3_BUCKET_NAME", "academyhub-storage"),

		LineChannelSecret:      getVal("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getVal("LINE_CHANNEL_ACCESS_TOKEN", ""),

		Port:           getVal("PORT", "3000"),
		AppEnv:         getVal("APP_ENV", "development"),
		AllowedOrigins: getVal("ALLOWED_ORIGINS", "*"),
		RequestTimeout: requestTimeout,
		Timezone:       getVal("APP_TIMEZONE", "Asia/Seoul"),

		MaxFileSize:       maxFileSize,
		AllowedExtensions: getVal("ALLOWED_EXTENSIONS", "jpg,jpeg,png,webp,pdf"),

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		UseRedisNotifications:  getBool("USE_REDIS_NOTIFICATIONS", "false"),
		SkipMigrate:            getBool("SKIP_MIGRATE", "false"),
		AutoDeleteEmptyClasses: getBool("AUTO_DELETE_EMPTY_CLASSES", "true"),
		EnableCronJobs:         getBool("ENABLE_CRON_JOBS", "true"),
	}

	validateConfig(AppConfig, useSSM)
}

// ParseDuration accepts Go durations plus the day/week shorthands "7d" and "2w".
func ParseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err == nil {
		return d, nil
	}
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) > 1 {
		n, convErr := strconv.Atoi(s[:len(s)-1])
		if convErr == nil && n >= 0 {
			switch s[len(s)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns a map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	var next *string
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
			NextToken:      next,
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key := *p.Name
			if idx := strings.LastIndex(key, "/"); idx >= 0 {
				key = key[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	if err := c.Validate(); err != nil {
		log.Fatalf("%v (SSM=%v)", err, usedSSM)
	}
}

// Validate enforces production-only requirements.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if !c.IsProduction() {
		return nil
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("missing required secret JWT_SECRET in production")
	}
	if c.DatabaseURL == "" && strings.TrimSpace(c.DBPassword) == "" {
		return fmt.Errorf("missing required secret DB_PASSWORD in production")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET too short (min 16 chars)")
	}
	return nil
}
