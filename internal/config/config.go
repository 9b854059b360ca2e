package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const (
	BlobStoreS3     = "s3"
	BlobStoreMemory = "memory"

	RecordStorePostgres = "postgres"
	RecordStoreMongo    = "mongo"
	RecordStoreMemory   = "memory"

	// LookupFilename matches records on the filename field only.
	LookupFilename = "filename"
	// LookupNamespaced matches records on company, project and filename.
	LookupNamespaced = "namespaced"

	UploadInsert = "insert"
	UploadUpsert = "upsert"
)

// Ten years; the link is treated as permanent by clients.
const defaultSignedURLTTL = 10 * 365 * 24 * time.Hour

// MaxPresignTTL is the longest lifetime S3 and R2 honour for a SigV4
// presigned URL.
const MaxPresignTTL = 7 * 24 * time.Hour

type S3Config struct {
	AccountID       string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
}

type MongoConfig struct {
	URI      string
	Database string
}

type Config struct {
	Port         string
	Environment  string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CorsConfig   cors.Options

	BlobStore   string
	RecordStore string
	DB_URL      string
	Mongo       MongoConfig
	S3          S3Config

	SignedURLTTL    time.Duration
	MaxUploadSize   int64
	LookupMode      string
	UploadMode      string
	StrictFilenames bool
}

// Load reads ENV_FILE (default .env) if present and builds the Config from
// the environment.
func Load() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug().Str("file", envFile).Msg("no env file found")
	} else {
		log.Info().Str("file", envFile).Msg("loaded env file")
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}
	return cfg, nil
}

// FromEnv builds the Config from the process environment only.
func FromEnv() (Config, error) {
	var err error
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CorsConfig:  CorsConfig(),
		BlobStore:   getEnv("BLOB_STORE", BlobStoreS3),
		RecordStore: getEnv("RECORD_STORE", RecordStorePostgres),
		DB_URL:      getEnv("DB_URL", ""),
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "lockbox"),
		},
		S3: S3Config{
			AccountID:       getEnv("S3_ACCOUNT_ID", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("S3_BUCKET_NAME", ""),
			Region:          getEnv("S3_REGION", "auto"),
		},
		LookupMode: getEnv("LOOKUP_MODE", LookupFilename),
		UploadMode: getEnv("UPLOAD_MODE", UploadInsert),
	}

	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SignedURLTTL, err = getDuration("SIGNED_URL_TTL", defaultSignedURLTTL); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadSize, err = getInt64("MAX_UPLOAD_SIZE", 100<<20); err != nil {
		return Config{}, err
	}
	if cfg.StrictFilenames, err = getBool("STRICT_FILENAMES", false); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.BlobStore {
	case BlobStoreS3:
		if c.S3.BucketName == "" {
			return fmt.Errorf("S3_BUCKET_NAME is required for blob store %q", c.BlobStore)
		}
		if c.S3.Endpoint == "" && c.S3.AccountID == "" {
			return fmt.Errorf("S3_ENDPOINT or S3_ACCOUNT_ID is required for blob store %q", c.BlobStore)
		}
	case BlobStoreMemory:
	default:
		return fmt.Errorf("unknown BLOB_STORE %q", c.BlobStore)
	}

	switch c.RecordStore {
	case RecordStorePostgres:
		if c.DB_URL == "" {
			return fmt.Errorf("DB_URL is required for record store %q", c.RecordStore)
		}
	case RecordStoreMongo, RecordStoreMemory:
	default:
		return fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore)
	}

	if c.LookupMode != LookupFilename && c.LookupMode != LookupNamespaced {
		return fmt.Errorf("unknown LOOKUP_MODE %q", c.LookupMode)
	}
	if c.UploadMode != UploadInsert && c.UploadMode != UploadUpsert {
		return fmt.Errorf("unknown UPLOAD_MODE %q", c.UploadMode)
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// Warnings lists settings that load but will not behave as configured.
func (c Config) Warnings() []string {
	var warnings []string
	if c.BlobStore == BlobStoreS3 && c.SignedURLTTL > MaxPresignTTL {
		warnings = append(warnings, fmt.Sprintf(
			"SIGNED_URL_TTL %s exceeds the %s presign limit, download links stop working after %s",
			c.SignedURLTTL, MaxPresignTTL, MaxPresignTTL))
	}
	return warnings
}

// S3Endpoint returns the configured endpoint, or the R2 endpoint derived
// from the account id.
func (c S3Config) S3Endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// CorsConfig allows every origin on every route.
func CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}
}
