package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingMongoURI indicates MONGO_URI is unset for a command that reads
// participant documents.
var ErrMissingMongoURI = errors.New("MONGO_URI is not set")

const dateLayout = "2006-01-02"

type Config struct {
	MongoURI   string
	Database   string
	Collection string
	// Time-windowed game export
	Site       string
	WindowFrom time.Time
	WindowTo   time.Time
	GameOutput string
	// Batch files
	InputDir  string
	OutputDir string
	// Postgres load, disabled when empty
	DatabaseURL string
	// Redis run ledger, disabled when empty
	RedisURL   string
	LedgerSize int
	// S3-compatible mirror, disabled when endpoint or bucket is empty
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
	S3UseSSL    bool
}

// File is the optional YAML overlay. Environment variables win over it.
type File struct {
	MongoURI    string `yaml:"mongo_uri"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	Site        string `yaml:"site"`
	WindowFrom  string `yaml:"window_from"`
	WindowTo    string `yaml:"window_to"`
	GameOutput  string `yaml:"game_output"`
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	LedgerSize  int    `yaml:"ledger_size"`
	S3          struct {
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Prefix    string `yaml:"prefix"`
		UseSSL    *bool  `yaml:"use_ssl"`
	} `yaml:"s3"`
}

// LoadDotenv loads .env style files into the process environment. Missing
// files are not an error.
func LoadDotenv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load resolves configuration from defaults, the YAML file at path (if
// any), then the environment.
func Load(path string) (Config, error) {
	var file File
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	useSSL := true
	if file.S3.UseSSL != nil {
		useSSL = *file.S3.UseSSL
	}

	cfg := Config{
		MongoURI:    getenv("MONGO_URI", file.MongoURI),
		Database:    getenv("PMT_DATABASE", or(file.Database, "tempDB")),
		Collection:  getenv("PMT_COLLECTION", or(file.Collection, "simulationresults")),
		Site:        getenv("PMT_SITE", or(file.Site, "arlstrong-uml-034-prolific.herokuapp.com")),
		GameOutput:  getenv("PMT_GAME_OUTPUT", or(file.GameOutput, "Data_for_PTV_2.csv")),
		InputDir:    getenv("PMT_INPUT_DIR", or(file.InputDir, "batches/input")),
		OutputDir:   getenv("PMT_OUTPUT_DIR", or(file.OutputDir, "batches/output")),
		DatabaseURL: getenv("DATABASE_URL", file.DatabaseURL),
		RedisURL:    getenv("REDIS_URL", file.RedisURL),
		LedgerSize:  getenvInt("PMT_LEDGER_SIZE", orInt(file.LedgerSize, 100)),
		S3Endpoint:  getenv("S3_ENDPOINT", file.S3.Endpoint),
		S3Bucket:    getenv("S3_BUCKET", file.S3.Bucket),
		S3AccessKey: getenv("S3_ACCESS_KEY", file.S3.AccessKey),
		S3SecretKey: getenv("S3_SECRET_KEY", file.S3.SecretKey),
		S3Prefix:    getenv("S3_PREFIX", or(file.S3.Prefix, "pmtexport")),
		S3UseSSL:    getenvBool("S3_USE_SSL", useSSL),
	}

	var err error
	cfg.WindowFrom, err = ParseDate(getenv("PMT_WINDOW_FROM", or(file.WindowFrom, "2023-04-25")))
	if err != nil {
		return Config{}, fmt.Errorf("window start: %w", err)
	}
	cfg.WindowTo, err = ParseDate(getenv("PMT_WINDOW_TO", or(file.WindowTo, "2023-04-28")))
	if err != nil {
		return Config{}, fmt.Errorf("window end: %w", err)
	}
	if !cfg.WindowFrom.Before(cfg.WindowTo) {
		return Config{}, fmt.Errorf("window start %s must be before end %s", cfg.WindowFrom.Format(dateLayout), cfg.WindowTo.Format(dateLayout))
	}
	return cfg, nil
}

// RequireMongo reports whether the document store is configured.
func (c Config) RequireMongo() error {
	if strings.TrimSpace(c.MongoURI) == "" {
		return ErrMissingMongoURI
	}
	return nil
}

// MirrorEnabled reports whether output files are uploaded.
func (c Config) MirrorEnabled() bool {
	return strings.TrimSpace(c.S3Endpoint) != "" && strings.TrimSpace(c.S3Bucket) != ""
}

// ParseDate accepts a calendar date (UTC midnight) or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD or RFC 3339", value)
	}
	return t.UTC(), nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func or(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func orInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
