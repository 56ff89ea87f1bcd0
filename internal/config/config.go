package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration. Precedence: CLI flags, then the YAML file,
// then environment variables (a .env file is honored), then defaults.
type Config struct {
	Listen string `yaml:"listen"`

	// CRM platform API.
	CRMBaseURL    string  `yaml:"crm_base_url"`
	CRMAPIVersion string  `yaml:"crm_api_version"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps"`
	RateBurst     int     `yaml:"rate_burst"`
	HTTPTimeout   int     `yaml:"http_timeout_seconds"`

	// Job store. Empty MongoURI selects the in-memory store.
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// Orchestration tuning.
	MaxParallelCategories int     `yaml:"max_parallel_categories"`
	SecondsPerRecord      float64 `yaml:"seconds_per_record"`

	configFile string
}

// Parse reads CLI flags, then overlays config file and environment values.
func Parse() *Config {
	c := &Config{}
	flag.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	flag.StringVar(&c.Listen, "listen", "", "HTTP listen address")
	flag.StringVar(&c.CRMBaseURL, "crm-url", "", "CRM platform API base URL")
	flag.StringVar(&c.MongoURI, "mongo-uri", "", "MongoDB connection URI (empty: in-memory job store)")
	flag.Parse()

	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
	}

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()
	c.applyEnv()
	c.applyDefaults()
	return c
}

// loadFile reads a YAML config file. File values only fill fields the CLI
// flags left empty.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.Listen == "" {
		c.Listen = file.Listen
	}
	if c.CRMBaseURL == "" {
		c.CRMBaseURL = file.CRMBaseURL
	}
	if c.MongoURI == "" {
		c.MongoURI = file.MongoURI
	}
	c.CRMAPIVersion = file.CRMAPIVersion
	c.RateLimitRPS = file.RateLimitRPS
	c.RateBurst = file.RateBurst
	c.HTTPTimeout = file.HTTPTimeout
	c.MongoDatabase = file.MongoDatabase
	c.MaxParallelCategories = file.MaxParallelCategories
	c.SecondsPerRecord = file.SecondsPerRecord
	return nil
}

func (c *Config) applyEnv() {
	if c.Listen == "" {
		c.Listen = os.Getenv("MIGRATOR_LISTEN")
	}
	if c.CRMBaseURL == "" {
		c.CRMBaseURL = os.Getenv("CRM_BASE_URL")
	}
	if c.CRMAPIVersion == "" {
		c.CRMAPIVersion = os.Getenv("CRM_API_VERSION")
	}
	if c.MongoURI == "" {
		c.MongoURI = os.Getenv("MONGO_URI")
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = os.Getenv("MONGO_DATABASE")
	}
	if c.RateLimitRPS == 0 {
		if v, err := strconv.ParseFloat(os.Getenv("CRM_RATE_LIMIT_RPS"), 64); err == nil {
			c.RateLimitRPS = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.CRMBaseURL == "" {
		c.CRMBaseURL = "https://rest.crm-platform.com/v1"
	}
	if c.CRMAPIVersion == "" {
		c.CRMAPIVersion = "2021-07-28"
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 10
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "crm_migrator"
	}
	if c.MaxParallelCategories == 0 {
		c.MaxParallelCategories = 3
	}
	if c.SecondsPerRecord == 0 {
		c.SecondsPerRecord = 0.5
	}
}
