// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. configs/config.production.yaml
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	// APP_ORIGINATOR overrides app.originator, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			// unset variables expand to "" so envFallback can still apply
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional env names when
// the YAML left them blank.
func overrideEmptyConfig(cfg *Config) {
	envFallback(&cfg.Database.Elasticsearch.Username, "ES_USERNAME")
	envFallback(&cfg.Database.Elasticsearch.Password, "ES_PASSWORD")
	envFallback(&cfg.Database.Elasticsearch.CloudID, "ES_CLOUD_ID")
	envFallback(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	envFallback(&cfg.Auth.M2M.TokenURL, "AUTH0_URL")
	envFallback(&cfg.Auth.M2M.Audience, "AUTH0_AUDIENCE")
	envFallback(&cfg.Auth.M2M.ClientID, "AUTH0_CLIENT_ID")
	envFallback(&cfg.Auth.M2M.ClientSecret, "AUTH0_CLIENT_SECRET")

	envFallback(&cfg.Notifications.Job.Destination, "ZAPIER_JOB_WEBHOOK")
	envFallback(&cfg.Notifications.JobCandidate.Destination, "ZAPIER_JOBCANDIDATE_WEBHOOK")
	envFallback(&cfg.Notifications.CompanySlug, "ZAPIER_COMPANYID_SLUG")
	envFallback(&cfg.Notifications.ContactSlug, "ZAPIER_CONTACTID_SLUG")
	envFallback(&cfg.Notifications.APIURL, "TOPCODER_API_URL")

	envFallback(&cfg.RCRM.APIBase, "RCRM_API_BASE")
	envFallback(&cfg.RCRM.APIKey, "RCRM_API_KEY")
	envFallback(&cfg.RCRM.CompanySlug, "RCRM_COMPANY_SLUG")
	envFallback(&cfg.RCRM.ContactSlug, "RCRM_CONTACT_SLUG")
	envFallback(&cfg.RCRM.TCDomain, "TC_DOMAIN")
}

func envFallback(field *string, name string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(name); val != "" {
		*field = val
	}
}

// Defaults returns a configuration holding only default values. Connection
// settings are left empty.
func Defaults() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "taas-es-processor"
	}
	if cfg.App.Originator == "" {
		cfg.App.Originator = "taas-es-processor"
	}

	// Bus defaults
	if cfg.Bus.Group == "" {
		cfg.Bus.Group = "taas-es-processor"
	}
	if cfg.Bus.Consumer == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "local"
		}
		cfg.Bus.Consumer = host
	}
	if cfg.Bus.BatchSize == 0 {
		cfg.Bus.BatchSize = 10
	}
	if cfg.Bus.BlockTimeout == 0 {
		cfg.Bus.BlockTimeout = 2000
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}
	if cfg.Database.Elasticsearch.Refresh == "" {
		cfg.Database.Elasticsearch.Refresh = "wait_for"
	}

	// Index defaults
	setDefault(&cfg.Indices.Job, "job")
	setDefault(&cfg.Indices.JobCandidate, "job_candidate")
	setDefault(&cfg.Indices.ResourceBooking, "resource_booking")
	setDefault(&cfg.Indices.Role, "role")

	applyTopicDefaults(&cfg.Topics)

	// Retry defaults
	if cfg.Retry.MaxRetry == 0 {
		cfg.Retry.MaxRetry = 10
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500
	}
	if cfg.Retry.PollInterval == 0 {
		cfg.Retry.PollInterval = 250
	}
	if cfg.Retry.BatchSize == 0 {
		cfg.Retry.BatchSize = 50
	}
	setDefault(&cfg.Retry.QueueKey, "taas-es-processor:retry")

	setDefault(&cfg.Aggregate.Strategy, StrategyScript)

	// Notification defaults
	setDefault(&cfg.Notifications.Driver, "webhook")
	if cfg.Notifications.Timeout == 0 {
		cfg.Notifications.Timeout = 30000
	}
	setDefault(&cfg.Notifications.Job.Switch, "OFF")
	setDefault(&cfg.Notifications.JobCandidate.Switch, "OFF")
	if len(cfg.Notifications.Job.Statuses) == 0 {
		cfg.Notifications.Job.Statuses = []string{"sourcing", "in-review", "assigned", "closed", "cancelled"}
	}
	if len(cfg.Notifications.JobCandidate.Statuses) == 0 {
		cfg.Notifications.JobCandidate.Statuses = []string{
			"client rejected - screening",
			"client rejected - interview",
			"interview",
			"selected",
		}
	}

	setDefault(&cfg.RCRM.Switch, "OFF")
	setDefault(&cfg.RCRM.TCDomain, "topcoder-dev.com")
	if cfg.RCRM.Timeout == 0 {
		cfg.RCRM.Timeout = 10000
	}

	// Logging defaults
	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")
	setDefault(&cfg.Logging.Output, "stdout")

	setDefault(&cfg.Metrics.Address, ":8080")
}

func applyTopicDefaults(t *TopicsConfig) {
	setDefault(&t.JobCreate, "taas.job.create")
	setDefault(&t.JobUpdate, "taas.job.update")
	setDefault(&t.JobDelete, "taas.job.delete")
	setDefault(&t.JobCandidateCreate, "taas.jobcandidate.create")
	setDefault(&t.JobCandidateUpdate, "taas.jobcandidate.update")
	setDefault(&t.JobCandidateDelete, "taas.jobcandidate.delete")
	setDefault(&t.ResourceBookingCreate, "taas.resourcebooking.create")
	setDefault(&t.ResourceBookingUpdate, "taas.resourcebooking.update")
	setDefault(&t.ResourceBookingDelete, "taas.resourcebooking.delete")
	setDefault(&t.WorkPeriodCreate, "taas.workperiod.create")
	setDefault(&t.WorkPeriodUpdate, "taas.workperiod.update")
	setDefault(&t.WorkPeriodDelete, "taas.workperiod.delete")
	setDefault(&t.WorkPeriodPaymentCreate, "taas.workperiodpayment.create")
	setDefault(&t.WorkPeriodPaymentUpdate, "taas.workperiodpayment.update")
	setDefault(&t.WorkPeriodPaymentDelete, "taas.workperiodpayment.delete")
	setDefault(&t.InterviewRequest, "taas.interview.requested")
	setDefault(&t.InterviewUpdate, "taas.interview.update")
	setDefault(&t.InterviewBulkUpdate, "taas.interview.bulkUpdate")
	setDefault(&t.RoleCreate, "taas.role.requested")
	setDefault(&t.RoleUpdate, "taas.role.update")
	setDefault(&t.RoleDelete, "taas.role.delete")
	setDefault(&t.ActionRetry, "taas.action.retry")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

const (
	StrategyScript          = "script"
	StrategyReadModifyWrite = "read_modify_write"
)

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.CloudID == "" {
		return fmt.Errorf("database.elasticsearch.addresses, url or cloud_id is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Aggregate.Strategy {
	case StrategyScript, StrategyReadModifyWrite:
	default:
		return fmt.Errorf("aggregate.strategy must be %q or %q, got %q",
			StrategyScript, StrategyReadModifyWrite, cfg.Aggregate.Strategy)
	}

	switch cfg.Notifications.Driver {
	case "webhook":
	case "sns":
		if cfg.Notifications.AWS.Region == "" {
			return fmt.Errorf("notifications.aws.region is required for the sns driver")
		}
	default:
		return fmt.Errorf("notifications.driver must be webhook or sns, got %q", cfg.Notifications.Driver)
	}

	for name, sw := range map[string]string{
		"notifications.job.switch":           cfg.Notifications.Job.Switch,
		"notifications.job_candidate.switch": cfg.Notifications.JobCandidate.Switch,
		"rcrm.switch":                        cfg.RCRM.Switch,
	} {
		if sw != "ON" && sw != "OFF" {
			return fmt.Errorf("%s must be ON or OFF, got %q", name, sw)
		}
	}

	if cfg.Retry.MaxRetry < 0 {
		return fmt.Errorf("retry.max_retry must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
