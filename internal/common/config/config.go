// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Bus           BusConfig          `mapstructure:"bus"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Indices       IndicesConfig      `mapstructure:"indices"`
	Topics        TopicsConfig       `mapstructure:"topics"`
	Retry         RetryConfig        `mapstructure:"retry"`
	Aggregate     AggregateConfig    `mapstructure:"aggregate"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Auth          AuthConfig         `mapstructure:"auth"`
	RCRM          RCRMConfig         `mapstructure:"rcrm"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// Originator tags outbound retry envelopes; retries from other
	// originators are ignored.
	Originator string `mapstructure:"originator"`
}

// BusConfig configures the Redis Streams consumer group.
type BusConfig struct {
	Group        string `mapstructure:"group"`
	Consumer     string `mapstructure:"consumer"`
	BatchSize    int    `mapstructure:"batch_size"`
	BlockTimeout int    `mapstructure:"block_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	CloudID   string   `mapstructure:"cloud_id"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
	// Refresh is sent with every write; "wait_for" unless overridden.
	Refresh string `mapstructure:"refresh"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IndicesConfig struct {
	Job             string `mapstructure:"job"`
	JobCandidate    string `mapstructure:"job_candidate"`
	ResourceBooking string `mapstructure:"resource_booking"`
	Role            string `mapstructure:"role"`
}

// TopicsConfig holds one channel name per inbound operation.
type TopicsConfig struct {
	JobCreate string `mapstructure:"job_create"`
	JobUpdate string `mapstructure:"job_update"`
	JobDelete string `mapstructure:"job_delete"`

	JobCandidateCreate string `mapstructure:"job_candidate_create"`
	JobCandidateUpdate string `mapstructure:"job_candidate_update"`
	JobCandidateDelete string `mapstructure:"job_candidate_delete"`

	ResourceBookingCreate string `mapstructure:"resource_booking_create"`
	ResourceBookingUpdate string `mapstructure:"resource_booking_update"`
	ResourceBookingDelete string `mapstructure:"resource_booking_delete"`

	WorkPeriodCreate string `mapstructure:"work_period_create"`
	WorkPeriodUpdate string `mapstructure:"work_period_update"`
	WorkPeriodDelete string `mapstructure:"work_period_delete"`

	WorkPeriodPaymentCreate string `mapstructure:"work_period_payment_create"`
	WorkPeriodPaymentUpdate string `mapstructure:"work_period_payment_update"`
	WorkPeriodPaymentDelete string `mapstructure:"work_period_payment_delete"`

	InterviewRequest    string `mapstructure:"interview_request"`
	InterviewUpdate     string `mapstructure:"interview_update"`
	InterviewBulkUpdate string `mapstructure:"interview_bulk_update"`

	RoleCreate string `mapstructure:"role_create"`
	RoleUpdate string `mapstructure:"role_update"`
	RoleDelete string `mapstructure:"role_delete"`

	ActionRetry string `mapstructure:"action_retry"`
}

type RetryConfig struct {
	MaxRetry     int    `mapstructure:"max_retry"`
	BaseDelay    int    `mapstructure:"base_delay"`    // milliseconds
	PollInterval int    `mapstructure:"poll_interval"` // milliseconds
	QueueKey     string `mapstructure:"queue_key"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// AggregateConfig selects how nested arrays are mutated: "script" or
// "read_modify_write".
type AggregateConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// NotificationConfig holds the outbound notifier settings.
type NotificationConfig struct {
	Driver       string        `mapstructure:"driver"`  // webhook | sns
	Timeout      int           `mapstructure:"timeout"` // milliseconds
	CompanySlug  string        `mapstructure:"company_slug"`
	ContactSlug  string        `mapstructure:"contact_slug"`
	APIURL       string        `mapstructure:"api_url"`
	Job          ChannelConfig `mapstructure:"job"`
	JobCandidate ChannelConfig `mapstructure:"job_candidate"`
	AWS          struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ChannelConfig is one notification channel. Switch is "ON" or "OFF".
type ChannelConfig struct {
	Switch      string   `mapstructure:"switch"`
	Destination string   `mapstructure:"destination"`
	Statuses    []string `mapstructure:"statuses"`
}

// Enabled reports whether the channel switch is on and has a destination.
func (c ChannelConfig) Enabled() bool {
	return c.Switch == "ON" && c.Destination != ""
}

// AuthConfig holds the machine-to-machine client credentials.
type AuthConfig struct {
	M2M struct {
		TokenURL     string `mapstructure:"token_url"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		Audience     string `mapstructure:"audience"`
	} `mapstructure:"m2m"`
}

// RCRMConfig configures the recruitment CRM job sync run on job create.
type RCRMConfig struct {
	Switch      string `mapstructure:"switch"`
	APIBase     string `mapstructure:"api_base"`
	APIKey      string `mapstructure:"api_key"`
	CompanySlug string `mapstructure:"company_slug"`
	ContactSlug string `mapstructure:"contact_slug"`
	TCDomain    string `mapstructure:"tc_domain"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
	Fields      struct {
		Duration    string `mapstructure:"duration"`
		Skills      string `mapstructure:"skills"`
		ConnectLink string `mapstructure:"connect_link"`
	} `mapstructure:"fields"`
}

// Enabled reports whether job sync is switched on and has an API base.
func (r RCRMConfig) Enabled() bool {
	return r.Switch == "ON" && r.APIBase != ""
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
