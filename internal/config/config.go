package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "agent.yaml"

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Search   SearchConfig   `yaml:"search"`
	Discover DiscoverConfig `yaml:"discover"`
	Verify   VerifyConfig   `yaml:"verify"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Draft    DraftConfig    `yaml:"draft"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	LLM      LLMConfig      `yaml:"llm"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Events   EventsConfig   `yaml:"events"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" validate:"oneof=postgres memory"`
	DatabaseURL string `yaml:"-" validate:"required_if=Driver postgres"`
	PageSize    int    `yaml:"page_size" validate:"gte=1,lte=1000"`
}

type SearchConfig struct {
	Backend        string        `yaml:"backend" validate:"oneof=serper searxng"`
	SerperAPIKey   string        `yaml:"-"`
	SerperURL      string        `yaml:"serper_url" validate:"omitempty,url"`
	SearxngURL     string        `yaml:"searxng_url" validate:"omitempty,url"`
	Country        string        `yaml:"country"`
	Language       string        `yaml:"language"`
	TimeRange      string        `yaml:"time_range"`
	ResultsPerPage int           `yaml:"results_per_page" validate:"gte=1,lte=100"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
}

type DiscoverConfig struct {
	PendingFile  string        `yaml:"pending_file" validate:"required"`
	HistoricFile string        `yaml:"historic_file" validate:"required"`
	Domains      []string      `yaml:"domains" validate:"min=1,dive,required"`
	PageCap      int           `yaml:"page_cap" validate:"gte=1"`
	DelayMin     time.Duration `yaml:"delay_min" validate:"gte=0"`
	DelayMax     time.Duration `yaml:"delay_max" validate:"gtefield=DelayMin"`
	Limit        Limit         `yaml:"limit"`
}

type VerifyConfig struct {
	Limit           Limit `yaml:"limit"`
	InterestGate    bool  `yaml:"interest_gate"`
	IncludeRejected bool  `yaml:"include_rejected"`
	// MillionVerifier
	OracleAPIKey      string        `yaml:"-"`
	OracleURL         string        `yaml:"oracle_url" validate:"omitempty,url"`
	OracleConcurrency int           `yaml:"oracle_concurrency" validate:"gte=1,lte=20"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout" validate:"gt=0"`
}

type EnrichConfig struct {
	Limit        Limit         `yaml:"limit"`
	From         string        `yaml:"from" validate:"oneof=verified new"`
	CharsBudget  int           `yaml:"chars_budget" validate:"gte=1"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	Interlocutor bool          `yaml:"interlocutor"`
}

type DraftConfig struct {
	Limit Limit `yaml:"limit"`
}

type DispatchConfig struct {
	Limit       Limit         `yaml:"limit"`
	Mode        string        `yaml:"mode" validate:"oneof=draft template"`
	LeaseTTL    time.Duration `yaml:"lease_ttl" validate:"gt=0"`
	RetryErrors bool          `yaml:"retry_errors"`
}

type LLMConfig struct {
	Backend string        `yaml:"backend" validate:"oneof=ollama openai"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Model   string        `yaml:"model" validate:"required"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type DeliveryConfig struct {
	Provider     string   `yaml:"provider" validate:"oneof=resend smtp"`
	ResendAPIKey string   `yaml:"-"`
	ResendURL    string   `yaml:"resend_url" validate:"omitempty,url"`
	SMTPHost     string   `yaml:"smtp_host" validate:"required_if=Provider smtp"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUser     string   `yaml:"-"`
	SMTPPassword string   `yaml:"-"`
	SMTPDomains  []string `yaml:"smtp_domains" validate:"required_if=Provider smtp,dive,fqdn"`
}

type EventsConfig struct {
	AMQPURL string `yaml:"-"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReclaimEvery   time.Duration `yaml:"reclaim_every" validate:"gt=0"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the configuration used when agent.yaml omits a value.
func Default() Config {
	return Config{
		Store: StoreConfig{Driver: "postgres", PageSize: 1000},
		Search: SearchConfig{
			Backend:        "serper",
			SerperURL:      "https://google.serper.dev/search",
			SearxngURL:     "http://localhost:8080",
			Country:        "fr",
			Language:       "fr",
			TimeRange:      "qdr:m",
			ResultsPerPage: 10,
			Timeout:        30 * time.Second,
		},
		Discover: DiscoverConfig{
			PendingFile:  "input.txt",
			HistoricFile: "historic.txt",
			Domains: []string{
				"@gmail.com", "@yahoo.fr", "@hotmail.com", "@outlook.com", "@live.com",
				"@msn.com", "@aol.com", "@yahoo.com", "@laposte.net", "@free.fr",
			},
			PageCap:  10,
			DelayMin: 1 * time.Second,
			DelayMax: 3 * time.Second,
			Limit:    Unlimited,
		},
		Verify: VerifyConfig{
			Limit:             Unlimited,
			OracleURL:         "https://api.millionverifier.com/api/v3/",
			OracleConcurrency: 5,
			OracleTimeout:     20 * time.Second,
		},
		Enrich: EnrichConfig{
			Limit:        Unlimited,
			From:         "verified",
			CharsBudget:  1000,
			FetchTimeout: 15 * time.Second,
		},
		Draft: DraftConfig{Limit: 4},
		Dispatch: DispatchConfig{
			Limit:    1,
			Mode:     "draft",
			LeaseTTL: 10 * time.Minute,
		},
		LLM: LLMConfig{
			Backend: "ollama",
			BaseURL: "http://127.0.0.1:11434",
			Model:   "qwen2.5:7b-instruct-q4_K_M",
			Timeout: 120 * time.Second,
		},
		Delivery: DeliveryConfig{
			Provider:  "resend",
			ResendURL: "https://api.resend.com",
			SMTPPort:  587,
		},
		HTTP: HTTPConfig{
			Port:           8080,
			ReclaimEvery:   time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{MaxSizeMB: 50, MaxBackups: 5},
	}
}

// Load reads .env, the YAML run configuration at path (agent.yaml when empty;
// a missing default file is not an error) and environment overrides, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Store.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Search.SerperAPIKey, "SERPER_API_KEY")
	setString(&cfg.Search.SearxngURL, "SEARXNG_BASE_URL")
	setString(&cfg.Search.Backend, "SEARCH_BACKEND")
	setString(&cfg.Verify.OracleAPIKey, "MILLIONVERIFIER_API_KEY")
	setString(&cfg.LLM.Backend, "LLM_BACKEND")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.Delivery.ResendAPIKey, "RESEND_API_KEY")
	setString(&cfg.Delivery.SMTPHost, "MAIL_HOST")
	setString(&cfg.Delivery.SMTPUser, "MAIL_USER")
	setString(&cfg.Delivery.SMTPPassword, "MAIL_PASS")
	setString(&cfg.Events.AMQPURL, "AMQP_URL")
	setString(&cfg.Log.File, "LOG_FILE")

	if v := os.Getenv("HTTP_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = parsed
		}
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Delivery.SMTPPort = parsed
		}
	}
}

var validate = validator.New()

// Validate checks struct constraints; the returned error lists every failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid fields: %s", strings.Join(msgs, ", "))
}
