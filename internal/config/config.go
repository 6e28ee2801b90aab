package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnvironment      = "staging"
	defaultHarvestBaseURL   = "https://api.harvestapp.com/v2"
	defaultHarvestUserAgent = "C360-Trello-Timer (trello@c360.com)"
	defaultCardLinkPattern  = "trello.com/c/"
	defaultHTTPAddr         = ":8080"
)

// DefaultCategories are offered when no categories are configured.
var DefaultCategories = []string{
	"Copywriting",
	"Project Management",
	"Account Management",
	"PR",
	"Design",
}

// Config holds environment- and file-driven configuration.
type Config struct {
	Environment string `yaml:"environment"`
	HTTP        struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Gateway struct {
		BaseURL             string `yaml:"base_url"` // webhook root; <base>/<environment>/<action>
		APIKey              string `yaml:"api_key" masq:"secret"`
		StartTimerURL       string `yaml:"start_timer_url"`
		StopTimerURL        string `yaml:"stop_timer_url"`
		CreateChildCardsURL string `yaml:"create_child_cards_url"`
	} `yaml:"gateway"`
	Harvest struct {
		AccessToken      string        `yaml:"access_token" masq:"secret"`
		AccountID        string        `yaml:"account_id"`
		BaseURL          string        `yaml:"base_url"` // default: https://api.harvestapp.com/v2
		UserAgent        string        `yaml:"user_agent"`
		CheckTimeout     time.Duration `yaml:"check_timeout"`
		DirectoryTimeout time.Duration `yaml:"directory_timeout"`
	} `yaml:"harvest"`
	API struct {
		Timeout       time.Duration `yaml:"timeout"`
		RetryAttempts int           `yaml:"retry_attempts"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
	} `yaml:"api"`
	MySQL struct {
		DSN string `yaml:"dsn" masq:"secret"` // optional board_user_mappings source
	} `yaml:"mysql"`
	Directory struct {
		RefreshCron string `yaml:"refresh_cron"` // empty disables scheduled refresh
	} `yaml:"directory"`
	Matching struct {
		CardLinkPattern       string `yaml:"card_link_pattern"`
		SuppressUnparsedChild bool   `yaml:"suppress_unparsed_child"`
	} `yaml:"matching"`
	Categories []string `yaml:"categories"`
	// CategoryDefaults maps a board user id or username to a default category.
	CategoryDefaults map[string]string `yaml:"category_defaults"`
	UserMappings     UserMappings      `yaml:"user_mappings"`

	// retryAttemptsSet records an explicit api.retry_attempts from the file
	// or the environment, so that 0 disables retries instead of defaulting.
	retryAttemptsSet bool
}

// UserMappings is the static board-user to tracking-account mapping.
type UserMappings struct {
	ByUsername map[string]string `yaml:"by_username"`
	ByUserID   map[string]string `yaml:"by_user_id"`
}

// HarvestConfigured reports whether tracking credentials are present.
func (c Config) HarvestConfigured() bool {
	return c.Harvest.AccessToken != "" && c.Harvest.AccountID != ""
}

// Load reads the optional YAML file at path, then applies environment
// variables on top and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
		}
		parsed, err := Parse(data)
		if err != nil {
			return cfg, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
		}
		cfg = parsed
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes without applying defaults or environment.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, goerr.Wrap(err, "invalid yaml")
	}

	var present struct {
		API struct {
			RetryAttempts *int `yaml:"retry_attempts"`
		} `yaml:"api"`
	}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return cfg, goerr.Wrap(err, "invalid yaml")
	}
	cfg.retryAttemptsSet = present.API.RetryAttempts != nil
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.HTTP.Addr, "HTTP_ADDR")

	setString(&c.Gateway.BaseURL, "N8N_BASE_URL")
	setString(&c.Gateway.APIKey, "N8N_API_KEY")
	setString(&c.Gateway.StartTimerURL, "N8N_START_TIMER_URL")
	setString(&c.Gateway.StopTimerURL, "N8N_STOP_TIMER_URL")
	setString(&c.Gateway.CreateChildCardsURL, "N8N_CREATE_CHILD_CARDS_URL")

	setString(&c.Harvest.AccessToken, "HARVEST_ACCESS_TOKEN")
	setString(&c.Harvest.AccountID, "HARVEST_ACCOUNT_ID")
	setString(&c.Harvest.BaseURL, "HARVEST_API_BASE_URL")
	setString(&c.Harvest.UserAgent, "HARVEST_USER_AGENT")

	setString(&c.MySQL.DSN, "MYSQL_DSN")
	setString(&c.Directory.RefreshCron, "DIRECTORY_REFRESH_CRON")

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"API_TIMEOUT", &c.API.Timeout},
		{"API_RETRY_DELAY", &c.API.RetryDelay},
		{"HARVEST_CHECK_TIMEOUT", &c.Harvest.CheckTimeout},
		{"HARVEST_DIRECTORY_TIMEOUT", &c.Harvest.DirectoryTimeout},
	} {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		dur, err := parseDuration(v)
		if err != nil {
			return goerr.Wrap(err, "invalid duration", goerr.V("key", d.key), goerr.V("value", v))
		}
		*d.dst = dur
	}

	if v := os.Getenv("API_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return goerr.Wrap(err, "API_RETRY_ATTEMPTS must be an integer", goerr.V("value", v))
		}
		c.API.RetryAttempts = n
		c.retryAttemptsSet = true
	}

	if v := os.Getenv("TRELLO_HARVEST_USER_MAPPINGS"); v != "" {
		m, err := parseMappingJSON(v)
		if err != nil {
			return goerr.Wrap(err, "TRELLO_HARVEST_USER_MAPPINGS must be a JSON object")
		}
		// The env mapping is keyed by either username or user id.
		c.UserMappings.ByUsername = merge(c.UserMappings.ByUsername, m)
		c.UserMappings.ByUserID = merge(c.UserMappings.ByUserID, m)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	if c.Harvest.BaseURL == "" {
		c.Harvest.BaseURL = defaultHarvestBaseURL
	}
	if c.Harvest.UserAgent == "" {
		c.Harvest.UserAgent = defaultHarvestUserAgent
	}
	if c.Harvest.CheckTimeout == 0 {
		c.Harvest.CheckTimeout = 5 * time.Second
	}
	if c.Harvest.DirectoryTimeout == 0 {
		c.Harvest.DirectoryTimeout = 10 * time.Second
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.API.RetryDelay == 0 {
		c.API.RetryDelay = time.Second
	}
	if !c.retryAttemptsSet {
		c.API.RetryAttempts = 2
	}
	if c.Matching.CardLinkPattern == "" {
		c.Matching.CardLinkPattern = defaultCardLinkPattern
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), DefaultCategories...)
	}
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
}

// validate checks all fields and reports every problem at once.
func (c *Config) validate() error {
	var errs []string
	if c.API.RetryAttempts < 0 {
		errs = append(errs, "api.retry_attempts must not be negative")
	}
	if c.API.Timeout < 0 || c.API.RetryDelay < 0 {
		errs = append(errs, "api durations must not be negative")
	}
	if c.Harvest.CheckTimeout < 0 || c.Harvest.DirectoryTimeout < 0 {
		errs = append(errs, "harvest timeouts must not be negative")
	}
	for name, raw := range map[string]string{
		"gateway.base_url":               c.Gateway.BaseURL,
		"gateway.start_timer_url":        c.Gateway.StartTimerURL,
		"gateway.stop_timer_url":         c.Gateway.StopTimerURL,
		"gateway.create_child_cards_url": c.Gateway.CreateChildCardsURL,
		"harvest.base_url":               c.Harvest.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, name+" must be an absolute URL")
		}
	}
	if c.Directory.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.Directory.RefreshCron); err != nil {
			errs = append(errs, "directory.refresh_cron is not a valid cron expression")
		}
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			errs = append(errs, "categories["+strconv.Itoa(i)+"] must not be empty")
		}
	}
	if len(errs) > 0 {
		return goerr.New("config: validation failed: "+strings.Join(errs, "; "), goerr.V("problems", errs))
	}
	return nil
}

// ActionURL returns the webhook URL for an action name, preferring explicit
// overrides over <base>/<environment>/<action>.
func (c Config) ActionURL(action string) string {
	switch action {
	case "start-timer":
		if c.Gateway.StartTimerURL != "" {
			return c.Gateway.StartTimerURL
		}
	case "stop-timer":
		if c.Gateway.StopTimerURL != "" {
			return c.Gateway.StopTimerURL
		}
	case "create-child-cards":
		if c.Gateway.CreateChildCardsURL != "" {
			return c.Gateway.CreateChildCardsURL
		}
	}
	if c.Gateway.BaseURL == "" {
		return ""
	}
	return c.Gateway.BaseURL + "/" + c.Environment + "/" + action
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// parseDuration accepts Go durations ("10s") and bare milliseconds ("10000").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// parseMappingJSON decodes {"key": 123} or {"key": "123"} into string values.
func parseMappingJSON(v string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(v))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		switch t := val.(type) {
		case json.Number:
			out[k] = t.String()
		case string:
			out[k] = t
		default:
			return nil, goerr.New("mapping value must be a number or string", goerr.V("key", k))
		}
	}
	return out, nil
}

func merge(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
