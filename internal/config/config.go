package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"NewsAnalyst/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWS_ANALYST_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	fetchCronEnv      = "FETCH_CRON"
	httpPortEnv       = "HTTP_PORT"
	llmProviderEnv    = "LLM_PROVIDER"
	llmModelEnv       = "LLM_MODEL"
	llmBaseURLEnv     = "LLM_BASE_URL"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	redisURLEnv       = "REDIS_URL"
	searchIndexEnv    = "SEARCH_INDEX_PATH"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	LLM           LLMConfig          `yaml:"llm"`
	Selection     SelectionConfig    `yaml:"selection"`
	Sessions      SessionConfig      `yaml:"sessions"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Search        SearchConfig       `yaml:"search"`
	Redis         RedisConfig        `yaml:"redis"`
	Analysis      AnalysisConfig     `yaml:"analysis"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the article store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when fetch cycles run.
type SchedulerConfig struct {
	CronExpression string `yaml:"cronExpression"`
	Timezone       string `yaml:"timezone"`
	// Freshness skips the start-up cycle when the newest article is younger.
	Freshness  time.Duration  `yaml:"freshness"`
	RunOnStart bool           `yaml:"runOnStart"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

type HTTPConfig struct {
	Port        string   `yaml:"port"`
	CorsOrigins []string `yaml:"corsOrigins"`
	UseHTTP2    bool     `yaml:"useHttp2"`
}

// LLMConfig describes the inference provider.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"apiKey"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"baseUrl"`
	MaxRetries int    `yaml:"maxRetries"`

	ShortlistTimeout time.Duration `yaml:"shortlistTimeout"`
	ComposeTimeout   time.Duration `yaml:"composeTimeout"`
	AnalysisTimeout  time.Duration `yaml:"analysisTimeout"`
}

// SelectionConfig bounds the shortlist and browse flows.
type SelectionConfig struct {
	CandidateWindow int     `yaml:"candidateWindow"`
	ShortlistSize   int     `yaml:"shortlistSize"`
	BrowseSize      int     `yaml:"browseSize"`
	BrowseWindow    int     `yaml:"browseWindow"`
	USShare         float64 `yaml:"usShare"`
	MaxArticleChars int     `yaml:"maxArticleChars"`
	FallbackLimit   int     `yaml:"fallbackLimit"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type FetchConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ExtractFullText bool          `yaml:"extractFullText"`
	UserAgent       string        `yaml:"userAgent"`
	LockKey         string        `yaml:"lockKey"`
}

// SearchConfig enables the full-text index. An empty path keeps it in memory.
type SearchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	IndexPath string `yaml:"indexPath"`
}

// RedisConfig enables the shared fetch lock when URL is set.
type RedisConfig struct {
	URL     string        `yaml:"url"`
	LockTTL time.Duration `yaml:"lockTtl"`
}

type AnalysisConfig struct {
	Enabled       bool `yaml:"enabled"`
	BatchSize     int  `yaml:"batchSize"`
	MaxInputChars int  `yaml:"maxInputChars"`
	// MaxAttempts is how many failed passes an article gets.
	MaxAttempts   int  `yaml:"maxAttempts"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SourceConfig is one feed with its region and quota.
type SourceConfig struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
	Quota  int    `yaml:"quota"`
	Feed   string `yaml:"feed"`
}

// SourceProfiles converts the configured sources to domain profiles.
func (c Config) SourceProfiles() []domain.SourceProfile {
	out := make([]domain.SourceProfile, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, domain.SourceProfile{
			Name:   s.Name,
			Region: domain.Region(strings.ToUpper(strings.TrimSpace(s.Region))),
			Quota:  s.Quota,
			Feed:   s.Feed,
		})
	}
	return out
}

// Load reads .env and the YAML configuration (if present) and applies
// environment overrides on top of the defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if parsed, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = parsed
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes YAML over the defaults. A sources list in the file replaces
// the default one entirely.
func Parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	cfg.Sources = nil
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultSources()
	}
	cfg.bindTimezone()
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.maxRetries must not be negative"))
	}

	if c.Selection.ShortlistSize <= 0 || c.Selection.CandidateWindow <= 0 {
		errs = append(errs, errors.New("selection sizes must be positive"))
	}
	if c.Selection.BrowseSize <= 0 || c.Selection.BrowseSize > 9 {
		errs = append(errs, errors.New("selection.browseSize must be between 1 and 9"))
	}
	if c.Selection.USShare < 0 || c.Selection.USShare > 1 {
		errs = append(errs, errors.New("selection.usShare must be within [0,1]"))
	}
	if c.Sessions.TTL <= 0 {
		errs = append(errs, errors.New("sessions.ttl must be positive"))
	}

	for _, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, errors.New("source without name"))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(fetchCronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(httpPortEnv); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			log.Printf("config: ignoring non-numeric %s=%s", httpPortEnv, v)
		} else {
			c.HTTP.Port = v
		}
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}
	keyEnv := openAIAPIKeyEnv
	if c.LLM.Provider == ProviderAnthropic {
		keyEnv = anthropicKeyEnv
	}
	if v := os.Getenv(keyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(searchIndexEnv); v != "" {
		c.Search.IndexPath = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: "news_analyst.db"},
		Scheduler: SchedulerConfig{
			CronExpression: "@every 24h",
			Timezone:       defaultTimezone,
			Freshness:      6 * time.Hour,
			RunOnStart:     true,
			location:       tz,
		},
		HTTP: HTTPConfig{Port: "8080", CorsOrigins: []string{"*"}},
		LLM: LLMConfig{
			Provider:         ProviderOpenAI,
			Model:            "gpt-4o-mini",
			ShortlistTimeout: 20 * time.Second,
			ComposeTimeout:   60 * time.Second,
			AnalysisTimeout:  30 * time.Second,
		},
		Selection: SelectionConfig{
			CandidateWindow: 60,
			ShortlistSize:   10,
			BrowseSize:      9,
			BrowseWindow:    100,
			USShare:         0.7,
			MaxArticleChars: 4000,
			FallbackLimit:   10,
		},
		Sessions: SessionConfig{TTL: 5 * time.Minute, SweepInterval: time.Minute},
		Fetch: FetchConfig{
			Concurrency:     4,
			RequestTimeout:  15 * time.Second,
			ExtractFullText: true,
			UserAgent:       "NewsAnalyst/1.0",
			LockKey:         "newsanalyst:fetch-cycle",
		},
		Search:   SearchConfig{Enabled: true},
		Redis:    RedisConfig{LockTTL: 30 * time.Minute},
		Analysis: AnalysisConfig{Enabled: false, BatchSize: 20, MaxInputChars: 3000, MaxAttempts: 3},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		Sources: defaultSources(),
	}
}

func defaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "CNN", Region: "US", Feed: "https://rss.cnn.com/rss/edition.rss"},
		{Name: "Fox News", Region: "US", Feed: "https://moxie.foxnews.com/google-publisher/latest.xml"},
		{Name: "Reuters", Region: "US", Feed: "https://feeds.reuters.com/reuters/topNews"},
		{Name: "New York Times", Region: "US", Feed: "https://rss.nytimes.com/services/xml/rss/nyt/World.xml"},
		{Name: "Washington Post", Region: "US", Feed: "https://feeds.washingtonpost.com/rss/world"},
		{Name: "NBC News", Region: "US", Feed: "https://feeds.nbcnews.com/nbcnews/public/world"},
		{Name: "ABC News", Region: "US", Feed: "https://feeds.abcnews.com/abcnews/internationalheadlines"},
		{Name: "NPR", Region: "US", Feed: "https://feeds.npr.org/1001/rss.xml"},
		{Name: "BBC", Region: "INTL", Feed: "https://rss.bbc.co.uk/rss/newsonline_world_edition/front_page/rss.xml"},
		{Name: "Jerusalem Post", Region: "INTL", Feed: "https://www.jpost.com/rss/rssfeedsheadlines.aspx"},
		{Name: "Tehran Times", Region: "INTL", Feed: "https://www.tehrantimes.com/rss"},
		{Name: "Al Jazeera", Region: "INTL", Feed: "https://www.aljazeera.com/xml/rss/all.xml"},
		{Name: "Times of India", Region: "INTL", Feed: "https://timesofindia.indiatimes.com/rssfeedstopstories.cms"},
		{Name: "South China Morning Post", Region: "INTL", Feed: "https://www.scmp.com/rss/91/feed"},
		{Name: "RT News", Region: "INTL", Feed: "https://www.rt.com/rss/"},
		{Name: "Al Arabiya", Region: "INTL", Feed: "https://english.alarabiya.net/rss.xml"},
	}
}
