package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/logger"
)

const (
	app = "hire-responder"
)

type Config struct {
	Marketplace   MarketplaceConfig   `mapstructure:"marketplace"`
	AI            AIConfig            `mapstructure:"ai"`
	Tiers         TiersConfig         `mapstructure:"tiers"`
	Communication CommunicationConfig `mapstructure:"communication"`
	CriteriaDir   string              `mapstructure:"criteria-dir"`
	Store         StoreConfig         `mapstructure:"store"`
	Notify        NotifyConfig        `mapstructure:"notify"`
}

type MarketplaceConfig struct {
	GraphQLURL        string        `mapstructure:"graphql-url"`
	TokenURL          string        `mapstructure:"token-url"`
	UserAgent         string        `mapstructure:"user-agent"`
	ClientID          string        `mapstructure:"client-id"`
	ClientSecret      string        `mapstructure:"client-secret"`
	AccessToken       string        `mapstructure:"access-token"`
	AccessTokenFile   string        `mapstructure:"access-token-file"`
	RefreshToken      string        `mapstructure:"refresh-token"`
	RefreshTokenFile  string        `mapstructure:"refresh-token-file"`
	RateLimitDelay    time.Duration `mapstructure:"rate-limit-delay"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	MaxRetries        int           `mapstructure:"max-retries"`
}

type AIConfig struct {
	Provider      string        `mapstructure:"provider"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
	OracleTimeout time.Duration `mapstructure:"oracle-timeout"`
	Gemini        GeminiConfig  `mapstructure:"gemini"`
	OpenAI        OpenAIConfig  `mapstructure:"openai"`
	Ollama        OllamaConfig  `mapstructure:"ollama"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max-tokens"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OllamaConfig struct {
	BaseURL string `mapstructure:"base-url"`
	Model   string `mapstructure:"model"`
}

type TiersConfig struct {
	Tier1Threshold int `mapstructure:"tier1-threshold"`
	Tier2Threshold int `mapstructure:"tier2-threshold"`
}

type CommunicationConfig struct {
	AutoRespondTier1   bool   `mapstructure:"auto-respond-tier1"`
	FollowUpAfterHours int    `mapstructure:"follow-up-after-hours"`
	BatchDeclineTier3  bool   `mapstructure:"batch-decline-tier3"`
	CalendlyLink       string `mapstructure:"calendly-link"`
	TemplatesDir       string `mapstructure:"templates-dir"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type NotifyConfig struct {
	AMQPURL string `mapstructure:"amqp-url"`
	Queue   string `mapstructure:"queue"`
}

var envBindings = map[string]string{
	"marketplace.client-id":     "UPWORK_CLIENT_ID",
	"marketplace.client-secret": "UPWORK_CLIENT_SECRET",
	"marketplace.access-token":  "UPWORK_ACCESS_TOKEN",
	"marketplace.refresh-token": "UPWORK_REFRESH_TOKEN",
	"ai.gemini.api-key":         "GEMINI_API_KEY",
	"ai.openai.api-key":         "OPENAI_API_KEY",
	"notify.amqp-url":           "AMQP_URL",
	"store.dsn":                 "MYSQL_DSN",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "hire-responder fetches proposals, scores applicants with an LLM and answers them by tier",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hire-responder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.max-log-length", 2000)
	viper.SetDefault("ai.oracle-timeout", "2m")
	viper.SetDefault("tiers.tier1-threshold", 85)
	viper.SetDefault("tiers.tier2-threshold", 70)
	viper.SetDefault("communication.auto-respond-tier1", true)
	viper.SetDefault("communication.follow-up-after-hours", 48)
	viper.SetDefault("communication.batch-decline-tier3", false)
	viper.SetDefault("communication.templates-dir", "config/templates")
	viper.SetDefault("criteria-dir", "config/criteria")
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "data/applicants.db")
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough to run without a file,
		// but an explicit --config must exist and parse.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

func newLogger() (*zap.Logger, error) {
	return logger.New(viper.GetBool("json"), viper.GetBool("debug"))
}
