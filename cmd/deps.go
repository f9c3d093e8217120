package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/spigell/hire-responder/internal/ai"
	"github.com/spigell/hire-responder/internal/ai/gemini"
	"github.com/spigell/hire-responder/internal/ai/mock"
	"github.com/spigell/hire-responder/internal/ai/ollama"
	"github.com/spigell/hire-responder/internal/ai/openai"
	"github.com/spigell/hire-responder/internal/criteria"
	"github.com/spigell/hire-responder/internal/logger"
	"github.com/spigell/hire-responder/internal/marketplace"
	"github.com/spigell/hire-responder/internal/notify"
	"github.com/spigell/hire-responder/internal/outreach"
	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/secrets"
	"github.com/spigell/hire-responder/internal/store"
	"github.com/spigell/hire-responder/internal/store/memory"
	"github.com/spigell/hire-responder/internal/store/mysql"
	"github.com/spigell/hire-responder/internal/store/sqlite"
	"github.com/spigell/hire-responder/internal/tier"
)

// services holds everything a pipeline run needs. Close releases the store.
type services struct {
	market   marketplace.API
	oracle   ai.Oracle
	store    store.Store
	outreach *outreach.Communicator
	pipeline *pipeline.Pipeline
}

func (s *services) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func newServices(ctx context.Context, cfg *Config, useMock bool, log *zap.Logger) (*services, error) {
	market, err := newMarketplace(cfg.Marketplace, useMock, log)
	if err != nil {
		return nil, err
	}

	oracle, err := newOracle(ctx, cfg.AI, useMock, log)
	if err != nil {
		return nil, err
	}

	classifier, err := tier.New(cfg.Tiers.Tier1Threshold, cfg.Tiers.Tier2Threshold)
	if err != nil {
		return nil, fmt.Errorf("tiers: %w", err)
	}

	st, err := newStore(ctx, cfg.Store, useMock)
	if err != nil {
		return nil, err
	}

	communicator, err := newCommunicator(cfg.Communication, st, market, oracle, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{OracleTimeout: cfg.AI.OracleTimeout}, pipeline.Deps{
		Jobs:         market,
		Store:        st,
		Oracle:       oracle,
		Criteria:     criteria.NewLoader(cfg.CriteriaDir),
		Classifier:   classifier,
		Communicator: communicator,
		Logger:       log,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &services{
		market:   market,
		oracle:   oracle,
		store:    st,
		outreach: communicator,
		pipeline: p,
	}, nil
}

func newMarketplace(cfg MarketplaceConfig, useMock bool, log *zap.Logger) (marketplace.API, error) {
	log = logger.Component(log, "marketplace")
	if useMock {
		return marketplace.NewMock(log), nil
	}

	accessToken, err := secrets.Load(secrets.Source{
		Name:  "marketplace access token",
		Value: cfg.AccessToken,
		File:  cfg.AccessTokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set marketplace.access-token-file or UPWORK_ACCESS_TOKEN)", err)
	}

	refreshToken, err := secrets.LoadOptional(secrets.Source{
		Name:  "marketplace refresh token",
		Value: cfg.RefreshToken,
		File:  cfg.RefreshTokenFile,
	})
	if err != nil {
		return nil, err
	}

	clientID, err := secrets.LoadOptional(secrets.Source{Name: "marketplace client id", Value: cfg.ClientID})
	if err != nil {
		return nil, err
	}
	clientSecret, err := secrets.LoadOptional(secrets.Source{Name: "marketplace client secret", Value: cfg.ClientSecret})
	if err != nil {
		return nil, err
	}

	if refreshToken != "" && (clientID == "" || clientSecret == "") {
		log.Warn("refresh token is set without client credentials, expired tokens will not be refreshed")
	}

	return marketplace.New(marketplace.Config{
		GraphQLURL:        cfg.GraphQLURL,
		TokenURL:          cfg.TokenURL,
		UserAgent:         cfg.UserAgent,
		ClientID:          clientID,
		ClientSecret:      clientSecret,
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		RateLimitDelay:    cfg.RateLimitDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		OnTokenRefresh:    persistTokens(cfg, log),
	}, log), nil
}

// persistTokens writes refreshed tokens back to the configured token files.
func persistTokens(cfg MarketplaceConfig, log *zap.Logger) func(*oauth2.Token) {
	return func(token *oauth2.Token) {
		if token == nil {
			return
		}

		if cfg.AccessTokenFile != "" && token.AccessToken != "" {
			if err := secrets.Save(cfg.AccessTokenFile, token.AccessToken); err != nil {
				log.Warn("failed to persist access token", zap.Error(err))
			}
		}

		if cfg.RefreshTokenFile != "" && token.RefreshToken != "" {
			if err := secrets.Save(cfg.RefreshTokenFile, token.RefreshToken); err != nil {
				log.Warn("failed to persist refresh token", zap.Error(err))
			}
		}
	}
}

func newOracle(ctx context.Context, cfg AIConfig, useMock bool, log *zap.Logger) (ai.Oracle, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if useMock {
		provider = ai.ProviderMock
	}

	var (
		generator ai.Generator
		err       error
	)

	switch provider {
	case ai.ProviderMock:
		return mock.New(logger.WithCommonFields(log, ai.ProviderMock, mock.Model)), nil
	case "", ai.ProviderGemini:
		provider = ai.ProviderGemini
		generator, err = newGemini(ctx, cfg.Gemini, log)
	case ai.ProviderOpenAI:
		generator, err = newOpenAI(cfg.OpenAI, log)
	case ai.ProviderOllama:
		generator = ollama.NewGenerator(cfg.Ollama.BaseURL, cfg.Ollama.Model,
			logger.WithCommonFields(log, ai.ProviderOllama, cfg.Ollama.Model))
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	analyzerLogger := logger.WithCommonFields(log, provider, generator.Model())
	analyzerLogger.Info("oracle ready")

	return ai.NewAnalyzer(generator, cfg.MaxLogLength, analyzerLogger), nil
}

func newGemini(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(log, ai.ProviderGemini, cfg.Model).With(
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, genLogger)
}

func newOpenAI(cfg OpenAIConfig, log *zap.Logger) (ai.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "openai api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(log, ai.ProviderOpenAI, cfg.Model).With(
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	return openai.NewGenerator(apiKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.MaxRetries, genLogger)
}

// newStore opens the configured backend. Mock runs never touch disk.
func newStore(ctx context.Context, cfg StoreConfig, useMock bool) (store.Store, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	if useMock {
		driver = store.DriverMemory
	}

	switch driver {
	case store.DriverMemory:
		return memory.New(), nil
	case "", store.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case store.DriverMySQL:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("store.dsn is required for the mysql driver")
		}
		st, err := mysql.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newCommunicator(cfg CommunicationConfig, st store.Store, sender outreach.Sender, composer outreach.Composer, log *zap.Logger) (*outreach.Communicator, error) {
	templates, err := outreach.LoadTemplates(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	return outreach.New(outreach.Config{
		AutoRespondTier1:  cfg.AutoRespondTier1,
		FollowUpAfter:     time.Duration(cfg.FollowUpAfterHours) * time.Hour,
		BatchDeclineTier3: cfg.BatchDeclineTier3,
		CalendlyLink:      cfg.CalendlyLink,
	}, templates, st, sender, composer, log), nil
}

func newPublisher(cfg NotifyConfig, log *zap.Logger) (notify.Publisher, error) {
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		return notify.Nop{}, nil
	}
	return notify.NewAMQP(cfg.AMQPURL, cfg.Queue, logger.Component(log, "notify"))
}

// openStore is used by commands that only read applicants.
func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	return newStore(ctx, cfg.Store, false)
}
