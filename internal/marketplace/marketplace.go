// Package marketplace talks to the freelance marketplace GraphQL API.
package marketplace

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/spigell/hire-responder/internal/retry"
	"github.com/spigell/hire-responder/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	graphQLURL = "https://api.upwork.com/graphql"
	tokenURL   = "https://www.upwork.com/api/v3/oauth2/token"
	userAgent  = "spigell/hire-responder (spigelly@gmail.com)"

	defaultRateLimitDelay = 2 * time.Second
	defaultTimeout        = 30 * time.Second
	defaultRPS            = 2
)

// API is the set of marketplace operations the rest of the program needs.
// Both Client and Mock implement it.
type API interface {
	ListOpenJobs(ctx context.Context) ([]*Job, error)
	ListProposals(ctx context.Context, jobID string) ([]*Proposal, error)
	GetFreelancerProfile(ctx context.Context, freelancerID string) (*Freelancer, error)
	SendMessage(ctx context.Context, roomID, text string) (bool, error)
}

type Config struct {
	GraphQLURL   string
	TokenURL     string
	UserAgent    string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// RateLimitDelay is slept after a 429 before the request is retried.
	RateLimitDelay    time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	// OnTokenRefresh receives tokens obtained by a refresh so they can be persisted.
	OnTokenRefresh func(token *oauth2.Token)
}

type Client struct {
	cfg        Config
	logger     *zap.Logger
	HTTPClient *http.Client
	oauth      *oauth2.Config
	limiter    *rate.Limiter
	policy     retry.Policy
	wait       func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = graphQLURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = tokenURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = defaultRateLimitDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}

	policy := retry.Default()
	if cfg.MaxRetries > 0 {
		policy.Attempts = cfg.MaxRetries
	}
	policy.Retryable = IsRetryable
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("retrying marketplace request",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		policy:       policy,
		wait:         utils.WaitFor,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}
}

// Tokens returns the credentials currently in use.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}
