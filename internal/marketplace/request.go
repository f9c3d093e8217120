package marketplace

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/spigell/hire-responder/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	maxErrorLength  = 500
	maxQueryLogLen  = 100
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   map[string]any `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// ExecuteQuery posts a GraphQL document and returns its data object.
// Transient failures are retried according to the client policy.
func (c *Client) ExecuteQuery(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	c.logger.Debug("executing graphql query", zap.String("query", utils.TruncateForLog(query, maxQueryLogLen)))

	var data map[string]any
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		result, err := c.execute(ctx, payload)
		if err != nil {
			return err
		}
		data = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (c *Client) execute(ctx context.Context, payload []byte) (map[string]any, error) {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.logger.Warn("authentication failed, attempting token refresh")

		if err := c.refresh(ctx); err != nil {
			return nil, &AuthError{Err: err}
		}

		resp, err = c.post(ctx, payload)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return nil, &AuthError{Err: errors.New("credentials rejected after token refresh")}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("rate limit exceeded, waiting before retry", zap.Duration("delay", c.cfg.RateLimitDelay))
		if err := c.wait(ctx, c.cfg.RateLimitDelay); err != nil {
			return nil, err
		}
		return nil, &RateLimitError{}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    utils.TruncateForLog(string(body), maxErrorLength),
		}
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if len(decoded.Errors) > 0 {
		message := decoded.Errors[0].Message
		if message == "" {
			message = "unknown graphql error"
		}
		c.logger.Error("graphql error", zap.String("message", message))
		return nil, &APIError{Message: message}
	}

	if decoded.Data == nil {
		decoded.Data = map[string]any{}
	}

	return decoded.Data, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var netErr net.Error
		timeout := errors.As(err, &netErr) && netErr.Timeout()
		return nil, &NetworkError{Timeout: timeout, Err: err}
	}

	return resp, nil
}

// refresh exchanges the refresh token for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	_, refreshToken := c.Tokens()
	if refreshToken == "" {
		return errors.New("refresh token is not configured")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("refreshing access token: %w", err)
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.mu.Unlock()

	c.logger.Info("access token refreshed")

	if c.cfg.OnTokenRefresh != nil {
		c.cfg.OnTokenRefresh(token)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	access, _ := c.Tokens()

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", access))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
