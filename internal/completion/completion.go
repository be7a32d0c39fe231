// Package completion talks to OpenAI-compatible chat endpoints: the hosted
// OpenRouter API and a self-hosted tunnel. One Client serves both; the
// backend of the chosen model decides which base URL and credentials apply.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	cerrors "github.com/chalkboard-ai/chalkboard/internal/errors"
	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// ErrMissingAPIKey is returned before any network activity when a hosted
// model is requested without a configured key. Tunnel models never hit it.
var ErrMissingAPIKey = errors.New("completion: openrouter api key not configured")

// Config carries the endpoint settings the client needs.
type Config struct {
	OpenRouterAPIKey string
	OpenRouterURL    string
	TunnelURL        string
	SiteURL          string
	SiteName         string
	Timeout          time.Duration

	// Transport, when set, replaces the default HTTP transport. Used to
	// install request/response debug logging.
	Transport http.RoundTripper
}

// Client issues chat completions. Safe for concurrent use.
type Client struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

// New builds a Client from the given config.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	hc := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.Transport != nil {
		hc.SetTransport(cfg.Transport)
	}
	return &Client{http: hc, cfg: cfg, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete runs one chat completion for the given history. The system
// prompt, when non-empty, is prepended as a system message; messages keep
// their order otherwise. When onProgress is non-nil the request streams and
// onProgress receives the accumulated text after every delta; the final
// return value always carries the full text either way.
func (c *Client) Complete(ctx context.Context, modelID string, msgs []model.Message, systemPrompt string, onProgress func(string), backend model.Backend) (string, error) {
	baseURL, auth, err := c.route(backend)
	if err != nil {
		return "", err
	}

	req := chatRequest{
		Model:    modelID,
		Messages: wireMessages(msgs, systemPrompt),
	}

	if onProgress != nil {
		return c.stream(ctx, baseURL, auth, req, onProgress)
	}
	return c.blocking(ctx, baseURL, auth, req)
}

// route resolves the base URL and bearer token for a backend.
func (c *Client) route(backend model.Backend) (string, string, error) {
	switch backend {
	case model.BackendTunnel:
		return c.cfg.TunnelURL, "", nil
	default:
		if c.cfg.OpenRouterAPIKey == "" {
			return "", "", ErrMissingAPIKey
		}
		return c.cfg.OpenRouterURL, c.cfg.OpenRouterAPIKey, nil
	}
}

func wireMessages(msgs []model.Message, systemPrompt string) []chatMessage {
	out := make([]chatMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range msgs {
		out = append(out, chatMessage{Role: m.Sender.Role(), Content: m.Text})
	}
	return out
}

// blocking posts the request and retries recoverable failures with
// exponential backoff. Irrecoverable responses (4xx other than 408/429)
// abort immediately.
func (c *Client) blocking(ctx context.Context, baseURL, auth string, req chatRequest) (string, error) {
	var text string

	op := func() error {
		r := c.http.R().SetContext(ctx).SetBody(&req)
		c.decorate(r, auth)

		resp, err := r.Post(baseURL + "/chat/completions")
		if err != nil {
			return cerrors.NewNetworkError("completion", err)
		}
		if resp.StatusCode() != http.StatusOK {
			herr := cerrors.NewHTTPError(resp.StatusCode(), resp.String(), "completion")
			if cerrors.IsIrrecoverable(herr) {
				return backoff.Permanent(herr)
			}
			return herr
		}

		var body chatResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if body.Error != nil {
			return backoff.Permanent(fmt.Errorf("provider error: %s", body.Error.Message))
		}
		if len(body.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("no completion returned"))
		}
		text = body.Choices[0].Message.Content
		return nil
	}

	bo := backoff.WithContext(retryPolicy(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		c.log.Warn().Err(err).Str("model", req.Model).Msg("completion failed")
		return "", err
	}
	return text, nil
}

// decorate attaches auth and OpenRouter attribution headers. The tunnel
// ignores the extra headers, so they are sent unconditionally.
func (c *Client) decorate(r *resty.Request, auth string) {
	if auth != "" {
		r.SetAuthToken(auth)
	}
	if c.cfg.SiteURL != "" {
		r.SetHeader("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteName != "" {
		r.SetHeader("X-Title", c.cfg.SiteName)
	}
}

func retryPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	return bo
}
