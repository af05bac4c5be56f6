package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/user/carewatch/internal/domain"
)

// Client implements domain.Messenger against the Slack Web API. A shared
// token bucket throttles all outbound calls to stay under the platform's
// per-app rate limit.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	reaction string
	logger   *slog.Logger
}

// NewClient creates a Slack API client. baseURL is overridable for tests;
// reaction is the emoji name used for the claim mark.
func NewClient(baseURL string, rps float64, burst int, reaction string, logger *slog.Logger) *Client {
	if reaction == "" {
		reaction = "eyes"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json; charset=utf-8"),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		reaction: reaction,
		logger:   logger.With("component", "slack_client"),
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
	User  struct {
		RealName string `json:"real_name"`
		Name     string `json:"name"`
	} `json:"user"`
}

func (c *Client) PostMessage(ctx context.Context, token, channel, text string) error {
	_, err := c.call(ctx, token, "chat.postMessage", map[string]string{
		"channel": channel,
		"text":    text,
	})
	return err
}

func (c *Client) PostThreadReply(ctx context.Context, token, channel, threadTS, text string) error {
	_, err := c.call(ctx, token, "chat.postMessage", map[string]string{
		"channel":   channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

// Mark adds the claim reaction to the message. The API answers
// "already_reacted" when any instance of this app got there first, which is
// exactly the signal the claim coordinator needs.
func (c *Client) Mark(ctx context.Context, token, channel, ts string) error {
	res, err := c.post(ctx, token, "reactions.add", map[string]string{
		"channel":   channel,
		"timestamp": ts,
		"name":      c.reaction,
	})
	if err != nil {
		return err
	}
	if !res.OK {
		if res.Error == "already_reacted" {
			return domain.ErrAlreadyMarked
		}
		return fmt.Errorf("slack reactions.add: %s", res.Error)
	}
	return nil
}

func (c *Client) UserName(ctx context.Context, token, userID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var res apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("user", userID).
		SetResult(&res).
		Get("/users.info")
	if err != nil {
		return "", fmt.Errorf("slack users.info: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("slack users.info: status %d", resp.StatusCode())
	}
	if !res.OK {
		return "", fmt.Errorf("slack users.info: %s", res.Error)
	}
	if res.User.RealName != "" {
		return res.User.RealName, nil
	}
	return res.User.Name, nil
}

// call posts to a Web API method and fails on an API-level error.
func (c *Client) call(ctx context.Context, token, method string, body map[string]string) (*apiResponse, error) {
	res, err := c.post(ctx, token, method, body)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, fmt.Errorf("slack %s: %s", method, res.Error)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, token, method string, body map[string]string) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var res apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&res).
		Post("/" + method)
	if err != nil {
		return nil, fmt.Errorf("slack %s: %w", method, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("slack %s: status %d", method, resp.StatusCode())
	}
	return &res, nil
}
