// Package twitter posts and reads through the X (Twitter) v2 API.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/providers/restclient"
)

// Owner is the registry key of the Twitter actions.
const Owner = "TwitterActionProvider"

// DefaultBaseURL is the X API host.
const DefaultBaseURL = "https://api.twitter.com"

const postTweetSchema = `{
  "type": "object",
  "properties": {
    "tweet": {"type": "string", "minLength": 1, "maxLength": 280, "description": "The text of the tweet"}
  },
  "required": ["tweet"],
  "additionalProperties": false
}`

const replySchema = `{
  "type": "object",
  "properties": {
    "tweet_id": {"type": "string", "pattern": "^[0-9]+$", "description": "The tweet to reply to"},
    "tweet_reply": {"type": "string", "minLength": 1, "maxLength": 280, "description": "The text of the reply"}
  },
  "required": ["tweet_id", "tweet_reply"],
  "additionalProperties": false
}`

const mentionsSchema = `{
  "type": "object",
  "properties": {
    "user_id": {"type": "string", "pattern": "^[0-9]+$", "description": "The user whose mentions are listed"}
  },
  "required": ["user_id"],
  "additionalProperties": false
}`

// Config carries the OAuth 2.0 user access token.
type Config struct {
	BearerToken string
	BaseURL     string
	HTTPClient  *http.Client
}

// Provider implements the Twitter actions.
type Provider struct {
	*action.Base
	client *restclient.Client
}

// New creates the provider. The bearer token is required.
func New(cfg Config, opts ...action.Option) (*Provider, error) {
	token := strings.TrimSpace(cfg.BearerToken)
	if token == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Twitter access token 未配置")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	p := &Provider{
		Base: action.NewBase("twitter", Owner, opts...),
		client: restclient.New(cfg.BaseURL,
			restclient.WithBearerToken(token),
			restclient.WithHTTPClient(cfg.HTTPClient)),
	}
	p.MustDefine(action.Definition{
		Name:        "account_details",
		Description: "This tool returns the details of the authenticated Twitter (X) account.",
		Signature:   action.Unbound(p.accountDetails),
	})
	p.MustDefine(action.Definition{
		Name:        "account_mentions",
		Description: "This tool lists recent mentions of a Twitter (X) user id.",
		Schema:      mentionsSchema,
		Signature:   action.Unbound(p.accountMentions),
	})
	p.MustDefine(action.Definition{
		Name:        "post_tweet",
		Description: "This tool posts a tweet of at most 280 characters from the authenticated account.",
		Schema:      postTweetSchema,
		Signature:   action.Unbound(p.postTweet),
	})
	p.MustDefine(action.Definition{
		Name:        "post_tweet_reply",
		Description: "This tool replies to a tweet from the authenticated account.",
		Schema:      replySchema,
		Signature:   action.Unbound(p.postReply),
	})
	return p, nil
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (p *Provider) accountDetails(ctx context.Context, _ action.Args) (string, error) {
	var resp struct {
		Data user `json:"data"`
	}
	if err := p.client.GetJSON(ctx, "/2/users/me", nil, &resp); err != nil {
		return "", err
	}
	u := resp.Data
	return fmt.Sprintf("Successfully retrieved authenticated user account details:\n"+
		"- id: %s\n- name: %s\n- username: %s\n- url: https://x.com/%s", u.ID, u.Name, u.Username, u.Username), nil
}

func (p *Provider) accountMentions(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		UserID string `json:"user_id"`
	}](args)
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	if err := p.client.GetJSON(ctx, "/2/users/"+url.PathEscape(in.UserID)+"/mentions", nil, &raw); err != nil {
		return "", err
	}
	return "Successfully retrieved account mentions:\n" + string(raw), nil
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (p *Provider) postTweet(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		Tweet string `json:"tweet"`
	}](args)
	if err != nil {
		return "", err
	}
	var resp tweetResponse
	if err := p.client.PostJSON(ctx, "/2/tweets", map[string]any{"text": in.Tweet}, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully posted tweet %s:\n%s", resp.Data.ID, resp.Data.Text), nil
}

func (p *Provider) postReply(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		TweetID    string `json:"tweet_id"`
		TweetReply string `json:"tweet_reply"`
	}](args)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"text":  in.TweetReply,
		"reply": map[string]string{"in_reply_to_tweet_id": in.TweetID},
	}
	var resp tweetResponse
	if err := p.client.PostJSON(ctx, "/2/tweets", body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully posted reply %s to tweet %s:\n%s", resp.Data.ID, in.TweetID, resp.Data.Text), nil
}
