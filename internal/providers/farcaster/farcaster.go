// Package farcaster reads the agent's Farcaster account and posts casts
// through the Neynar API.
package farcaster

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

// Owner is the registry key of the Farcaster actions.
const Owner = "FarcasterActionProvider"

// DefaultBaseURL is the Neynar API host.
const DefaultBaseURL = "https://api.neynar.com"

const postCastSchema = `{
  "type": "object",
  "properties": {
    "cast_text": {"type": "string", "minLength": 1, "maxLength": 280, "description": "The text of the cast"},
    "embeds": {
      "type": "array",
      "maxItems": 2,
      "items": {"type": "object", "properties": {"url": {"type": "string", "minLength": 1}}, "required": ["url"]},
      "description": "Optional URLs to embed"
    }
  },
  "required": ["cast_text"],
  "additionalProperties": false
}`

// Config carries the Neynar credentials.
type Config struct {
	APIKey     string
	SignerUUID string
	FID        string
	BaseURL    string
	HTTPClient *http.Client
}

// Provider implements the Farcaster actions.
type Provider struct {
	*action.Base
	client *restclient.Client
	signer string
	fid    string
}

// New creates the provider. API key, signer and FID are all required.
func New(cfg Config, opts ...action.Option) (*Provider, error) {
	switch {
	case strings.TrimSpace(cfg.APIKey) == "":
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Neynar API key 未配置")
	case strings.TrimSpace(cfg.SignerUUID) == "":
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Farcaster signer_uuid 未配置")
	case strings.TrimSpace(cfg.FID) == "":
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Farcaster fid 未配置")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	p := &Provider{
		Base: action.NewBase("farcaster", Owner, opts...),
		client: restclient.New(cfg.BaseURL,
			restclient.WithHeader("api_key", cfg.APIKey),
			restclient.WithHTTPClient(cfg.HTTPClient)),
		signer: cfg.SignerUUID,
		fid:    cfg.FID,
	}
	p.MustDefine(action.Definition{
		Name:        "account_details",
		Description: "This tool returns the details of the agent's Farcaster account.",
		Signature:   action.Unbound(p.accountDetails),
	})
	p.MustDefine(action.Definition{
		Name:        "post_cast",
		Description: "This tool posts a cast of at most 280 characters from the agent's Farcaster account.",
		Schema:      postCastSchema,
		Signature:   action.Unbound(p.postCast),
	})
	return p, nil
}

func (p *Provider) accountDetails(ctx context.Context, _ action.Args) (string, error) {
	var resp struct {
		Users []json.RawMessage `json:"users"`
	}
	if err := p.client.GetJSON(ctx, "/v2/farcaster/user/bulk", url.Values{"fids": {p.fid}}, &resp); err != nil {
		return "", err
	}
	if len(resp.Users) == 0 {
		return "", fmt.Errorf("未找到 fid %s 对应的账户", p.fid)
	}
	return "Successfully retrieved Farcaster account details:\n" + string(resp.Users[0]), nil
}

type embed struct {
	URL string `json:"url"`
}

func (p *Provider) postCast(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		CastText string  `json:"cast_text"`
		Embeds   []embed `json:"embeds"`
	}](args)
	if err != nil {
		return "", err
	}
	body := map[string]any{"signer_uuid": p.signer, "text": in.CastText}
	if len(in.Embeds) > 0 {
		body["embeds"] = in.Embeds
	}
	var resp struct {
		Success bool `json:"success"`
		Cast    struct {
			Hash string `json:"hash"`
		} `json:"cast"`
	}
	if err := p.client.PostJSON(ctx, "/v2/farcaster/cast", body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully posted cast to Farcaster: %s", resp.Cast.Hash), nil
}
