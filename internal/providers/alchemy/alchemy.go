// Package alchemy queries the Alchemy token prices API.
package alchemy

import (
	"bytes"
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

// Owner is the registry key of the Alchemy actions.
const Owner = "AlchemyTokenPricesActionProvider"

// DefaultBaseURL is the Alchemy prices gateway.
const DefaultBaseURL = "https://api.g.alchemy.com"

const bySymbolSchema = `{
  "type": "object",
  "properties": {
    "symbols": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 1,
      "maxItems": 25,
      "description": "Token symbols to price, e.g. [\"ETH\", \"USDC\"]"
    }
  },
  "required": ["symbols"],
  "additionalProperties": false
}`

const byAddressSchema = `{
  "type": "object",
  "properties": {
    "addresses": {
      "type": "array",
      "minItems": 1,
      "maxItems": 25,
      "items": {
        "type": "object",
        "properties": {
          "network": {"type": "string", "minLength": 1, "description": "Alchemy network name, e.g. eth-mainnet"},
          "address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"}
        },
        "required": ["network", "address"],
        "additionalProperties": false
      }
    }
  },
  "required": ["addresses"],
  "additionalProperties": false
}`

// Config carries the API credentials.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Provider implements the Alchemy token price actions.
type Provider struct {
	*action.Base
	client *restclient.Client
	prefix string
}

// New creates the provider. The API key is required.
func New(cfg Config, opts ...action.Option) (*Provider, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Alchemy API key 未配置")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	p := &Provider{
		Base:   action.NewBase("alchemy", Owner, opts...),
		client: restclient.New(cfg.BaseURL, restclient.WithHTTPClient(cfg.HTTPClient)),
		prefix: "/prices/v1/" + url.PathEscape(key),
	}
	p.MustDefine(action.Definition{
		Name:        "token_prices_by_symbol",
		Description: "This tool fetches current USD prices for up to 25 token symbols from Alchemy.",
		Schema:      bySymbolSchema,
		Signature:   action.Unbound(p.bySymbol),
	})
	p.MustDefine(action.Definition{
		Name:        "token_prices_by_address",
		Description: "This tool fetches current USD prices for up to 25 token contracts given as network and address pairs.",
		Schema:      byAddressSchema,
		Signature:   action.Unbound(p.byAddress),
	})
	return p, nil
}

func (p *Provider) bySymbol(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		Symbols []string `json:"symbols"`
	}](args)
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	if err := p.client.GetJSON(ctx, p.prefix+"/tokens/by-symbol", url.Values{"symbols": in.Symbols}, &raw); err != nil {
		return "", err
	}
	return render("Successfully fetched token prices by symbol:", raw), nil
}

type tokenAddress struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

func (p *Provider) byAddress(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		Addresses []tokenAddress `json:"addresses"`
	}](args)
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	body := map[string]any{"addresses": in.Addresses}
	if err := p.client.PostJSON(ctx, p.prefix+"/tokens/by-address", body, &raw); err != nil {
		return "", err
	}
	return render("Successfully fetched token prices by address:", raw), nil
}

func render(title string, raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Sprintf("%s\n%s", title, string(raw))
	}
	return fmt.Sprintf("%s\n%s", title, buf.String())
}
