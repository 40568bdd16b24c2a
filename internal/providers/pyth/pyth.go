// Package pyth reads price feeds from the Pyth Hermes API.
package pyth

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/cache"
	"AgentKit-Chain/internal/providers/restclient"
	"AgentKit-Chain/internal/providers/units"
	"AgentKit-Chain/pkg/logger"
)

// Owner is the registry key of the Pyth actions.
const Owner = "PythActionProvider"

// DefaultBaseURL is the public Hermes endpoint.
const DefaultBaseURL = "https://hermes.pyth.network"

const feedIDSchema = `{
  "type": "object",
  "properties": {
    "token_symbol": {"type": "string", "minLength": 1, "description": "The token symbol to look up, e.g. BTC"}
  },
  "required": ["token_symbol"],
  "additionalProperties": false
}`

const priceSchema = `{
  "type": "object",
  "properties": {
    "price_feed_id": {"type": "string", "minLength": 1, "description": "The Pyth price feed id"}
  },
  "required": ["price_feed_id"],
  "additionalProperties": false
}`

// Config customises the Hermes client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// Cache holds symbol to feed id lookups. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
}

// Provider implements the Pyth actions.
type Provider struct {
	*action.Base
	client *restclient.Client
	cache  cache.Cache
	ttl    time.Duration
}

// New creates the Pyth provider. It needs no wallet and supports every network.
func New(cfg Config, opts ...action.Option) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	p := &Provider{
		Base:   action.NewBase("pyth", Owner, opts...),
		client: restclient.New(cfg.BaseURL, restclient.WithHTTPClient(cfg.HTTPClient)),
		cache:  cfg.Cache,
		ttl:    cfg.CacheTTL,
	}
	p.MustDefine(action.Definition{
		Name: "fetch_price_feed_id",
		Description: "This tool fetches the Pyth price feed id for a token symbol. " +
			"The id is needed by fetch_price.",
		Schema:    feedIDSchema,
		Signature: action.Unbound(p.fetchPriceFeedID),
	})
	p.MustDefine(action.Definition{
		Name:        "fetch_price",
		Description: "This tool fetches the latest price of a Pyth price feed id in USD.",
		Schema:      priceSchema,
		Signature:   action.Unbound(p.fetchPrice),
	})
	return p
}

type priceFeed struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

func (p *Provider) fetchPriceFeedID(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		TokenSymbol string `json:"token_symbol"`
	}](args)
	if err != nil {
		return "", err
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.TokenSymbol))
	key := "pyth:feed:" + symbol

	if p.cache != nil {
		if id, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			return id, nil
		} else if err != nil {
			logger.Named("pyth").Debug("读取价格源缓存失败", "error", err)
		}
	}

	var feeds []priceFeed
	query := url.Values{"query": {symbol}, "asset_type": {"crypto"}}
	if err := p.client.GetJSON(ctx, "/v2/price_feeds", query, &feeds); err != nil {
		return "", err
	}
	for _, feed := range feeds {
		if strings.EqualFold(feed.Attributes["base"], symbol) {
			if p.cache != nil {
				if err := p.cache.Set(ctx, key, feed.ID, p.ttl); err != nil {
					logger.Named("pyth").Debug("写入价格源缓存失败", "error", err)
				}
			}
			return feed.ID, nil
		}
	}
	return "", fmt.Errorf("未找到 %s 的价格源", symbol)
}

type latestPrice struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price string `json:"price"`
			Expo  int    `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

func (p *Provider) fetchPrice(ctx context.Context, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		PriceFeedID string `json:"price_feed_id"`
	}](args)
	if err != nil {
		return "", err
	}
	var resp latestPrice
	query := url.Values{"ids[]": {in.PriceFeedID}}
	if err := p.client.GetJSON(ctx, "/v2/updates/price/latest", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Parsed) == 0 {
		return "", fmt.Errorf("价格源 %s 没有返回价格", in.PriceFeedID)
	}
	return scale(resp.Parsed[0].Price.Price, resp.Parsed[0].Price.Expo)
}

// scale renders price * 10^expo as a decimal string.
func scale(price string, expo int) (string, error) {
	value, ok := new(big.Int).SetString(price, 10)
	if !ok {
		return "", fmt.Errorf("无效的价格: %s", strconv.Quote(price))
	}
	if expo >= 0 {
		return value.Mul(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(expo)), nil)).String(), nil
	}
	return units.Format(value, -expo), nil
}
