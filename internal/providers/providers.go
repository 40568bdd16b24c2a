// Package providers assembles the built-in action providers from configuration.
package providers

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/cache"
	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/providers/alchemy"
	"AgentKit-Chain/internal/providers/erc20"
	"AgentKit-Chain/internal/providers/erc721"
	"AgentKit-Chain/internal/providers/farcaster"
	"AgentKit-Chain/internal/providers/knowledge"
	"AgentKit-Chain/internal/providers/pyth"
	"AgentKit-Chain/internal/providers/twitter"
	"AgentKit-Chain/internal/providers/wallet"
	"AgentKit-Chain/internal/providers/weth"
	"AgentKit-Chain/internal/telemetry"
	"AgentKit-Chain/pkg/logger"
)

// Options carries the shared dependencies of the built-in providers.
type Options struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	Sink       telemetry.Sink
	Registry   *action.Registry
	HTTPClient *http.Client
}

func (o Options) actionOptions() []action.Option {
	return []action.Option{action.WithTelemetrySink(o.Sink), action.WithRegistry(o.Registry)}
}

// Onchain returns the wallet, ERC-20, ERC-721 and WETH providers as siblings
// so the kit applies each provider's network predicate on its own.
func Onchain(o Options) []action.Provider {
	opts := o.actionOptions()
	return []action.Provider{
		wallet.New(opts...),
		erc20.New(opts...),
		erc721.New(opts...),
		weth.New(opts...),
	}
}

// FromConfig builds the enabled providers in a fixed order: onchain, pyth,
// alchemy, twitter, farcaster, knowledge.
func FromConfig(cfg config.ProvidersConfig, o Options) ([]action.Provider, error) {
	log := logger.Named("providers")
	opts := o.actionOptions()

	var out []action.Provider
	if cfg.Onchain {
		out = append(out, Onchain(o)...)
	}
	if cfg.Pyth.Enabled {
		out = append(out, pyth.New(pyth.Config{
			BaseURL:    cfg.Pyth.BaseURL,
			HTTPClient: o.HTTPClient,
			Cache:      o.Cache,
			CacheTTL:   o.CacheTTL,
		}, opts...))
	}
	if cfg.Alchemy.Enabled {
		p, err := alchemy.New(alchemy.Config{
			APIKey:     secret(cfg.Alchemy.APIKey, cfg.Alchemy.APIKeyEnv),
			BaseURL:    cfg.Alchemy.BaseURL,
			HTTPClient: o.HTTPClient,
		}, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if cfg.Twitter.Enabled {
		p, err := twitter.New(twitter.Config{
			BearerToken: secret(cfg.Twitter.APIKey, cfg.Twitter.APIKeyEnv),
			BaseURL:     cfg.Twitter.BaseURL,
			HTTPClient:  o.HTTPClient,
		}, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if cfg.Farcaster.Enabled {
		p, err := farcaster.New(farcaster.Config{
			APIKey:     secret(cfg.Farcaster.APIKey, cfg.Farcaster.APIKeyEnv),
			SignerUUID: cfg.Farcaster.SignerUUID,
			FID:        cfg.Farcaster.FID,
			BaseURL:    cfg.Farcaster.BaseURL,
			HTTPClient: o.HTTPClient,
		}, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if cfg.Knowledge.Enabled {
		items, err := knowledge.Load(cfg.Knowledge.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, knowledge.New(items, cfg.Knowledge.MaxResults, opts...))
	}

	names := make([]string, 0, len(out))
	for _, p := range out {
		names = append(names, p.Name())
	}
	log.Info("动作提供者已加载", slog.String("providers", strings.Join(names, ",")))
	return out, nil
}

func secret(value, envName string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}
